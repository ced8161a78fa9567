package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"

	"github.com/spacesedan/ytsentiment/internal/models"
	"github.com/spacesedan/ytsentiment/internal/utils"
)

const (
	YOUTUBE_API_URL      = "https://www.googleapis.com/youtube/v3"
	youtubePageSize      = 100
	youtubeMaxSearchSize = 50
	reasonCommentsOff    = "commentsDisabled"
)

var ErrChannelNotFound = errors.New("channel not found")

// APIError is a non-2xx response from the YouTube Data API.
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("youtube api: %d %s: %s", e.StatusCode, e.Reason, e.Message)
	}
	return fmt.Sprintf("youtube api: %d: %s", e.StatusCode, e.Message)
}

type YouTubeConfig struct {
	APIKey      string
	AccessToken string
	BaseURL     string
	Timeout     time.Duration
}

type YouTubeClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	clock   clockwork.Clock
}

func NewYouTubeClient(cfg YouTubeConfig, clock clockwork.Clock) (*YouTubeClient, error) {
	if cfg.APIKey == "" && cfg.AccessToken == "" {
		return nil, errors.New("[YouTubeClient] an API key or access token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = YOUTUBE_API_URL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.AccessToken != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken}))
		httpClient.Timeout = cfg.Timeout
	}

	return &YouTubeClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  httpClient,
		clock:   clock,
	}, nil
}

// GetChannelID resolves a channel name to its ID using the first search hit.
func (yc *YouTubeClient) GetChannelID(ctx context.Context, channelName string) (string, error) {
	params := url.Values{}
	params.Set("q", channelName)
	params.Set("type", "channel")
	params.Set("part", "id")
	params.Set("maxResults", "1")

	var resp models.YouTubeSearchResponse
	if err := yc.get(ctx, "search", params, &resp); err != nil {
		return "", fmt.Errorf("[YouTubeClient] error fetching channel ID: %w", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].ID.ChannelID == "" {
		return "", fmt.Errorf("[YouTubeClient] %q: %w", channelName, ErrChannelNotFound)
	}

	return resp.Items[0].ID.ChannelID, nil
}

// GetVideosFromChannel returns up to maxResults videos, most recent first.
func (yc *YouTubeClient) GetVideosFromChannel(ctx context.Context, channelID string, maxResults int) ([]models.VideoInfo, error) {
	params := url.Values{}
	params.Set("channelId", channelID)
	params.Set("type", "video")
	params.Set("part", "id,snippet")
	params.Set("order", "date")
	params.Set("maxResults", strconv.Itoa(min(max(maxResults, 1), youtubeMaxSearchSize)))

	var resp models.YouTubeSearchResponse
	if err := yc.get(ctx, "search", params, &resp); err != nil {
		return nil, fmt.Errorf("[YouTubeClient] error fetching videos: %w", err)
	}

	videos := make([]models.VideoInfo, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID.VideoID == "" {
			continue
		}
		videos = append(videos, models.VideoInfo{
			ID:          item.ID.VideoID,
			Title:       item.Snippet.Title,
			Description: item.Snippet.Description,
			PublishedAt: parseTimestamp(item.Snippet.PublishedAt),
		})
		if len(videos) == maxResults {
			break
		}
	}

	slog.Info("[YouTubeClient] Fetched videos from channel",
		slog.String("channel_id", channelID),
		slog.Int("count", len(videos)))
	return videos, nil
}

// GetVideoComments pages through top-level comments until maxResults are
// collected or the pages run out. A video with comments disabled yields an
// empty slice.
func (yc *YouTubeClient) GetVideoComments(ctx context.Context, videoID string, maxResults int) ([]models.Comment, error) {
	comments := make([]models.Comment, 0, min(max(maxResults, 0), youtubePageSize))
	pageToken := ""

	for len(comments) < maxResults {
		params := url.Values{}
		params.Set("part", "snippet")
		params.Set("videoId", videoID)
		params.Set("maxResults", strconv.Itoa(min(youtubePageSize, maxResults-len(comments))))
		params.Set("textFormat", "plainText")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var resp models.YouTubeCommentThreadResponse
		if err := yc.get(ctx, "commentThreads", params, &resp); err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Reason == reasonCommentsOff {
				slog.Info("[YouTubeClient] Comments are disabled for video",
					slog.String("video_id", videoID))
				return []models.Comment{}, nil
			}
			return nil, fmt.Errorf("[YouTubeClient] error fetching comments: %w", err)
		}

		for _, thread := range resp.Items {
			snippet := thread.Snippet.TopLevelComment.Snippet
			text := snippet.TextDisplay
			if text == "" {
				text = snippet.TextOriginal
			}
			comments = append(comments, models.Comment{
				ID:          thread.ID,
				Text:        text,
				Author:      snippet.AuthorDisplayName,
				PublishedAt: parseTimestamp(snippet.PublishedAt),
				LikeCount:   snippet.LikeCount,
			})
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	if len(comments) > maxResults {
		comments = comments[:max(maxResults, 0)]
	}

	slog.Info("[YouTubeClient] Fetched comments",
		slog.String("video_id", videoID),
		slog.Int("count", len(comments)))
	return comments, nil
}

// GetCommentsFromChannel fetches comments for the most recent videos of a
// channel. Anything not starting with "UC" is treated as a channel name.
func (yc *YouTubeClient) GetCommentsFromChannel(ctx context.Context, channelIDOrName string, maxVideos, maxComments int) ([]models.VideoComments, error) {
	channelID := channelIDOrName
	if !strings.HasPrefix(channelIDOrName, "UC") {
		id, err := yc.GetChannelID(ctx, channelIDOrName)
		if err != nil {
			return nil, err
		}
		channelID = id
	}

	videos, err := yc.GetVideosFromChannel(ctx, channelID, maxVideos)
	if err != nil {
		return nil, err
	}

	results := make([]models.VideoComments, 0, len(videos))
	for _, video := range videos {
		comments, err := yc.GetVideoComments(ctx, video.ID, maxComments)
		if err != nil {
			return nil, err
		}
		results = append(results, models.VideoComments{VideoInfo: video, Comments: comments})
	}

	return results, nil
}

// get performs a GET against the API and decodes the JSON body into out.
// 5xx and 429 responses are retried with exponential backoff.
func (yc *YouTubeClient) get(ctx context.Context, resource string, params url.Values, out any) error {
	if yc.apiKey != "" {
		params.Set("key", yc.apiKey)
	}
	endpoint := yc.baseURL + "/" + resource + "?" + params.Encode()

	backoff := INITIAL_BACKOFF
	var lastErr error
	for attempt := 1; attempt <= MAX_RETRIES; attempt++ {
		body, err := yc.doRequest(ctx, endpoint)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("failed to decode %s response: %w", resource, err)
			}
			return nil
		}

		lastErr = err
		if !retryable(err) || attempt == MAX_RETRIES {
			break
		}

		slog.Warn("[YouTubeClient] Request failed, retrying with backoff",
			slog.String("resource", resource),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()))

		if err := utils.SleepContext(ctx, yc.clock, backoff); err != nil {
			return err
		}
		backoff *= 2
		if backoff > MAX_BACKOFF {
			backoff = MAX_BACKOFF
		}
	}

	return lastErr
}

func (yc *YouTubeClient) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", USER_AGENT)
	req.Header.Set("Accept", "application/json")

	resp, err := yc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: http.StatusText(status)}

	var errResp models.YouTubeErrorResponse
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Error.Message != "" {
			apiErr.Message = errResp.Error.Message
		}
		if len(errResp.Error.Errors) > 0 {
			apiErr.Reason = errResp.Error.Errors[0].Reason
		}
	}
	return apiErr
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	// network errors are worth another try unless the caller gave up
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
