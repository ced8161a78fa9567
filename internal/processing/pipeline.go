package processing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spacesedan/ytsentiment/internal/models"
	"github.com/spacesedan/ytsentiment/internal/report"
	"github.com/spacesedan/ytsentiment/internal/sentiment"
)

// CommentProvider fetches comments from the video platform.
type CommentProvider interface {
	GetVideoComments(ctx context.Context, videoID string, maxResults int) ([]models.Comment, error)
	GetCommentsFromChannel(ctx context.Context, channelIDOrName string, maxVideos, maxComments int) ([]models.VideoComments, error)
}

// SentimentCache remembers records across runs, keyed by comment ID.
type SentimentCache interface {
	Lookup(ctx context.Context, commentIDs []string) (map[string]models.SentimentRecord, error)
	Store(ctx context.Context, comments []models.Comment) error
}

type ResultStore interface {
	StoreVideoResult(ctx context.Context, result models.VideoResult) error
}

type ResultPublisher interface {
	PublishVideoResult(ctx context.Context, result models.VideoResult) error
}

type Reporter interface {
	GenerateFullReport(result models.VideoResult, videoID string) (map[string]string, error)
}

// VideoReport is what a run produces for one video.
type VideoReport struct {
	Result      models.VideoResult
	ReportPaths map[string]string
}

type Option func(*Pipeline)

func WithCache(c SentimentCache) Option {
	return func(p *Pipeline) { p.cache = c }
}

func WithStore(s ResultStore) Option {
	return func(p *Pipeline) { p.store = s }
}

func WithPublisher(pub ResultPublisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithRawDir saves the fetched comments to dir before analysis.
func WithRawDir(dir string) Option {
	return func(p *Pipeline) { p.rawDir = dir }
}

// Pipeline fetches comments, classifies them and hands the results to the
// configured sinks and the report generator.
type Pipeline struct {
	provider     CommentProvider
	orchestrator *sentiment.Orchestrator
	reporter     Reporter

	cache     SentimentCache
	store     ResultStore
	publisher ResultPublisher
	rawDir    string
}

func NewPipeline(provider CommentProvider, orchestrator *sentiment.Orchestrator, reporter Reporter, opts ...Option) *Pipeline {
	p := &Pipeline{
		provider:     provider,
		orchestrator: orchestrator,
		reporter:     reporter,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunVideo analyzes the comments of a single video.
func (p *Pipeline) RunVideo(ctx context.Context, videoID string, maxComments int) ([]VideoReport, error) {
	slog.Info("[Pipeline] Fetching comments for video", slog.String("video_id", videoID))

	comments, err := p.provider.GetVideoComments(ctx, videoID, maxComments)
	if err != nil {
		return nil, fmt.Errorf("[Pipeline] failed to fetch comments for video %s: %w", videoID, err)
	}

	videos := []models.VideoComments{{
		VideoInfo: models.VideoInfo{ID: videoID, Title: "Video " + videoID},
		Comments:  comments,
	}}
	p.saveRaw("video_"+videoID+"_raw.json", videos)

	return p.process(ctx, videos), nil
}

// RunChannel analyzes the most recent videos of a channel, given by ID or name.
func (p *Pipeline) RunChannel(ctx context.Context, channel string, maxVideos, maxComments int) ([]VideoReport, error) {
	slog.Info("[Pipeline] Fetching videos from channel", slog.String("channel", channel))

	videos, err := p.provider.GetCommentsFromChannel(ctx, channel, maxVideos, maxComments)
	if err != nil {
		return nil, fmt.Errorf("[Pipeline] failed to fetch comments for channel %s: %w", channel, err)
	}

	p.saveRaw("channel_"+strings.ReplaceAll(channel, " ", "_")+"_raw.json", videos)

	return p.process(ctx, videos), nil
}

func (p *Pipeline) process(ctx context.Context, videos []models.VideoComments) []VideoReport {
	reports := make([]VideoReport, 0, len(videos))
	for _, video := range videos {
		reports = append(reports, p.processVideo(ctx, video))
	}
	return reports
}

func (p *Pipeline) processVideo(ctx context.Context, video models.VideoComments) VideoReport {
	start := time.Now()
	videoID := video.VideoInfo.ID

	video.Comments = p.hydrate(ctx, video.Comments)
	result := sentiment.AnalyzeVideo(ctx, p.orchestrator, video)

	// sinks still run after the run is cancelled
	sinkCtx := context.WithoutCancel(ctx)
	if p.cache != nil {
		if err := p.cache.Store(sinkCtx, result.Comments); err != nil {
			slog.Warn("[Pipeline] Failed to cache sentiment records",
				slog.String("video_id", videoID),
				slog.String("error", err.Error()))
		}
	}
	if p.store != nil {
		if err := p.store.StoreVideoResult(sinkCtx, result); err != nil {
			slog.Error("[Pipeline] Failed to store video result",
				slog.String("video_id", videoID),
				slog.String("error", err.Error()))
		}
	}
	if p.publisher != nil {
		if err := p.publisher.PublishVideoResult(sinkCtx, result); err != nil {
			slog.Error("[Pipeline] Failed to publish video result",
				slog.String("video_id", videoID),
				slog.String("error", err.Error()))
		}
	}

	paths, err := p.reporter.GenerateFullReport(result, videoID)
	if err != nil {
		slog.Error("[Pipeline] Failed to generate reports",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()))
	}

	slog.Info("[Pipeline] Finished video",
		slog.String("video_id", videoID),
		slog.Int("reports", len(paths)),
		slog.Duration("duration", time.Since(start)))

	return VideoReport{Result: result, ReportPaths: paths}
}

// hydrate attaches cached records to comments that have none, so the
// orchestrator skips them.
func (p *Pipeline) hydrate(ctx context.Context, comments []models.Comment) []models.Comment {
	if p.cache == nil || len(comments) == 0 {
		return comments
	}

	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		if !c.Annotated() && c.ID != "" {
			ids = append(ids, c.ID)
		}
	}

	cached, err := p.cache.Lookup(ctx, ids)
	if err != nil {
		slog.Warn("[Pipeline] Cache lookup failed, analyzing all comments",
			slog.String("error", err.Error()))
	}
	if len(cached) == 0 {
		return comments
	}

	hydrated := make([]models.Comment, len(comments))
	for i, c := range comments {
		if record, ok := cached[c.ID]; ok && !c.Annotated() {
			c = c.WithSentiment(record)
		}
		hydrated[i] = c
	}

	slog.Info("[Pipeline] Reusing cached sentiment", slog.Int("cached", len(cached)))
	return hydrated
}

func (p *Pipeline) saveRaw(name string, videos []models.VideoComments) {
	if p.rawDir == "" {
		return
	}

	raw := make(map[string]models.VideoComments, len(videos))
	for _, v := range videos {
		raw[v.VideoInfo.ID] = v
	}

	path, err := report.SaveRaw(p.rawDir, name, raw)
	if err != nil {
		slog.Warn("[Pipeline] Failed to save raw comments", slog.String("error", err.Error()))
		return
	}
	slog.Info("[Pipeline] Raw comments saved", slog.String("path", path))
}
