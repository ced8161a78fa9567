package sentiment

import (
	"context"
	"log/slog"

	"github.com/spacesedan/ytsentiment/internal/models"
)

// Summarize counts labels across the analyzed comments. Anything that is not
// positive, negative or neutral, including comments without a record, is
// counted as unknown. Ties for the overall label resolve in the order
// positive, negative, neutral, unknown.
func Summarize(comments []models.Comment) models.SentimentSummary {
	var counts models.SentimentCounts

	for _, c := range comments {
		if c.Sentiment == nil {
			continue
		}
		switch c.Sentiment.Sentiment {
		case models.LabelPositive:
			counts.Positive++
		case models.LabelNegative:
			counts.Negative++
		case models.LabelNeutral:
			counts.Neutral++
		}
	}
	counts.Unknown = len(comments) - counts.Positive - counts.Negative - counts.Neutral

	ordered := []struct {
		label models.Label
		count int
	}{
		{models.LabelPositive, counts.Positive},
		{models.LabelNegative, counts.Negative},
		{models.LabelNeutral, counts.Neutral},
		{models.LabelUnknown, counts.Unknown},
	}

	overall := ordered[0]
	for _, candidate := range ordered[1:] {
		if candidate.count > overall.count {
			overall = candidate
		}
	}

	return models.SentimentSummary{
		Counts:           counts,
		TotalComments:    len(comments),
		OverallSentiment: overall.label,
	}
}

// AnalyzeVideo classifies every comment of a video and derives its summary.
func AnalyzeVideo(ctx context.Context, o *Orchestrator, video models.VideoComments) models.VideoResult {
	slog.Info("[Analyzer] Analyzing video comments",
		slog.String("video_id", video.VideoInfo.ID),
		slog.Int("comments", len(video.Comments)))

	comments := o.ClassifyBatch(ctx, video.Comments)
	summary := Summarize(comments)

	slog.Info("[Analyzer] Video analyzed",
		slog.String("video_id", video.VideoInfo.ID),
		slog.String("overall_sentiment", string(summary.OverallSentiment)),
		slog.Int("positive", summary.Counts.Positive),
		slog.Int("negative", summary.Counts.Negative),
		slog.Int("neutral", summary.Counts.Neutral),
		slog.Int("unknown", summary.Counts.Unknown))

	return models.VideoResult{
		VideoInfo: video.VideoInfo,
		Comments:  comments,
		Summary:   summary,
	}
}
