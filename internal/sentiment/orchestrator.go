package sentiment

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/spacesedan/ytsentiment/internal/models"
	"github.com/spacesedan/ytsentiment/internal/utils"
)

const (
	DefaultBatchSize  = 10
	DefaultBaseDelay  = 2 * time.Second
	DefaultMaxRetries = 3

	quotaBackoffStep = 15 * time.Second
)

// Classifier sends one comment to the classification service and returns
// its raw text output.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

type ClassifierFunc func(ctx context.Context, text string) (string, error)

func (f ClassifierFunc) Classify(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// BatchConfig controls pacing and retries. BatchSize only groups progress
// reporting; items are always classified one at a time.
type BatchConfig struct {
	BatchSize  int
	BaseDelay  time.Duration
	MaxRetries int
}

func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BatchSize:  DefaultBatchSize,
		BaseDelay:  DefaultBaseDelay,
		MaxRetries: DefaultMaxRetries,
	}
}

func (c BatchConfig) withDefaults() BatchConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = 0
	}
	return c
}

type Option func(*Orchestrator)

// WithJitter overrides the jitter source. Values are expected in [0.5, 1.5).
func WithJitter(j func() float64) Option {
	return func(o *Orchestrator) { o.jitter = j }
}

func WithFailureClassifier(fc FailureClassifier) Option {
	return func(o *Orchestrator) { o.classifyFailure = fc }
}

// Orchestrator classifies comments strictly sequentially, one call in flight
// at a time, with pacing, backoff and bounded retries.
type Orchestrator struct {
	classifier      Classifier
	cfg             BatchConfig
	classifyFailure FailureClassifier
	clock           clockwork.Clock
	jitter          func() float64
}

func NewOrchestrator(classifier Classifier, cfg BatchConfig, clock clockwork.Clock, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		classifier:      classifier,
		cfg:             cfg.withDefaults(),
		classifyFailure: ClassifyFailure,
		clock:           clock,
		jitter:          defaultJitter,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type batchStats struct {
	analyzed int
	skipped  int
	failed   int
	unparsed int
	retries  int
}

// ClassifyBatch returns the comments annotated with sentiment records, in
// input order and with the same length. Comments that already carry a record
// pass through without a call. Failures never escape: an item that runs out
// of retries gets the default record with the last error attached.
func (o *Orchestrator) ClassifyBatch(ctx context.Context, comments []models.Comment) []models.Comment {
	results := make([]models.Comment, 0, len(comments))
	if len(comments) == 0 {
		return results
	}

	start := o.clock.Now()
	var stats batchStats
	batches := utils.Chunk(comments, o.cfg.BatchSize)

	for i, batch := range batches {
		slog.Info("[Orchestrator] Analyzing comments",
			slog.Int("batch", i+1),
			slog.Int("batches", len(batches)),
			slog.Int("batch_size", len(batch)),
			slog.Int("done", len(results)),
			slog.Int("total", len(comments)))

		for _, comment := range batch {
			if err := ctx.Err(); err != nil {
				results = append(results, comment.WithSentiment(models.FailedSentimentRecord(err.Error())))
				stats.failed++
				continue
			}

			if comment.Annotated() {
				results = append(results, comment)
				stats.skipped++
				continue
			}

			record, retryCount := o.classifyComment(ctx, comment, &stats)
			results = append(results, comment.WithSentiment(record))
			stats.retries += retryCount
			if record.Error != "" {
				stats.failed++
			} else {
				stats.analyzed++
			}

			if retryCount == 0 && len(results) < len(comments) {
				// cancellation is picked up by the next iteration
				_ = utils.SleepContext(ctx, o.clock, o.cfg.BaseDelay)
			}
		}
	}

	slog.Info("[Orchestrator] Finished analyzing comments",
		slog.Int("total", len(comments)),
		slog.Int("analyzed", stats.analyzed),
		slog.Int("skipped", stats.skipped),
		slog.Int("failed", stats.failed),
		slog.Int("unparsed", stats.unparsed),
		slog.Int("retries", stats.retries),
		slog.Duration("elapsed", o.clock.Since(start)))

	return results
}

// classifyComment runs the retry state machine for one comment and reports
// how many attempts failed.
func (o *Orchestrator) classifyComment(ctx context.Context, comment models.Comment, stats *batchStats) (models.SentimentRecord, int) {
	text := TruncateComment(comment.Text)
	retryCount := 0

	for {
		outcome := o.attempt(ctx, text, stats)
		if outcome.OK() {
			return outcome.Record, retryCount
		}

		retryCount++
		failure := outcome.Failure

		if failure.Kind == FailureFatal || retryCount >= o.cfg.MaxRetries {
			slog.Error("[Orchestrator] Failed to analyze comment, using default record",
				slog.String("comment_id", comment.ID),
				slog.Int("attempts", retryCount),
				slog.String("failure", failure.Kind.String()),
				slog.String("error", failure.Error()))
			return models.FailedSentimentRecord(failure.Error()), retryCount
		}

		var delay time.Duration
		if failure.Kind == FailureQuota {
			delay = QuotaDelay(retryCount)
			slog.Warn("[Orchestrator] Quota limit reached, waiting before retry",
				slog.String("comment_id", comment.ID),
				slog.Int("retry", retryCount),
				slog.Int("max_retries", o.cfg.MaxRetries),
				slog.Duration("delay", delay))
		} else {
			delay = BackoffDelay(retryCount, o.cfg.BaseDelay, o.jitter())
			slog.Warn("[Orchestrator] Classification failed, retrying",
				slog.String("comment_id", comment.ID),
				slog.Int("retry", retryCount),
				slog.Int("max_retries", o.cfg.MaxRetries),
				slog.Duration("delay", delay),
				slog.String("error", failure.Error()))
		}

		if err := utils.SleepContext(ctx, o.clock, delay); err != nil {
			return models.FailedSentimentRecord(err.Error()), retryCount
		}
	}
}

func (o *Orchestrator) attempt(ctx context.Context, text string, stats *batchStats) Outcome {
	raw, err := o.classifier.Classify(ctx, text)
	if err != nil {
		return Outcome{Failure: &Failure{Kind: o.classifyFailure(err), Err: err}}
	}

	record, parseFailure := interpret(raw)
	if parseFailure != nil {
		stats.unparsed++
	}
	return Outcome{Record: record}
}

// BackoffDelay is the wait before retry number retryCount on the general
// failure path: base * jitter * 2^retryCount.
func BackoffDelay(retryCount int, base time.Duration, jitter float64) time.Duration {
	return time.Duration(float64(base) * jitter * math.Pow(2, float64(retryCount)))
}

// QuotaDelay is the linear wait used after quota or rate-limit failures.
func QuotaDelay(retryCount int) time.Duration {
	return quotaBackoffStep * time.Duration(retryCount)
}

func defaultJitter() float64 {
	return 0.5 + rand.Float64()
}
