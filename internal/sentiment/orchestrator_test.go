package sentiment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/ytsentiment/internal/models"
	"github.com/spacesedan/ytsentiment/internal/utils"
)

type countingClassifier struct {
	calls   int
	texts   []string
	at      []time.Duration // fake time elapsed when each call was made
	clock   clockwork.Clock
	start   time.Time
	respond func(call int, text string) (string, error)
}

func (c *countingClassifier) Classify(_ context.Context, text string) (string, error) {
	c.calls++
	c.texts = append(c.texts, text)
	if c.clock != nil {
		c.at = append(c.at, c.clock.Since(c.start))
	}
	return c.respond(c.calls, text)
}

func positiveResponse(int, string) (string, error) {
	return `{"sentiment":"positive","score":0.9,"key_phrases":["nice"],"topics":["video"],"emotional_tone":["happy"]}`, nil
}

func makeComments(n int) []models.Comment {
	comments := make([]models.Comment, n)
	for i := range comments {
		comments[i] = models.Comment{
			ID:     fmt.Sprintf("c%d", i),
			Text:   fmt.Sprintf("comment number %d", i),
			Author: "viewer",
		}
	}
	return comments
}

type testRun struct {
	orchestrator *Orchestrator
	clock        utils.FakeClock
	start        time.Time
}

func newTestRun(c *countingClassifier, cfg BatchConfig, opts ...Option) *testRun {
	clock := clockwork.NewFakeClock()
	c.clock = clock
	c.start = clock.Now()

	opts = append([]Option{WithJitter(func() float64 { return 1.0 })}, opts...)
	return &testRun{
		orchestrator: NewOrchestrator(c, cfg, clock, opts...),
		clock:        clock,
		start:        c.start,
	}
}

// classify runs the batch while moving the fake clock past every wait.
func (r *testRun) classify(ctx context.Context, comments []models.Comment) []models.Comment {
	var got []models.Comment
	utils.RunWithFakeClock(r.clock, 100*time.Millisecond, func() {
		got = r.orchestrator.ClassifyBatch(ctx, comments)
	})
	return got
}

func (r *testRun) elapsed() time.Duration {
	return r.clock.Since(r.start)
}

var testConfig = BatchConfig{BatchSize: 2, BaseDelay: 2 * time.Second, MaxRetries: 3}

func TestClassifyBatch_EmptyInput(t *testing.T) {
	classifier := &countingClassifier{respond: positiveResponse}
	run := newTestRun(classifier, testConfig)

	got := run.classify(context.Background(), nil)

	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, classifier.calls)
	assert.Zero(t, run.elapsed())
}

func TestClassifyBatch_PreservesOrderAndLength(t *testing.T) {
	classifier := &countingClassifier{respond: func(_ int, text string) (string, error) {
		return fmt.Sprintf(`{"sentiment":"neutral","score":0,"key_phrases":[%q],"topics":[],"emotional_tone":[]}`, text), nil
	}}
	comments := makeComments(5)

	got := newTestRun(classifier, testConfig).classify(context.Background(), comments)

	require.Len(t, got, len(comments))
	for i, c := range got {
		assert.Equal(t, comments[i].ID, c.ID)
		require.NotNil(t, c.Sentiment)
		assert.Equal(t, []string{comments[i].Text}, c.Sentiment.KeyPhrases)
	}
	assert.Equal(t, 5, classifier.calls)
}

func TestClassifyBatch_DoesNotMutateInput(t *testing.T) {
	classifier := &countingClassifier{respond: positiveResponse}
	comments := makeComments(2)

	newTestRun(classifier, testConfig).classify(context.Background(), comments)

	for _, c := range comments {
		assert.Nil(t, c.Sentiment)
	}
}

func TestClassifyBatch_PacesBetweenSuccessfulCalls(t *testing.T) {
	classifier := &countingClassifier{respond: positiveResponse}
	run := newTestRun(classifier, testConfig)

	run.classify(context.Background(), makeComments(3))

	// one wait between each pair of items, none after the last
	assert.Equal(t, []time.Duration{0, 2 * time.Second, 4 * time.Second}, classifier.at)
	assert.Equal(t, 4*time.Second, run.elapsed())
}

func TestClassifyBatch_SkipsAnnotatedComments(t *testing.T) {
	classifier := &countingClassifier{respond: positiveResponse}
	existing := models.SentimentRecord{
		Sentiment:     models.LabelNegative,
		Score:         -0.5,
		KeyPhrases:    []string{},
		Topics:        []string{},
		EmotionalTone: []string{},
	}
	comments := []models.Comment{models.Comment{ID: "done", Text: "already analyzed"}.WithSentiment(existing)}
	run := newTestRun(classifier, testConfig)

	got := run.classify(context.Background(), comments)

	require.Len(t, got, 1)
	assert.Equal(t, comments[0], got[0])
	assert.Zero(t, classifier.calls)
	assert.Zero(t, run.elapsed())
}

func TestClassifyBatch_ExhaustedRetries(t *testing.T) {
	classifier := &countingClassifier{respond: func(int, string) (string, error) {
		return "", errors.New("connection reset by peer")
	}}
	comments := makeComments(4)

	got := newTestRun(classifier, testConfig).classify(context.Background(), comments)

	require.Len(t, got, len(comments))
	for _, c := range got {
		require.NotNil(t, c.Sentiment)
		assert.Equal(t, models.LabelUnknown, c.Sentiment.Sentiment)
		assert.Equal(t, "connection reset by peer", c.Sentiment.Error)
		assert.Equal(t, []string{}, c.Sentiment.Topics)
	}
	assert.Equal(t, len(comments)*testConfig.MaxRetries, classifier.calls)
}

func TestClassifyBatch_ExponentialBackoff(t *testing.T) {
	classifier := &countingClassifier{respond: func(call int, text string) (string, error) {
		if call < 3 {
			return "", errors.New("service unavailable")
		}
		return positiveResponse(call, text)
	}}

	got := newTestRun(classifier, testConfig).classify(context.Background(), makeComments(1))

	require.Len(t, got, 1)
	assert.Equal(t, models.LabelPositive, got[0].Sentiment.Sentiment)
	assert.Empty(t, got[0].Sentiment.Error)
	// base * jitter(1.0) * 2^retry: 4s after the first failure, 8s after the second
	assert.Equal(t, []time.Duration{0, 4 * time.Second, 12 * time.Second}, classifier.at)
}

func TestClassifyBatch_QuotaBackoff(t *testing.T) {
	classifier := &countingClassifier{respond: func(call int, text string) (string, error) {
		switch call {
		case 1:
			return "", errors.New("googleapi: Error 429: Resource has been exhausted")
		case 2:
			return "", errors.New("Quota exceeded for this project")
		default:
			return positiveResponse(call, text)
		}
	}}
	run := newTestRun(classifier, testConfig)

	got := run.classify(context.Background(), makeComments(2))

	require.Len(t, got, 2)
	assert.Equal(t, models.LabelPositive, got[0].Sentiment.Sentiment)
	// 15s then 30s for the first item; no pacing after a retried item or after the last one
	assert.Equal(t, []time.Duration{0, 15 * time.Second, 45 * time.Second, 45 * time.Second}, classifier.at)
	assert.Equal(t, 45*time.Second, run.elapsed())
}

func TestClassifyBatch_FatalErrorIsNotRetried(t *testing.T) {
	classifier := &countingClassifier{respond: func(int, string) (string, error) {
		return "", fmt.Errorf("invalid api key: %w", ErrFatal)
	}}
	run := newTestRun(classifier, testConfig)

	got := run.classify(context.Background(), makeComments(2))

	require.Len(t, got, 2)
	assert.Equal(t, 2, classifier.calls)
	assert.Contains(t, got[0].Sentiment.Error, "invalid api key")
	assert.Zero(t, run.elapsed())
}

func TestClassifyBatch_UnparseableResponseIsAccepted(t *testing.T) {
	classifier := &countingClassifier{respond: func(int, string) (string, error) {
		return "I'd rather not say.", nil
	}}

	got := newTestRun(classifier, testConfig).classify(context.Background(), makeComments(1))

	require.Len(t, got, 1)
	assert.Equal(t, models.DefaultSentimentRecord(), *got[0].Sentiment)
	assert.Equal(t, 1, classifier.calls)
}

func TestClassifyBatch_CancelledContextKeepsAlignment(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	classifier := &countingClassifier{respond: func(call int, text string) (string, error) {
		cancel()
		return positiveResponse(call, text)
	}}

	got := newTestRun(classifier, testConfig).classify(ctx, makeComments(3))

	require.Len(t, got, 3)
	assert.Equal(t, 1, classifier.calls)
	assert.Equal(t, models.LabelPositive, got[0].Sentiment.Sentiment)
	for _, c := range got[1:] {
		require.NotNil(t, c.Sentiment)
		assert.Equal(t, context.Canceled.Error(), c.Sentiment.Error)
	}
}

func TestClassifyBatch_CancelInterruptsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	classifier := &countingClassifier{respond: func(int, string) (string, error) {
		cancel()
		return "", errors.New("service unavailable")
	}}
	o := NewOrchestrator(classifier, testConfig, clockwork.NewFakeClock())

	// nothing advances the clock, so only the cancellation can end the wait
	got := o.ClassifyBatch(ctx, makeComments(2))

	require.Len(t, got, 2)
	assert.Equal(t, 1, classifier.calls)
	for _, c := range got {
		require.NotNil(t, c.Sentiment)
		assert.Equal(t, context.Canceled.Error(), c.Sentiment.Error)
	}
}

func TestClassifyBatch_TruncatesLongComments(t *testing.T) {
	classifier := &countingClassifier{respond: positiveResponse}
	comments := []models.Comment{{ID: "long", Text: strings.Repeat("é", 1500)}}

	newTestRun(classifier, testConfig).classify(context.Background(), comments)

	require.Len(t, classifier.texts, 1)
	sent := []rune(classifier.texts[0])
	assert.Len(t, sent, 1000)
	assert.True(t, strings.HasSuffix(classifier.texts[0], "..."))
}

func TestTruncateComment_ShortTextUnchanged(t *testing.T) {
	text := strings.Repeat("a", 1000)
	assert.Equal(t, text, TruncateComment(text))
}

func TestBackoffDelay_JitterBounds(t *testing.T) {
	base := 2 * time.Second
	lower := 4 * time.Second
	upper := 12 * time.Second

	for i := 0; i < 1000; i++ {
		d := BackoffDelay(2, base, defaultJitter())
		assert.GreaterOrEqual(t, d, lower)
		assert.LessOrEqual(t, d, upper)
	}
}

func TestQuotaDelay(t *testing.T) {
	assert.Equal(t, 15*time.Second, QuotaDelay(1))
	assert.Equal(t, 45*time.Second, QuotaDelay(3))
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{name: "nil", err: nil, want: FailureNone},
		{name: "quota lower", err: errors.New("quota exceeded"), want: FailureQuota},
		{name: "quota mixed case", err: errors.New("RESOURCE QUOTA reached"), want: FailureQuota},
		{name: "http 429", err: errors.New(`POST "https://api.example.com": 429 Too Many Requests`), want: FailureQuota},
		{name: "generic", err: errors.New("502 bad gateway"), want: FailureTransient},
		{name: "fatal", err: fmt.Errorf("401: %w", ErrFatal), want: FailureFatal},
		{name: "cancelled", err: fmt.Errorf("call: %w", context.Canceled), want: FailureFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyFailure(tt.err))
		})
	}
}

func TestClassifyBatch_CustomFailureClassifier(t *testing.T) {
	classifier := &countingClassifier{respond: func(int, string) (string, error) {
		return "", errors.New("slow down")
	}}
	run := newTestRun(classifier, BatchConfig{MaxRetries: 2, BaseDelay: time.Second},
		WithFailureClassifier(func(error) FailureKind { return FailureQuota }))

	run.classify(context.Background(), makeComments(1))

	assert.Equal(t, 2, classifier.calls)
	assert.Equal(t, []time.Duration{0, 15 * time.Second}, classifier.at)
}
