package clients

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/ytsentiment/internal/models"
	"github.com/spacesedan/ytsentiment/internal/utils"
)

func TestSentimentKey(t *testing.T) {
	assert.Equal(t, "ytsentiment:sentiment:Ugx123", sentimentKey("Ugx123"))
}

func TestCacheable(t *testing.T) {
	ok := models.Comment{ID: "a"}.WithSentiment(models.DefaultSentimentRecord())
	failed := models.Comment{ID: "b"}.WithSentiment(models.FailedSentimentRecord("timeout"))

	assert.True(t, cacheable(ok))
	assert.False(t, cacheable(failed))
	assert.False(t, cacheable(models.Comment{ID: "c"}))
	assert.False(t, cacheable(models.Comment{Sentiment: ok.Sentiment}))
}

func TestDecodeCachedRecord(t *testing.T) {
	record, ok := decodeCachedRecord(`{"sentiment":"negative","score":-0.3}`)

	assert.True(t, ok)
	assert.Equal(t, models.LabelNegative, record.Sentiment)
	assert.Equal(t, -0.3, record.Score)
	assert.Equal(t, []string{}, record.KeyPhrases)
	assert.Equal(t, []string{}, record.Topics)
	assert.Equal(t, []string{}, record.EmotionalTone)

	_, ok = decodeCachedRecord("not json")
	assert.False(t, ok)

	_, ok = decodeCachedRecord(`{}`)
	assert.False(t, ok)
}

func TestIsConnectionError(t *testing.T) {
	assert.True(t, isConnectionError(errors.New("dial tcp: connection refused")))
	assert.True(t, isConnectionError(errors.New("read: i/o timeout")))
	assert.False(t, isConnectionError(errors.New("WRONGTYPE Operation")))
	assert.False(t, isConnectionError(nil))
}

func TestCacheEntries(t *testing.T) {
	comments := []models.Comment{
		models.Comment{ID: "ok"}.WithSentiment(models.DefaultSentimentRecord()),
		models.Comment{ID: "failed"}.WithSentiment(models.FailedSentimentRecord("timeout")),
		{ID: "raw"},
	}

	entries, err := cacheEntries(comments)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ytsentiment:sentiment:ok", entries[0].key)
	record, ok := decodeCachedRecord(entries[0].payload)
	assert.True(t, ok)
	assert.Equal(t, models.DefaultSentimentRecord(), record)
}

func TestRetryValkey_RebuildsEachAttempt(t *testing.T) {
	clock := clockwork.NewFakeClock()
	start := clock.Now()
	builds, reconnects := 0, 0
	var attemptTimes []time.Duration

	var err error
	utils.RunWithFakeClock(clock, 50*time.Millisecond, func() {
		err = retryValkey(context.Background(), clock, valkeyRetries, func() error {
			// stands in for building fresh commands and sending them
			builds++
			attemptTimes = append(attemptTimes, clock.Since(start))
			if builds < 3 {
				return errors.New("dial tcp: connection refused")
			}
			return nil
		}, func() { reconnects++ })
	})

	require.NoError(t, err)
	assert.Equal(t, 3, builds)
	assert.Equal(t, 2, reconnects)
	assert.Equal(t, []time.Duration{0, 250 * time.Millisecond, 500 * time.Millisecond}, attemptTimes)
}

func TestRetryValkey_GivesUp(t *testing.T) {
	clock := clockwork.NewFakeClock()
	attempts := 0

	var err error
	utils.RunWithFakeClock(clock, 50*time.Millisecond, func() {
		err = retryValkey(context.Background(), clock, valkeyRetries, func() error {
			attempts++
			return errors.New("WRONGTYPE Operation")
		}, func() { t.Error("reconnect on a non-connection error") })
	})

	assert.EqualError(t, err, "WRONGTYPE Operation")
	assert.Equal(t, valkeyRetries, attempts)
}

func TestRetryValkey_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := retryValkey(ctx, clockwork.NewFakeClock(), valkeyRetries, func() error {
		attempts++
		cancel()
		return errors.New("read: i/o timeout")
	}, func() {})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}
