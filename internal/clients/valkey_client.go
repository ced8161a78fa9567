package clients

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/valkey-io/valkey-go"

	"github.com/spacesedan/ytsentiment/internal/models"
	"github.com/spacesedan/ytsentiment/internal/utils"
)

const (
	VALKEY_SENTIMENT_KEY_PREFIX = "ytsentiment:sentiment:"
	defaultCacheTTL             = 24 * time.Hour
	valkeyRetries               = 3
	valkeyRetryDelay            = 250 * time.Millisecond
)

type ValkeyConfig struct {
	Address  string
	Password string
	TLS      bool
	TTL      time.Duration
}

// SentimentCache keeps sentiment records per comment ID so repeated runs over
// the same video skip comments that were already classified.
type SentimentCache struct {
	Client valkey.Client
	opts   valkey.ClientOption
	ttl    time.Duration
	clock  clockwork.Clock
	mu     sync.Mutex
}

func clientOptions(cfg ValkeyConfig) valkey.ClientOption {
	opts := valkey.ClientOption{
		InitAddress:      []string{cfg.Address},
		Password:         cfg.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}
	return opts
}

func connect(opts valkey.ClientOption) (valkey.Client, error) {
	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}

	return client, nil
}

func NewSentimentCache(cfg ValkeyConfig, clock clockwork.Clock) (*SentimentCache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}

	opts := clientOptions(cfg)
	client, err := connect(opts)
	if err != nil {
		return nil, err
	}

	slog.Info("[ValkeyClient] Successfully connected to valkey",
		slog.String("address", cfg.Address),
		slog.Duration("ttl", cfg.TTL))

	return &SentimentCache{Client: client, opts: opts, ttl: cfg.TTL, clock: clock}, nil
}

func (sc *SentimentCache) recreateClient() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	slog.Warn("[ValkeyClient] Attempting to recreate Valkey client...")
	client, err := connect(sc.opts)
	if err != nil {
		slog.Error("[ValkeyClient] Recreate failed", slog.String("error", err.Error()))
		return
	}
	sc.Client.Close()
	sc.Client = client
	slog.Info("[ValkeyClient] Successfully reconnected to valkey")
}

func (sc *SentimentCache) client() valkey.Client {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.Client
}

func (sc *SentimentCache) Close() {
	sc.client().Close()
}

// Lookup returns the cached records for the given comment IDs. Misses are
// simply absent from the map.
func (sc *SentimentCache) Lookup(ctx context.Context, commentIDs []string) (map[string]models.SentimentRecord, error) {
	found := make(map[string]models.SentimentRecord, len(commentIDs))
	if len(commentIDs) == 0 {
		return found, nil
	}

	getAll := func(client valkey.Client) []valkey.Completed {
		completed := make([]valkey.Completed, 0, len(commentIDs))
		for _, id := range commentIDs {
			completed = append(completed, client.B().Get().Key(sentimentKey(id)).Build())
		}
		return completed
	}

	for i, res := range sc.DoMultiWithRetry(ctx, getAll, valkeyRetries) {
		raw, err := res.ToString()
		if valkey.IsValkeyNil(err) {
			continue
		}
		if err != nil {
			return found, fmt.Errorf("[ValkeyClient] failed to read cached sentiment: %w", err)
		}

		record, ok := decodeCachedRecord(raw)
		if !ok {
			slog.Warn("[ValkeyClient] Dropping unreadable cache entry",
				slog.String("comment_id", commentIDs[i]))
			continue
		}
		found[commentIDs[i]] = record
	}

	return found, nil
}

// Store caches the records of annotated comments. Records carrying an error
// are skipped so failed comments get another try on the next run.
func (sc *SentimentCache) Store(ctx context.Context, comments []models.Comment) error {
	entries, err := cacheEntries(comments)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	setAll := func(client valkey.Client) []valkey.Completed {
		completed := make([]valkey.Completed, 0, len(entries))
		for _, e := range entries {
			completed = append(completed, client.B().Set().Key(e.key).Value(e.payload).Ex(sc.ttl).Build())
		}
		return completed
	}

	for _, res := range sc.DoMultiWithRetry(ctx, setAll, valkeyRetries) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("[ValkeyClient] failed to cache sentiment: %w", err)
		}
	}

	slog.Info("[ValkeyClient] Cached sentiment records",
		slog.Int("count", len(entries)))
	return nil
}

// DoMultiWithRetry sends the commands made by build, retrying failed
// pipelines. Commands go back to the client's pool once DoMulti returns, so
// build runs again for every attempt.
func (sc *SentimentCache) DoMultiWithRetry(ctx context.Context, build func(valkey.Client) []valkey.Completed, retries int) []valkey.ValkeyResult {
	var results []valkey.ValkeyResult

	_ = retryValkey(ctx, sc.clock, retries, func() error {
		client := sc.client()
		results = client.DoMulti(ctx, build(client)...)
		for _, r := range results {
			if err := r.Error(); err != nil && !valkey.IsValkeyNil(err) {
				return err
			}
		}
		return nil
	}, sc.recreateClient)

	return results
}

func retryValkey(ctx context.Context, clock clockwork.Clock, retries int, op func() error, reconnect func()) error {
	var err error
	for i := 0; i < retries; i++ {
		if err = op(); err == nil {
			return nil
		}

		slog.Warn("[ValkeyClient] Do Multi failed",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
		if isConnectionError(err) {
			reconnect()
		}
		if i == retries-1 {
			break
		}
		if waitErr := utils.SleepContext(ctx, clock, valkeyRetryDelay); waitErr != nil {
			break
		}
	}
	return err
}

type cacheEntry struct {
	key     string
	payload string
}

// cacheEntries encodes the records worth caching. Comments whose record
// carries an error are left out.
func cacheEntries(comments []models.Comment) ([]cacheEntry, error) {
	var entries []cacheEntry
	for _, c := range comments {
		if !cacheable(c) {
			continue
		}
		payload, err := json.Marshal(c.Sentiment)
		if err != nil {
			return nil, fmt.Errorf("[ValkeyClient] failed to encode sentiment: %w", err)
		}
		entries = append(entries, cacheEntry{key: sentimentKey(c.ID), payload: string(payload)})
	}
	return entries, nil
}

func sentimentKey(commentID string) string {
	return VALKEY_SENTIMENT_KEY_PREFIX + commentID
}

func cacheable(c models.Comment) bool {
	return c.ID != "" && c.Sentiment != nil && c.Sentiment.Error == ""
}

func decodeCachedRecord(raw string) (models.SentimentRecord, bool) {
	var record models.SentimentRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil || record.Sentiment == "" {
		return models.SentimentRecord{}, false
	}
	if record.KeyPhrases == nil {
		record.KeyPhrases = []string{}
	}
	if record.Topics == nil {
		record.Topics = []string{}
	}
	if record.EmotionalTone == nil {
		record.EmotionalTone = []string{}
	}
	return record, true
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
