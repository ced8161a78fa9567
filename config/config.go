package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderOpenAI = "openai"
	ProviderVader  = "vader"
)

type YouTubeConfig struct {
	APIKey      string
	AccessToken string
	BaseURL     string
	Timeout     time.Duration
}

type LLMConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	TopP        float64
	Timeout     time.Duration
}

type BatchConfig struct {
	BatchSize      int
	RateLimitDelay time.Duration
	MaxRetries     int
}

type ValkeyConfig struct {
	Address  string
	Password string
	TLS      bool
	TTL      time.Duration
}

type DynamoDBConfig struct {
	Enabled  bool
	Region   string
	Endpoint string
	Table    string
}

type KafkaConfig struct {
	Broker        string
	Topic         string
	TransactionID string
}

// Config is built once at startup and handed to constructors; nothing else
// reads the environment.
type Config struct {
	AppEnv   string
	LogLevel string

	YouTube  YouTubeConfig
	LLM      LLMConfig
	Batch    BatchConfig
	Valkey   ValkeyConfig
	DynamoDB DynamoDBConfig
	Kafka    KafkaConfig
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		YouTube: YouTubeConfig{
			APIKey:      os.Getenv("YOUTUBE_API_KEY"),
			AccessToken: os.Getenv("YOUTUBE_ACCESS_TOKEN"),
			BaseURL:     getEnv("YOUTUBE_BASE_URL", "https://www.googleapis.com/youtube/v3"),
			Timeout:     durationEnv("YOUTUBE_TIMEOUT", 30*time.Second, &errs),
		},
		LLM: LLMConfig{
			Provider:    strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			BaseURL:     os.Getenv("OPENAI_BASE_URL"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature: floatEnv("LLM_TEMPERATURE", 0.2, &errs),
			TopP:        floatEnv("LLM_TOP_P", 0.8, &errs),
			Timeout:     durationEnv("LLM_TIMEOUT", 60*time.Second, &errs),
		},
		Batch: BatchConfig{
			BatchSize:      intEnv("BATCH_SIZE", 10, &errs),
			RateLimitDelay: durationEnv("RATE_LIMIT_DELAY", 2*time.Second, &errs),
			MaxRetries:     intEnv("MAX_RETRIES", 3, &errs),
		},
		Valkey: ValkeyConfig{
			Address:  os.Getenv("VALKEY_INIT_ADDRESS"),
			Password: os.Getenv("VALKEY_PASSWORD"),
			TLS:      os.Getenv("VALKEY_TLS") == "true",
			TTL:      durationEnv("CACHE_TTL", 24*time.Hour, &errs),
		},
		DynamoDB: DynamoDBConfig{
			Enabled:  os.Getenv("DYNAMODB_ENABLED") == "true",
			Region:   getEnv("AWS_REGION", "us-west-2"),
			Endpoint: os.Getenv("AWS_ENDPOINT"),
			Table:    getEnv("DYNAMODB_TABLE", "CommentSentiment"),
		},
		Kafka: KafkaConfig{
			Broker:        os.Getenv("KAFKA_BROKER"),
			Topic:         getEnv("KAFKA_RESULTS_TOPIC", "comment-sentiment-results"),
			TransactionID: getEnv("KAFKA_TRANSACTION_ID", "ytsentiment-producer-1"),
		},
	}

	errs = append(errs, validate(cfg)...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	return cfg, nil
}

func validate(cfg *Config) []error {
	var errs []error

	if cfg.YouTube.APIKey == "" && cfg.YouTube.AccessToken == "" {
		errs = append(errs, errors.New("YOUTUBE_API_KEY or YOUTUBE_ACCESS_TOKEN is required"))
	}

	switch cfg.LLM.Provider {
	case ProviderOpenAI:
		if cfg.LLM.APIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case ProviderVader:
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLM.Provider))
	}

	if cfg.Batch.BatchSize <= 0 {
		errs = append(errs, errors.New("BATCH_SIZE must be positive"))
	}
	if cfg.Batch.MaxRetries <= 0 {
		errs = append(errs, errors.New("MAX_RETRIES must be positive"))
	}
	if cfg.Batch.RateLimitDelay < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_DELAY must not be negative"))
	}

	return errs
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int, errs *[]error) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func floatEnv(key string, defaultValue float64, errs *[]error) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

// durationEnv accepts Go durations ("1500ms") or plain seconds ("2", "0.5").
func durationEnv(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return defaultValue
	}
	return time.Duration(secs * float64(time.Second))
}
