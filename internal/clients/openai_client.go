package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/spacesedan/ytsentiment/internal/sentiment"
)

const (
	openAIRequestTimeout = 60 * time.Second // Timeout for individual OpenAI API requests
	defaultOpenAIModel   = "gpt-4o-mini"
)

var errEmptyCompletion = errors.New("model returned an empty response")

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // set to use an OpenAI compatible endpoint such as Gemini
	Model       string
	Temperature float64
	TopP        float64
	Timeout     time.Duration
}

// OpenAIClient classifies a single comment per chat completion. SDK retries
// are disabled; the orchestrator decides when to try again.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float64
	topP        float64
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("[OpenAIClient] missing API key: %w", sentiment.ErrFatal)
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = openAIRequestTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}

	slog.Info("[OpenAIClient] OpenAI client initialized",
		slog.String("model", cfg.Model),
		slog.Duration("timeout", cfg.Timeout))

	return &OpenAIClient{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
	}, nil
}

// Classify sends the analysis prompt for one comment and returns the raw
// model text.
func (c *OpenAIClient) Classify(ctx context.Context, text string) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(sentiment.BuildPrompt(text)),
		}),
		Model:       openai.F(openai.ChatModel(c.model)),
		Temperature: openai.Float(c.temperature),
		TopP:        openai.Float(c.topP),
	})
	if err != nil {
		return "", wrapOpenAIError(err)
	}

	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return "", errEmptyCompletion
	}

	return completion.Choices[0].Message.Content, nil
}

// wrapOpenAIError marks authentication and bad request failures as fatal so
// they are not retried.
func wrapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusBadRequest, http.StatusNotFound:
			return fmt.Errorf("[OpenAIClient] %w: %w", sentiment.ErrFatal, err)
		}
	}
	return fmt.Errorf("[OpenAIClient] chat completion failed: %w", err)
}
