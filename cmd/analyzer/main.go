package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/spacesedan/ytsentiment/config"
	"github.com/spacesedan/ytsentiment/internal/clients"
	"github.com/spacesedan/ytsentiment/internal/clients/kafka_client"
	"github.com/spacesedan/ytsentiment/internal/db"
	"github.com/spacesedan/ytsentiment/internal/logging"
	"github.com/spacesedan/ytsentiment/internal/processing"
	"github.com/spacesedan/ytsentiment/internal/report"
	"github.com/spacesedan/ytsentiment/internal/sentiment"
)

type cliOptions struct {
	channel     string
	video       string
	maxVideos   int
	maxComments int
	outputDir   string
	saveRaw     bool
	dataDir     string
}

func parseFlags() cliOptions {
	var opts cliOptions
	flag.StringVar(&opts.channel, "channel", "", "YouTube channel name or ID")
	flag.StringVar(&opts.video, "video", "", "YouTube video ID")
	flag.IntVar(&opts.maxVideos, "max-videos", 5, "Maximum number of videos to analyze from channel")
	flag.IntVar(&opts.maxComments, "max-comments", 100, "Maximum number of comments to analyze per video")
	flag.StringVar(&opts.outputDir, "output-dir", "reports", "Directory to save reports")
	flag.BoolVar(&opts.saveRaw, "save-raw", false, "Save raw comments data before analysis")
	flag.StringVar(&opts.dataDir, "data-dir", "data", "Directory for raw comment data")
	flag.Parse()
	return opts
}

func main() {
	opts := parseFlags()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel)

	if opts.channel == "" && opts.video == "" {
		fmt.Fprintln(os.Stderr, "Error: Either -channel or -video must be specified")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil {
		slog.Error("[Analyzer] Run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts cliOptions) error {
	clock := clockwork.NewRealClock()

	youtube, err := clients.NewYouTubeClient(clients.YouTubeConfig{
		APIKey:      cfg.YouTube.APIKey,
		AccessToken: cfg.YouTube.AccessToken,
		BaseURL:     cfg.YouTube.BaseURL,
		Timeout:     cfg.YouTube.Timeout,
	}, clock)
	if err != nil {
		return err
	}

	classifier, err := newClassifier(cfg.LLM)
	if err != nil {
		return err
	}

	orchestrator := sentiment.NewOrchestrator(classifier, sentiment.BatchConfig{
		BatchSize:  cfg.Batch.BatchSize,
		BaseDelay:  cfg.Batch.RateLimitDelay,
		MaxRetries: cfg.Batch.MaxRetries,
	}, clock)

	generator, err := report.NewGenerator(opts.outputDir)
	if err != nil {
		return err
	}

	pipelineOpts, cleanup := sinkOptions(ctx, cfg, clock)
	defer cleanup()
	if opts.saveRaw {
		pipelineOpts = append(pipelineOpts, processing.WithRawDir(opts.dataDir))
	}

	pipeline := processing.NewPipeline(youtube, orchestrator, generator, pipelineOpts...)

	var reports []processing.VideoReport
	if opts.video != "" {
		reports, err = pipeline.RunVideo(ctx, opts.video, opts.maxComments)
	} else {
		reports, err = pipeline.RunChannel(ctx, opts.channel, opts.maxVideos, opts.maxComments)
	}
	if err != nil {
		return err
	}

	printReports(reports)
	return nil
}

func newClassifier(cfg config.LLMConfig) (sentiment.Classifier, error) {
	if cfg.Provider == config.ProviderVader {
		slog.Info("[Analyzer] Using offline VADER classifier")
		return sentiment.NewVaderClassifier(), nil
	}
	client, err := clients.NewOpenAIClient(clients.OpenAIConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// sinkOptions connects the optional cache and sinks. A sink that cannot be
// reached is logged and left out.
func sinkOptions(ctx context.Context, cfg *config.Config, clock clockwork.Clock) ([]processing.Option, func()) {
	var opts []processing.Option
	var closers []func()

	if cfg.Valkey.Address != "" {
		cache, err := clients.NewSentimentCache(clients.ValkeyConfig{
			Address:  cfg.Valkey.Address,
			Password: cfg.Valkey.Password,
			TLS:      cfg.Valkey.TLS,
			TTL:      cfg.Valkey.TTL,
		}, clock)
		if err != nil {
			slog.Warn("[Analyzer] Sentiment cache disabled", slog.String("error", err.Error()))
		} else {
			opts = append(opts, processing.WithCache(cache))
			closers = append(closers, cache.Close)
		}
	}

	if cfg.DynamoDB.Enabled {
		client, err := clients.NewDynamoDBClient(ctx, clients.AWSConfig{
			Region:   cfg.DynamoDB.Region,
			Endpoint: cfg.DynamoDB.Endpoint,
		})
		if err != nil {
			slog.Warn("[Analyzer] DynamoDB store disabled", slog.String("error", err.Error()))
		} else {
			opts = append(opts, processing.WithStore(db.NewCommentStore(client, cfg.DynamoDB.Table, clock)))
		}
	}

	if cfg.Kafka.Broker != "" {
		publisher, err := kafka_client.NewResultPublisher(ctx, kafka_client.KafkaConfig{
			Broker:        cfg.Kafka.Broker,
			Topic:         cfg.Kafka.Topic,
			TransactionID: cfg.Kafka.TransactionID,
		})
		if err != nil {
			slog.Warn("[Analyzer] Kafka publisher disabled", slog.String("error", err.Error()))
		} else {
			opts = append(opts, processing.WithPublisher(publisher))
			closers = append(closers, publisher.Close)
		}
	}

	return opts, func() {
		for _, c := range closers {
			c()
		}
	}
}

func printReports(reports []processing.VideoReport) {
	for _, r := range reports {
		s := r.Result.Summary
		fmt.Printf("Video %s (%s)\n", r.Result.VideoInfo.ID, r.Result.VideoInfo.Title)
		fmt.Printf("  comments: %d  overall: %s  positive: %d  negative: %d  neutral: %d  unknown: %d\n",
			s.TotalComments, s.OverallSentiment, s.Counts.Positive, s.Counts.Negative, s.Counts.Neutral, s.Counts.Unknown)

		kinds := make([]string, 0, len(r.ReportPaths))
		for kind := range r.ReportPaths {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			fmt.Printf("  - %s: %s\n", kind, r.ReportPaths[kind])
		}
	}
	fmt.Println("Sentiment analysis complete!")
}
