package kafka_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/spacesedan/ytsentiment/internal/models"
)

// transactionalProducer is the subset of *kafka.Producer used here.
type transactionalProducer interface {
	BeginTransaction() error
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	CommitTransaction(ctx context.Context) error
	AbortTransaction(ctx context.Context) error
	Flush(timeoutMs int) int
	Close()
}

// CommentMessage is the payload published for each analyzed comment.
type CommentMessage struct {
	VideoID string         `json:"video_id"`
	Comment models.Comment `json:"comment"`
}

// SummaryMessage closes the set of messages for one video.
type SummaryMessage struct {
	VideoInfo models.VideoInfo        `json:"video_info"`
	Summary   models.SentimentSummary `json:"sentiment_summary"`
}

// ResultPublisher publishes a video's analyzed comments and its summary in a
// single Kafka transaction.
type ResultPublisher struct {
	producer transactionalProducer
	topic    string
}

func NewResultPublisher(ctx context.Context, cfg KafkaConfig) (*ResultPublisher, error) {
	cfg = cfg.withDefaults()
	slog.Info("[KafkaClient] Initializing Kafka Producer...",
		slog.String("broker", cfg.Broker),
		slog.String("topic", cfg.Topic))

	p, err := kafka.NewProducer(cfg.producerConfig())
	if err != nil {
		return nil, fmt.Errorf("[KafkaClient] Failed to create producer: %w", err)
	}

	if err := p.InitTransactions(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("[KafkaClient] Failed to init transactions: %w", err)
	}

	slog.Info("[KafkaClient] Kafka Producer initialized successfully")
	return &ResultPublisher{producer: p, topic: cfg.Topic}, nil
}

func (rp *ResultPublisher) Close() {
	slog.Info("[KafkaClient] Flushing Kafka producer before shutdown...")
	if remaining := rp.producer.Flush(FLUSH_TIMEOUT_MS); remaining > 0 {
		slog.Warn("[KafkaClient] Not all messages were delivered before shutdown",
			slog.Int("remaining", remaining))
	}
	rp.producer.Close()
	slog.Info("[KafkaClient] Kafka producer shut down")
}

// PublishVideoResult sends every annotated comment keyed by its ID, followed
// by the video summary. Either all messages are committed or none are.
func (rp *ResultPublisher) PublishVideoResult(ctx context.Context, result models.VideoResult) error {
	messages, err := rp.buildMessages(result)
	if err != nil {
		return err
	}

	if err := rp.producer.BeginTransaction(); err != nil {
		return fmt.Errorf("[KafkaClient] failed to begin transaction: %w", err)
	}

	for _, msg := range messages {
		if err := rp.produce(msg); err != nil {
			return rp.abort(ctx, err)
		}
	}

	var commitErr error
	for i := 0; i < MAX_RETRIES; i++ {
		commitErr = rp.producer.CommitTransaction(ctx)
		if commitErr == nil {
			break
		}
		if kafkaErr, ok := commitErr.(kafka.Error); ok && !kafkaErr.IsRetriable() {
			break
		}
		slog.Warn("[KafkaClient] Failed to commit transaction, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", commitErr.Error()))
	}
	if commitErr != nil {
		return rp.abort(ctx, fmt.Errorf("[KafkaClient] failed to commit transaction: %w", commitErr))
	}

	slog.Info("[KafkaClient] Published video results to Kafka transactionally",
		slog.String("topic", rp.topic),
		slog.String("video_id", result.VideoInfo.ID),
		slog.Int("messages", len(messages)))
	return nil
}

func (rp *ResultPublisher) buildMessages(result models.VideoResult) ([]*kafka.Message, error) {
	messages := make([]*kafka.Message, 0, len(result.Comments)+1)

	for _, c := range result.Comments {
		if !c.Annotated() {
			continue
		}
		value, err := json.Marshal(CommentMessage{VideoID: result.VideoInfo.ID, Comment: c})
		if err != nil {
			return nil, fmt.Errorf("[KafkaClient] failed to encode comment %s: %w", c.ID, err)
		}
		messages = append(messages, rp.message(c.ID, MESSAGE_TYPE_COMMENT, value))
	}

	value, err := json.Marshal(SummaryMessage{VideoInfo: result.VideoInfo, Summary: result.Summary})
	if err != nil {
		return nil, fmt.Errorf("[KafkaClient] failed to encode summary: %w", err)
	}
	messages = append(messages, rp.message(result.VideoInfo.ID, MESSAGE_TYPE_SUMMARY, value))

	return messages, nil
}

func (rp *ResultPublisher) message(key, messageType string, value []byte) *kafka.Message {
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &rp.topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          value,
		Headers:        []kafka.Header{{Key: MESSAGE_TYPE_HEADER, Value: []byte(messageType)}},
	}
}

func (rp *ResultPublisher) produce(msg *kafka.Message) error {
	var err error
	for i := 0; i < MAX_RETRIES; i++ {
		err = rp.producer.Produce(msg, nil)
		if err == nil {
			return nil
		}
		slog.Warn("[KafkaClient] Failed to produce message, retrying...",
			slog.Int("attempt", i+1),
			slog.String("key", string(msg.Key)))
	}
	return fmt.Errorf("[KafkaClient] failed to produce message: %w", err)
}

func (rp *ResultPublisher) abort(ctx context.Context, cause error) error {
	if abortErr := rp.producer.AbortTransaction(ctx); abortErr != nil {
		return errors.Join(cause, fmt.Errorf("[KafkaClient] failed to abort transaction: %w", abortErr))
	}
	return cause
}
