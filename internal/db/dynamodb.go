package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jonboulle/clockwork"

	"github.com/spacesedan/ytsentiment/internal/models"
	"github.com/spacesedan/ytsentiment/internal/utils"
)

const (
	COMMENT_SENTIMENT_TABLE_NAME = "CommentSentiment"

	maxBatchSize        = 25
	maxUnprocessedTry   = 3
	initialRetryBackoff = 500 * time.Millisecond
)

// BatchWriter is the part of the DynamoDB client the store needs.
type BatchWriter interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// commentItem is the stored row: one analyzed comment keyed by video and comment ID.
type commentItem struct {
	VideoID    string    `dynamodbav:"video_id"`
	VideoTitle string    `dynamodbav:"video_title,omitempty"`
	AnalyzedAt time.Time `dynamodbav:"analyzed_at"`
	models.Comment
}

type CommentStore struct {
	client BatchWriter
	table  string
	clock  clockwork.Clock
}

func NewCommentStore(client BatchWriter, table string, clock clockwork.Clock) *CommentStore {
	if table == "" {
		table = COMMENT_SENTIMENT_TABLE_NAME
	}
	return &CommentStore{
		client: client,
		table:  table,
		clock:  clock,
	}
}

// StoreVideoResult writes every annotated comment of the video, 25 per
// request. Unprocessed items are retried with a doubling backoff.
func (s *CommentStore) StoreVideoResult(ctx context.Context, result models.VideoResult) error {
	analyzedAt := s.clock.Now().UTC()

	requests := make([]types.WriteRequest, 0, len(result.Comments))
	for _, c := range result.Comments {
		if c.ID == "" || !c.Annotated() {
			continue
		}
		item, err := attributevalue.MarshalMap(commentItem{
			VideoID:    result.VideoInfo.ID,
			VideoTitle: result.VideoInfo.Title,
			AnalyzedAt: analyzedAt,
			Comment:    c,
		})
		if err != nil {
			return fmt.Errorf("[DynamoDB] Failed to marshal comment %s: %w", c.ID, err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}

	for start := 0; start < len(requests); start += maxBatchSize {
		select {
		case <-ctx.Done():
			slog.Warn("[DynamoDB] context canceled")
			return ctx.Err()
		default:
		}

		end := min(start+maxBatchSize, len(requests))
		if err := s.writeBatch(ctx, requests[start:end]); err != nil {
			return err
		}
	}

	slog.Info("[DynamoDB] Successfully stored comment sentiment",
		slog.String("video_id", result.VideoInfo.ID),
		slog.Int("count", len(requests)))
	return nil
}

func (s *CommentStore) writeBatch(ctx context.Context, batch []types.WriteRequest) error {
	out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{s.table: batch},
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to batch write comments: %w", err)
	}

	retryCount := 0
	backoffDuration := initialRetryBackoff
	for len(out.UnprocessedItems) > 0 && retryCount < maxUnprocessedTry {
		if err := utils.SleepContext(ctx, s.clock, backoffDuration); err != nil {
			slog.Warn("[DynamoDB] context canceled while waiting to retry unprocessed items")
			return err
		}
		backoffDuration *= 2
		slog.Warn("[DynamoDB] Retrying unprocessed items...",
			slog.Int("retry_attempt", retryCount+1),
			slog.Int("remaining_items", len(out.UnprocessedItems[s.table])))

		out, err = s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: out.UnprocessedItems,
		})
		if err != nil {
			return fmt.Errorf("[DynamoDB] Failed to retry batch write: %w", err)
		}
		retryCount++
	}

	if remaining := len(out.UnprocessedItems[s.table]); remaining > 0 {
		return fmt.Errorf("[DynamoDB] %d items were not written even after retries", remaining)
	}
	return nil
}
