package kafka_client

const (
	KAFKA_TOPIC_SENTIMENT_RESULTS = "comment-sentiment-results" // analyzed comments and per-video summaries
	KAFKA_TRANSACTION_ID          = "ytsentiment-producer-1"
)

const (
	MESSAGE_TYPE_HEADER  = "message-type"
	MESSAGE_TYPE_COMMENT = "comment"
	MESSAGE_TYPE_SUMMARY = "summary"

	MAX_RETRIES      = 3
	FLUSH_TIMEOUT_MS = 5000
)
