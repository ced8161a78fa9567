package models

import "time"

// Comment is one top-level comment on a video. The Sentiment field stays nil
// until the orchestrator annotates a copy of the comment.
type Comment struct {
	ID          string           `json:"id" dynamodbav:"comment_id"`
	Text        string           `json:"text" dynamodbav:"text"`
	Author      string           `json:"author" dynamodbav:"author"`
	PublishedAt time.Time        `json:"published_at" dynamodbav:"published_at"`
	LikeCount   int64            `json:"like_count" dynamodbav:"like_count"`
	Sentiment   *SentimentRecord `json:"sentiment_analysis,omitempty" dynamodbav:"sentiment_analysis,omitempty"`
}

// Annotated reports whether the comment already carries a sentiment record.
func (c Comment) Annotated() bool {
	return c.Sentiment != nil
}

// WithSentiment returns a copy of the comment carrying the given record.
func (c Comment) WithSentiment(record SentimentRecord) Comment {
	c.Sentiment = &record
	return c
}

type VideoInfo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// VideoComments is the raw fetch result for a single video.
type VideoComments struct {
	VideoInfo VideoInfo `json:"video_info"`
	Comments  []Comment `json:"comments"`
}
