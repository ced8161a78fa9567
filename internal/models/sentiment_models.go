package models

type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
	LabelUnknown  Label = "unknown"
	LabelError    Label = "error"
)

// IsCanonical reports whether the label is one the model is asked to return.
func (l Label) IsCanonical() bool {
	switch l {
	case LabelPositive, LabelNegative, LabelNeutral:
		return true
	default:
		return false
	}
}

// SentimentRecord is the structured classification attached to a comment.
// Score and Sentiment are passed through as the model returned them.
type SentimentRecord struct {
	Sentiment     Label    `json:"sentiment" dynamodbav:"sentiment"`
	Score         float64  `json:"score" dynamodbav:"score"`
	KeyPhrases    []string `json:"key_phrases" dynamodbav:"key_phrases"`
	Topics        []string `json:"topics" dynamodbav:"topics"`
	EmotionalTone []string `json:"emotional_tone" dynamodbav:"emotional_tone"`
	Error         string   `json:"error,omitempty" dynamodbav:"error,omitempty"`
}

// DefaultSentimentRecord is the record used whenever nothing usable came back.
func DefaultSentimentRecord() SentimentRecord {
	return SentimentRecord{
		Sentiment:     LabelUnknown,
		Score:         0.0,
		KeyPhrases:    []string{},
		Topics:        []string{},
		EmotionalTone: []string{},
	}
}

// FailedSentimentRecord is the default record annotated with the failure message.
func FailedSentimentRecord(msg string) SentimentRecord {
	r := DefaultSentimentRecord()
	r.Error = msg
	return r
}

type SentimentCounts struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`

	// Unknown counts every comment that is not positive, negative or
	// neutral: the "unknown" and "error" labels, any other label the model
	// made up, and comments that have no record at all.
	Unknown int `json:"unknown"`
}

type SentimentSummary struct {
	Counts           SentimentCounts `json:"counts"`
	TotalComments    int             `json:"total_comments"`
	OverallSentiment Label           `json:"overall_sentiment"`
}

// VideoResult owns the analyzed comments of one video and the summary derived from them.
type VideoResult struct {
	VideoInfo VideoInfo        `json:"video_info"`
	Comments  []Comment        `json:"comments"`
	Summary   SentimentSummary `json:"sentiment_summary"`
}
