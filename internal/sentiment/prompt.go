package sentiment

import "fmt"

const (
	maxCommentRunes = 1000
	truncationMark  = "..."
)

const promptTemplate = `Task: Analyze the sentiment of the following YouTube comment.

Comment: "%s"

Provide a detailed sentiment analysis with the following information:
- Overall sentiment classification (must be exactly one of: positive, negative, or neutral)
- Sentiment score (a number from -1.0 to 1.0, where -1.0 is very negative, 0.0 is neutral, and 1.0 is very positive)
- Key sentiment phrases from the comment
- Topics mentioned in the comment
- Emotional tone detected (e.g., excited, angry, sad, etc.)

Format your response ONLY as a valid JSON object with this exact structure:
{
    "sentiment": "positive" or "negative" or "neutral",
    "score": number between -1.0 and 1.0,
    "key_phrases": [list of strings],
    "topics": [list of strings],
    "emotional_tone": [list of strings]
}

Return ONLY the JSON object, nothing else.`

// BuildPrompt renders the fixed classification prompt for one comment.
func BuildPrompt(comment string) string {
	return fmt.Sprintf(promptTemplate, comment)
}

// TruncateComment keeps comments within the upstream token budget. Longer
// comments are cut so that the result, marker included, is 1000 runes.
func TruncateComment(text string) string {
	runes := []rune(text)
	if len(runes) <= maxCommentRunes {
		return text
	}
	keep := maxCommentRunes - len(truncationMark)
	return string(runes[:keep]) + truncationMark
}
