package sentiment

import (
	"context"
	"encoding/json"
	"html"
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/russross/blackfriday/v2"

	"github.com/spacesedan/ytsentiment/internal/models"
)

const vaderThreshold = 0.20

var (
	markdownLinkPattern = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern          = regexp.MustCompile(`https?://\S+|www\.\S+`)
	tagPattern          = regexp.MustCompile(`<[^>]*>`)
)

func RemoveLinks(input string) string {
	input = markdownLinkPattern.ReplaceAllString(input, "$1")
	return urlPattern.ReplaceAllString(input, "")
}

// ConvertMarkdownToText flattens Markdown and the HTML fragments the comment
// API returns in textDisplay into plain words.
func ConvertMarkdownToText(input string) string {
	output := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	plain := html.UnescapeString(tagPattern.ReplaceAllString(string(output), " "))
	return strings.Join(strings.Fields(RemoveLinks(plain)), " ")
}

// VaderClassifier is an offline Classifier. It scores comments with VADER
// and answers in the same JSON shape the LLM prompt asks for, so its output
// goes through the same interpreter.
type VaderClassifier struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewVaderClassifier() *VaderClassifier {
	return &VaderClassifier{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (v *VaderClassifier) Classify(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	score, label := v.AnalyzeWithVADER(text)
	tone := []string{}
	switch label {
	case models.LabelPositive:
		tone = append(tone, "approving")
	case models.LabelNegative:
		tone = append(tone, "disapproving")
	}

	out, err := json.Marshal(models.SentimentRecord{
		Sentiment:     label,
		Score:         score,
		KeyPhrases:    []string{},
		Topics:        []string{},
		EmotionalTone: tone,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (v *VaderClassifier) AnalyzeWithVADER(text string) (float64, models.Label) {
	plainText := ConvertMarkdownToText(text)

	score := v.analyzer.PolarityScores(plainText).Compound

	switch {
	case score >= vaderThreshold:
		return score, models.LabelPositive
	case score <= -vaderThreshold:
		return score, models.LabelNegative
	default:
		return score, models.LabelNeutral
	}
}
