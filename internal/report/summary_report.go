package report

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/russross/blackfriday/v2"

	"github.com/spacesedan/ytsentiment/internal/models"
)

const (
	histogramBuckets = 20
	histogramWidth   = 40
	topTopicsLimit   = 10
)

// Histogram counts scores in equal-width buckets over [-1, 1]. Scores outside
// the range land in the first or last bucket.
func Histogram(scores []float64, buckets int) []int {
	counts := make([]int, buckets)
	if buckets <= 0 {
		return counts
	}
	width := 2.0 / float64(buckets)
	for _, s := range scores {
		if math.IsNaN(s) {
			continue
		}
		i := int(math.Floor((s + 1) / width))
		counts[min(max(i, 0), buckets-1)]++
	}
	return counts
}

type labelCount struct {
	Label string
	Count int
}

// labelDistribution counts the raw labels as returned by the model, most
// frequent first.
func labelDistribution(comments []models.Comment) []labelCount {
	counts := map[string]int{}
	for _, c := range comments {
		counts[string(c.Sentiment.Sentiment)]++
	}
	return sortedCounts(counts, 0)
}

func topTopics(comments []models.Comment, limit int) []labelCount {
	counts := map[string]int{}
	for _, c := range comments {
		for _, t := range c.Sentiment.Topics {
			t = strings.ToLower(strings.TrimSpace(t))
			if t != "" {
				counts[t]++
			}
		}
	}
	return sortedCounts(counts, limit)
}

func sortedCounts(counts map[string]int, limit int) []labelCount {
	out := make([]labelCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, labelCount{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Markdown renders the summary report. It returns an empty string when no
// comment carries a record.
func Markdown(result models.VideoResult, videoID string) string {
	comments := annotatedComments(result.Comments)
	if len(comments) == 0 {
		return ""
	}

	var b strings.Builder
	title := result.VideoInfo.Title
	if title == "" {
		title = "Video " + videoID
	}
	fmt.Fprintf(&b, "# Sentiment report: %s\n\n", escapeMarkdown(title))
	fmt.Fprintf(&b, "- Video ID: `%s`\n", videoID)
	fmt.Fprintf(&b, "- Comments analyzed: %d\n", result.Summary.TotalComments)
	fmt.Fprintf(&b, "- Overall sentiment: **%s**\n\n", result.Summary.OverallSentiment)

	b.WriteString("## Summary\n\n| Sentiment | Comments |\n|---|---:|\n")
	fmt.Fprintf(&b, "| positive | %d |\n", result.Summary.Counts.Positive)
	fmt.Fprintf(&b, "| negative | %d |\n", result.Summary.Counts.Negative)
	fmt.Fprintf(&b, "| neutral | %d |\n", result.Summary.Counts.Neutral)
	fmt.Fprintf(&b, "| unknown | %d |\n\n", result.Summary.Counts.Unknown)

	b.WriteString("## Sentiment distribution\n\n| Label | Comments |\n|---|---:|\n")
	for _, lc := range labelDistribution(comments) {
		fmt.Fprintf(&b, "| %s | %d |\n", escapeMarkdown(lc.Label), lc.Count)
	}

	scores := make([]float64, 0, len(comments))
	for _, c := range comments {
		scores = append(scores, c.Sentiment.Score)
	}
	b.WriteString("\n## Sentiment score distribution\n\n```\n")
	writeHistogram(&b, Histogram(scores, histogramBuckets))
	b.WriteString("```\n")

	if topics := topTopics(comments, topTopicsLimit); len(topics) > 0 {
		b.WriteString("\n## Top topics\n\n| Topic | Mentions |\n|---|---:|\n")
		for _, t := range topics {
			fmt.Fprintf(&b, "| %s | %d |\n", escapeMarkdown(t.Label), t.Count)
		}
	}

	return b.String()
}

func writeHistogram(b *strings.Builder, counts []int) {
	peak := 0
	for _, n := range counts {
		peak = max(peak, n)
	}
	width := 2.0 / float64(len(counts))
	for i, n := range counts {
		lo := -1 + float64(i)*width
		bar := 0
		if peak > 0 {
			bar = int(math.Round(float64(n) / float64(peak) * histogramWidth))
		}
		fmt.Fprintf(b, "[%+.1f, %+.1f) %-*s %d\n", lo, lo+width, histogramWidth, strings.Repeat("#", bar), n)
	}
}

func escapeMarkdown(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ", "\r", " ").Replace(s)
}

var htmlPage = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px; }
        table { border-collapse: collapse; }
        th, td { border: 1px solid #ddd; padding: 4px 10px; }
        pre { background: #f5f5f5; padding: 10px; overflow-x: auto; }
    </style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTML renders the Markdown report as a standalone page. Raw HTML in the
// Markdown is dropped.
func HTML(markdown, title string) (string, error) {
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.CommonHTMLFlags | blackfriday.SkipHTML,
	})
	body := blackfriday.Run([]byte(markdown),
		blackfriday.WithExtensions(blackfriday.CommonExtensions),
		blackfriday.WithRenderer(renderer))

	var buf bytes.Buffer
	err := htmlPage.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{Title: title, Body: template.HTML(body)})
	if err != nil {
		return "", fmt.Errorf("[Report] failed to render html: %w", err)
	}
	return buf.String(), nil
}

func (g *Generator) ExportMarkdown(result models.VideoResult, videoID string) (string, error) {
	md := Markdown(result, videoID)
	if md == "" {
		return "", nil
	}
	path := g.path(videoID, "_sentiment_report.md")
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("[Report] failed to write markdown: %w", err)
	}
	return path, nil
}

func (g *Generator) ExportHTML(result models.VideoResult, videoID string) (string, error) {
	md := Markdown(result, videoID)
	if md == "" {
		return "", nil
	}
	page, err := HTML(md, "Sentiment report "+videoID)
	if err != nil {
		return "", err
	}
	path := g.path(videoID, "_sentiment_report.html")
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		return "", fmt.Errorf("[Report] failed to write html: %w", err)
	}
	return path, nil
}
