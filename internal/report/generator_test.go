package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/ytsentiment/internal/models"
)

func sampleResult() models.VideoResult {
	published := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	return models.VideoResult{
		VideoInfo: models.VideoInfo{ID: "vid1", Title: "Build | Ship"},
		Comments: []models.Comment{
			models.Comment{ID: "c1", Text: "Loved it, \"really\"", Author: "ann", PublishedAt: published, LikeCount: 12}.
				WithSentiment(models.SentimentRecord{
					Sentiment:     models.LabelPositive,
					Score:         0.85,
					KeyPhrases:    []string{"loved it"},
					Topics:        []string{"Editing", "music"},
					EmotionalTone: []string{"happy", "grateful"},
				}),
			models.Comment{ID: "c2", Text: "meh", Author: "bob"}.
				WithSentiment(models.SentimentRecord{
					Sentiment:     models.LabelNegative,
					Score:         -0.4,
					KeyPhrases:    []string{},
					Topics:        []string{"editing"},
					EmotionalTone: []string{},
				}),
			{ID: "c3", Text: "never analyzed"},
		},
		Summary: models.SentimentSummary{
			Counts:           models.SentimentCounts{Positive: 1, Negative: 1, Unknown: 1},
			TotalComments:    3,
			OverallSentiment: models.LabelPositive,
		},
	}
}

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator(filepath.Join(t.TempDir(), "reports"))
	require.NoError(t, err)
	return g
}

func TestExportCSV(t *testing.T) {
	g := newTestGenerator(t)

	path, err := g.ExportCSV(sampleResult(), "vid1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(g.OutputDir, "vid1_sentiment_analysis.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{
		"c1", "Loved it, \"really\"", "ann", "2024-02-03T04:05:06Z", "12",
		"positive", "0.85", "Editing, music", "happy, grateful",
	}, records[1])
	assert.Equal(t, "", records[2][3])
	assert.Equal(t, "-0.4", records[2][6])
}

func TestExportCSV_NoAnnotatedComments(t *testing.T) {
	g := newTestGenerator(t)
	result := models.VideoResult{Comments: []models.Comment{{ID: "raw"}}}

	path, err := g.ExportCSV(result, "vid1")

	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestExportJSON(t *testing.T) {
	g := newTestGenerator(t)

	path, err := g.ExportJSON(sampleResult(), "vid1")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"video_info\"")

	var decoded models.VideoResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 3, decoded.Summary.TotalComments)
	assert.Len(t, decoded.Comments, 3)
}

func TestGenerateFullReport(t *testing.T) {
	g := newTestGenerator(t)

	paths, err := g.GenerateFullReport(sampleResult(), "vid1")

	require.NoError(t, err)
	assert.Len(t, paths, 4)
	for _, kind := range []string{ReportCSV, ReportJSON, ReportMarkdown, ReportHTML} {
		require.Contains(t, paths, kind)
		assert.FileExists(t, paths[kind])
	}
}

func TestGenerateFullReport_EmptyVideo(t *testing.T) {
	g := newTestGenerator(t)
	result := models.VideoResult{
		VideoInfo: models.VideoInfo{ID: "vid2"},
		Comments:  []models.Comment{},
	}

	paths, err := g.GenerateFullReport(result, "vid2")

	require.NoError(t, err)
	assert.Equal(t, []string{ReportJSON}, keys(paths))
}

func TestSaveRaw(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	path, err := SaveRaw(dir, "video_vid1_raw.json", map[string]any{"vid1": []string{"a"}})

	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"vid1":["a"]}`, string(data))
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleResult(), "vid1")

	assert.True(t, strings.HasPrefix(md, "# Sentiment report: Build \\| Ship\n"))
	assert.Contains(t, md, "- Overall sentiment: **positive**")
	assert.Contains(t, md, "| unknown | 1 |")
	assert.Contains(t, md, "| editing | 2 |")
	assert.Contains(t, md, "## Sentiment score distribution")
}

func TestHTML(t *testing.T) {
	page, err := HTML("# Title\n\n<script>alert(1)</script>\n\n| a | b |\n|---|---|\n| 1 | 2 |\n", "Report <x>")

	require.NoError(t, err)
	assert.Contains(t, page, "<title>Report &lt;x&gt;</title>")
	assert.Contains(t, page, "<h1>Title</h1>")
	assert.Contains(t, page, "<table>")
	assert.NotContains(t, page, "<script>")
}

func TestHistogram(t *testing.T) {
	counts := Histogram([]float64{-1, -0.95, 0.05, 0.55, 1, 3}, 20)

	require.Len(t, counts, 20)
	assert.Equal(t, 2, counts[0])
	assert.Equal(t, 1, counts[10])
	assert.Equal(t, 1, counts[15])
	assert.Equal(t, 2, counts[19])

	total := 0
	for _, n := range counts {
		total += n
	}
	assert.Equal(t, 6, total)
}
