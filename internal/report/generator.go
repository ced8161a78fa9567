package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spacesedan/ytsentiment/internal/models"
)

const (
	ReportCSV      = "csv_export"
	ReportJSON     = "json_export"
	ReportMarkdown = "markdown_report"
	ReportHTML     = "html_report"
)

var csvHeader = []string{
	"comment_id", "text", "author", "published_at", "like_count",
	"sentiment", "score", "topics", "emotional_tone",
}

// Generator writes per-video reports into OutputDir.
type Generator struct {
	OutputDir string
}

func NewGenerator(outputDir string) (*Generator, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("[Report] failed to create output dir: %w", err)
	}
	return &Generator{OutputDir: outputDir}, nil
}

func (g *Generator) path(videoID, suffix string) string {
	return filepath.Join(g.OutputDir, videoID+suffix)
}

// ExportCSV writes one row per annotated comment. It returns an empty path
// when no comment carries a record.
func (g *Generator) ExportCSV(result models.VideoResult, videoID string) (string, error) {
	rows := annotatedComments(result.Comments)
	if len(rows) == 0 {
		return "", nil
	}

	path := g.path(videoID, "_sentiment_analysis.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("[Report] failed to create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("[Report] failed to write csv header: %w", err)
	}
	for _, c := range rows {
		if err := w.Write(csvRow(c)); err != nil {
			return "", fmt.Errorf("[Report] failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("[Report] failed to flush csv: %w", err)
	}

	return path, nil
}

func csvRow(c models.Comment) []string {
	publishedAt := ""
	if !c.PublishedAt.IsZero() {
		publishedAt = c.PublishedAt.Format(time.RFC3339)
	}
	return []string{
		c.ID,
		c.Text,
		c.Author,
		publishedAt,
		strconv.FormatInt(c.LikeCount, 10),
		string(c.Sentiment.Sentiment),
		strconv.FormatFloat(c.Sentiment.Score, 'f', -1, 64),
		strings.Join(c.Sentiment.Topics, ", "),
		strings.Join(c.Sentiment.EmotionalTone, ", "),
	}
}

// ExportJSON writes the full video result as indented JSON.
func (g *Generator) ExportJSON(result models.VideoResult, videoID string) (string, error) {
	path := g.path(videoID, "_sentiment_analysis.json")
	if err := writeJSON(path, result); err != nil {
		return "", err
	}
	return path, nil
}

// GenerateFullReport writes every report type and returns their paths keyed
// by report type. Types with nothing to show are left out.
func (g *Generator) GenerateFullReport(result models.VideoResult, videoID string) (map[string]string, error) {
	paths := make(map[string]string, 4)

	exports := []struct {
		name string
		run  func(models.VideoResult, string) (string, error)
	}{
		{ReportMarkdown, g.ExportMarkdown},
		{ReportHTML, g.ExportHTML},
		{ReportCSV, g.ExportCSV},
		{ReportJSON, g.ExportJSON},
	}

	for _, e := range exports {
		path, err := e.run(result, videoID)
		if err != nil {
			return paths, err
		}
		if path != "" {
			paths[e.name] = path
		}
	}

	slog.Info("[Report] Generated reports",
		slog.String("video_id", videoID),
		slog.Int("count", len(paths)))
	return paths, nil
}

// SaveRaw writes v as indented JSON to dir/name, creating dir if needed.
func SaveRaw(dir, name string, v any) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("[Report] failed to create data dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := writeJSON(path, v); err != nil {
		return "", err
	}
	return path, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("[Report] failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("[Report] failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func annotatedComments(comments []models.Comment) []models.Comment {
	out := make([]models.Comment, 0, len(comments))
	for _, c := range comments {
		if c.Annotated() {
			out = append(out, c)
		}
	}
	return out
}
