package sentiment

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/spacesedan/ytsentiment/internal/models"
)

const previewLength = 100

var errNoJSONObject = errors.New("no JSON object found in response")

// Interpret turns raw model output into a sentiment record. It never fails:
// unparseable output yields the default record and any missing field is
// filled with its default so partially valid responses are kept.
func Interpret(raw string) models.SentimentRecord {
	record, _ := interpret(raw)
	return record
}

// interpret also reports a parse failure so callers can account for it.
// The returned record is usable either way.
func interpret(raw string) (models.SentimentRecord, *Failure) {
	cleaned := stripCodeFence(raw)

	fields, err := parseObject(cleaned)
	if err != nil {
		slog.Warn("[Interpreter] Could not parse model response, using default record",
			slog.String("error", err.Error()),
			previewAttr(cleaned))
		return models.DefaultSentimentRecord(), &Failure{Kind: FailureParse, Err: err}
	}

	return recordFromFields(fields), nil
}

// stripCodeFence removes a surrounding Markdown code fence. The opening fence
// may carry a language hint ("```json"); the closing fence is removed either way.
func stripCodeFence(raw string) string {
	cleaned := strings.TrimSpace(raw)

	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		if nl := strings.IndexByte(cleaned, '\n'); nl >= 0 && isLanguageHint(cleaned[:nl]) {
			cleaned = cleaned[nl+1:]
		} else if isLanguageHint(cleaned) {
			cleaned = ""
		} else if hint := leadingHint(cleaned); hint != "" {
			cleaned = cleaned[len(hint):]
		}
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")

	return strings.TrimSpace(cleaned)
}

// isLanguageHint reports whether s is empty or a single bare word such as "json".
func isLanguageHint(s string) bool {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '+') {
			return false
		}
	}
	return true
}

// leadingHint returns a hint glued to the content on the same line ("```json{...").
func leadingHint(s string) string {
	end := strings.IndexAny(s, "{[ \t")
	if end <= 0 || !isLanguageHint(s[:end]) {
		return ""
	}
	return s[:end]
}

// parseObject decodes the text as a JSON object, falling back to the span
// between the first '{' and the last '}'.
func parseObject(text string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err == nil && fields != nil {
		return fields, nil
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, errNoJSONObject
	}

	fields = nil
	if err := json.Unmarshal([]byte(text[start:end+1]), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errNoJSONObject
	}
	return fields, nil
}

func recordFromFields(fields map[string]json.RawMessage) models.SentimentRecord {
	record := models.DefaultSentimentRecord()
	var missing []string

	if raw, ok := fields["sentiment"]; !ok || !decodeField("sentiment", raw, &record.Sentiment) {
		record.Sentiment = models.LabelUnknown
		missing = append(missing, "sentiment")
	}
	if raw, ok := fields["score"]; !ok || !decodeField("score", raw, &record.Score) {
		record.Score = 0.0
		missing = append(missing, "score")
	}
	record.KeyPhrases, missing = stringList(fields, "key_phrases", missing)
	record.Topics, missing = stringList(fields, "topics", missing)
	record.EmotionalTone, missing = stringList(fields, "emotional_tone", missing)

	if raw, ok := fields["error"]; ok {
		decodeField("error", raw, &record.Error)
	}

	if len(missing) > 0 {
		slog.Debug("[Interpreter] Filled missing fields with defaults",
			slog.Any("fields", missing))
	}

	return record
}

func stringList(fields map[string]json.RawMessage, key string, missing []string) ([]string, []string) {
	var list []string
	raw, ok := fields[key]
	if !ok || !decodeField(key, raw, &list) || list == nil {
		return []string{}, append(missing, key)
	}
	return list, missing
}

// decodeField reports whether raw decoded cleanly into dst. A JSON null counts
// as absent. A value of the wrong type is dropped and logged with its raw text.
func decodeField(key string, raw json.RawMessage, dst any) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		slog.Debug("[Interpreter] Dropped field with unexpected type",
			slog.String("field", key),
			slog.String("value", string(raw)),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

func previewAttr(text string) slog.Attr {
	runes := []rune(text)
	if len(runes) > previewLength {
		return slog.String("preview", string(runes[:previewLength])+"...")
	}
	return slog.String("preview", text)
}
