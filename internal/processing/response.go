package processing

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/DeafMist/manga-pulse/internal/models"
)

// Candidate is one item of the provider's JSON array before normalization. Empty strings
// mean the field was missing, null, or not a string.
type Candidate struct {
	Title     string
	Summary   string
	Tags      []string
	Date      string
	ImageURL  string
	SourceURL string
}

// ExtractJSONArray strips markdown code fences and any prose around the outermost
// brackets. Empty input becomes "[]".
func ExtractJSONArray(raw string) string {
	text := strings.ReplaceAll(raw, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)
	if text == "" {
		return "[]"
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start != -1 && end > start {
		text = text[start : end+1]
	}
	return text
}

// ParseCandidates turns raw provider text into candidates. Text that still is not a JSON
// array after extraction yields models.ErrParse. Array elements that are not objects are
// skipped.
func ParseCandidates(raw string) ([]Candidate, error) {
	text := ExtractJSONArray(raw)
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("%w: invalid json", models.ErrParse)
	}

	doc := gjson.Parse(text)
	if !doc.IsArray() {
		return nil, fmt.Errorf("%w: expected a json array, got %s", models.ErrParse, doc.Type)
	}

	var out []Candidate
	doc.ForEach(func(_, item gjson.Result) bool {
		if item.IsObject() {
			out = append(out, candidateFrom(item))
		}
		return true
	})
	return out, nil
}

func candidateFrom(item gjson.Result) Candidate {
	return Candidate{
		Title:     stringField(item, "title"),
		Summary:   stringField(item, "summary"),
		Tags:      stringList(item.Get("tags")),
		Date:      stringField(item, "date"),
		ImageURL:  stringField(item, "imageUrl"),
		SourceURL: stringField(item, "sourceUrl"),
	}
}

func stringField(item gjson.Result, key string) string {
	v := item.Get(key)
	if v.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(v.Str)
}

func stringList(v gjson.Result) []string {
	if !v.IsArray() {
		return nil
	}
	var out []string
	for _, el := range v.Array() {
		if el.Type != gjson.String {
			continue
		}
		if s := strings.TrimSpace(el.Str); s != "" {
			out = append(out, s)
		}
	}
	return out
}
