package processing

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/DeafMist/manga-pulse/internal/models"
)

// Fallback values used when the provider leaves a field out.
const (
	DefaultTitle   = "Titre Inconnu"
	DefaultSummary = "Pas de résumé."
	DefaultDate    = "Récemment"
	DefaultTag     = "Manga"

	MaxTags = 3
)

// Source labels.
const (
	LabelDirect    = "Source Directe"
	LabelReference = "Source Web"
	LabelSearch    = "Recherche Google"
)

// socialHosts maps social platforms to the label shown on their source chip.
var socialHosts = map[string]string{
	"x.com":       "X / Twitter",
	"twitter.com": "X / Twitter",
}

// RecordID derives the batch-local id of the candidate at index.
func RecordID(fetchedAt time.Time, index int) string {
	return fmt.Sprintf("news-%d-%d", fetchedAt.UnixMilli(), index)
}

// BuildRecords normalizes a parsed batch. Candidates repeating an earlier title exactly are
// dropped; ids keep the candidate's position in the provider answer.
func BuildRecords(candidates []Candidate, fetchedAt time.Time, refs []models.Source) []models.NewsRecord {
	out := make([]models.NewsRecord, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for i, c := range candidates {
		if c.Title != "" {
			if _, dup := seen[c.Title]; dup {
				continue
			}
			seen[c.Title] = struct{}{}
		}
		out = append(out, BuildRecord(c, i, fetchedAt, refs))
	}
	return out
}

// BuildRecord synthesizes a NewsRecord from one candidate. The result always carries
// exactly one source.
func BuildRecord(c Candidate, index int, fetchedAt time.Time, refs []models.Source) models.NewsRecord {
	title := orDefault(c.Title, DefaultTitle)

	tags := c.Tags
	if len(tags) == 0 {
		tags = []string{DefaultTag}
	}
	if len(tags) > MaxTags {
		tags = tags[:MaxTags]
	}

	return models.NewsRecord{
		ID:       RecordID(fetchedAt, index),
		Title:    title,
		Summary:  orDefault(c.Summary, DefaultSummary),
		Tags:     append([]string(nil), tags...),
		Date:     orDefault(c.Date, DefaultDate),
		Sources:  []models.Source{Attribute(c.SourceURL, title, index, refs)},
		ImageURL: cleanImageURL(c.ImageURL),
	}
}

// Attribute picks the single source of a record: the candidate's own URL, else the
// grounding reference at index mod len(refs), else a search link for title.
func Attribute(sourceURL, title string, index int, refs []models.Source) models.Source {
	if sourceURL != "" {
		if label, ok := SocialLabel(sourceURL); ok {
			return models.Source{Title: label, URI: sourceURL}
		}
		return models.Source{Title: LabelDirect, URI: sourceURL}
	}

	if len(refs) > 0 {
		ref := refs[index%len(refs)]
		if ref.URI != "" {
			return models.Source{Title: orDefault(ref.Title, LabelReference), URI: ref.URI}
		}
	}

	return SearchLink(title)
}

// SocialLabel reports whether raw points at a known social platform and its label.
func SocialLabel(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	for host != "" {
		if label, ok := socialHosts[host]; ok {
			return label, true
		}
		dot := strings.IndexByte(host, '.')
		if dot == -1 {
			break
		}
		host = host[dot+1:]
	}
	return "", false
}

// SearchLink builds the fallback search-engine source for title.
func SearchLink(title string) models.Source {
	return models.Source{
		Title: LabelSearch,
		URI:   "https://www.google.com/search?q=" + url.QueryEscape(title),
	}
}

// cleanImageURL keeps absolute http(s) URLs only.
func cleanImageURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return raw
	default:
		return ""
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
