package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	urlRegex    = regexp.MustCompile(`https?://[^\s]+`)
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

var stopwords = map[string]struct{}{
	"le": {}, "la": {}, "les": {}, "de": {}, "des": {}, "du": {}, "un": {}, "une": {},
	"et": {}, "en": {}, "au": {}, "aux": {}, "pour": {}, "sur": {}, "dans": {}, "par": {},
	"avec": {}, "sont": {}, "plus": {}, "cette": {}, "leur": {}, "nouveau": {}, "nouvelle": {},
	"a": {}, "an": {}, "the": {}, "to": {}, "in": {}, "for": {}, "of": {}, "and": {},
	"this": {}, "that": {}, "with": {}, "from": {},
}

// CleanText strips HTML entities, URLs and punctuation, and squeezes whitespace.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	decoded = urlRegex.ReplaceAllString(decoded, " ")
	decoded = punctuation.ReplaceAllString(decoded, " ")
	decoded = whitespace.ReplaceAllString(decoded, " ")
	return strings.TrimSpace(decoded)
}

// ExtractKeywords returns the most frequent words that are not stop-words, ties broken
// alphabetically.
func ExtractKeywords(text string, limit, minLen int) []string {
	clean := strings.ToLower(CleanText(text))
	if clean == "" {
		return nil
	}

	freq := make(map[string]int)
	for _, token := range strings.Fields(clean) {
		if len([]rune(token)) < minLen {
			continue
		}
		if _, skip := stopwords[token]; skip {
			continue
		}
		freq[token]++
	}
	if len(freq) == 0 {
		return nil
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] == freq[words[j]] {
			return words[i] < words[j]
		}
		return freq[words[i]] > freq[words[j]]
	})

	if limit > 0 && limit < len(words) {
		words = words[:limit]
	}
	return words
}

// BuildDocumentID hashes title and summary into the archive id, so the same story fetched
// twice maps to the same document.
func BuildDocumentID(title, summary string) string {
	s := sha1.Sum([]byte(strings.TrimSpace(title) + "|" + strings.TrimSpace(summary)))
	return hex.EncodeToString(s[:])
}

// BlacklistID canonicalizes a title into the shared blacklist document id: accents are
// folded, letters lowercased, and every rune outside [a-z0-9_] becomes '_'. When that
// rewrites anything, a 12-hex SHA-1 suffix of the exact title is appended, so distinct
// titles keep distinct ids. An id maps to itself.
func BlacklistID(title string) string {
	// built per call: transform chains keep state and are not safe for concurrent use
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}

	if b.String() != title {
		sum := sha1.Sum([]byte(title))
		b.WriteByte('_')
		b.WriteString(hex.EncodeToString(sum[:])[:12])
	}
	return b.String()
}
