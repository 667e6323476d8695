package structured

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// MaxKeywords bounds the keyword list stored per record.
const MaxKeywords = 100

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {},
}

// Normalize lowercases text, collapses whitespace runs to one space and
// trims the ends.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Fingerprint returns the hex SHA-256 digest of normalized text.
func Fingerprint(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// ExtractKeywords returns up to MaxKeywords tokens of normalized text in
// their original order, skipping stop words and tokens of two runes or less.
// Repeated tokens are kept.
func ExtractKeywords(normalized string) []string {
	return extractKeywords(normalized, MaxKeywords)
}

func extractKeywords(normalized string, limit int) []string {
	if limit <= 0 {
		limit = MaxKeywords
	}
	out := make([]string, 0, 16)
	for _, tok := range strings.Fields(normalized) {
		if utf8.RuneCountInString(tok) <= 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		out = append(out, tok)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Substring probe bounds, in runes.
const (
	probeMaxLen = 64
	probeMinLen = 12
)

// SubstringProbe returns the leading fragment of the first non-empty line
// of raw text, normalized, for substring proximity matching. Fragments
// shorter than probeMinLen are too generic and yield "".
func SubstringProbe(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		n := Normalize(line)
		if n == "" {
			continue
		}
		if utf8.RuneCountInString(n) > probeMaxLen {
			runes := []rune(n)
			n = strings.TrimSpace(string(runes[:probeMaxLen]))
		}
		if utf8.RuneCountInString(n) < probeMinLen {
			return ""
		}
		return n
	}
	return ""
}
