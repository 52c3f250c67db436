package extract

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/treehouse/go-batch-backend/internal/catalog"
)

// KeywordExtractor is the deterministic fallback matcher. It normalizes the
// message and every catalog name/alias to lowercase alphanumerics and looks
// for the restaurant whose normalized form appears in the text, preferring
// the longest match ("chipotle mexican grill" beats "chipotle").
//
// The matcher is dependency-free and immutable after construction, so it is
// safe for concurrent use.
type KeywordExtractor struct {
	entries []keywordEntry
}

type keywordEntry struct {
	needle    string // normalized name or alias
	canonical string // catalog display name
}

var nonAlnumRE = regexp.MustCompile(`[^a-z0-9]+`)

// NewKeywordExtractor indexes the catalog's names and aliases.
func NewKeywordExtractor(cat *catalog.Catalog) *KeywordExtractor {
	var entries []keywordEntry
	for _, r := range cat.Restaurants {
		if n := normalizeText(r.Name); n != "" {
			entries = append(entries, keywordEntry{needle: n, canonical: r.Name})
		}
		for _, a := range r.Aliases {
			if n := normalizeText(a); n != "" {
				entries = append(entries, keywordEntry{needle: n, canonical: r.Name})
			}
		}
	}
	return &KeywordExtractor{entries: entries}
}

// ExtractRestaurant implements Extractor. The context is unused; the matcher
// is purely local.
func (k *KeywordExtractor) ExtractRestaurant(_ context.Context, text string) (string, bool) {
	haystack := normalizeText(text)
	if haystack == "" {
		return "", false
	}
	best, bestLen := "", 0
	for _, e := range k.entries {
		if len(e.needle) > bestLen && strings.Contains(haystack, e.needle) {
			best, bestLen = e.canonical, len(e.needle)
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// DisplayName title-cases a free-text customer name ("  alex p " → "Alex P")
// before it lands in confirmation replies and on the courier manifest. A
// fresh caser per call: cases.Caser is stateful and sessions run in parallel.
func DisplayName(s string) string {
	return cases.Title(language.English).String(strings.TrimSpace(s))
}

// normalizeText lowercases and squeezes everything that is not a letter or
// digit, matching the catalog's key normalization.
func normalizeText(s string) string {
	return nonAlnumRE.ReplaceAllString(strings.ToLower(s), "")
}
