// Package reconcile matches extracted names against the catalog snapshot.
package reconcile

import (
	"regexp"
	"strings"
)

// languageMap folds Indonesian/English spelling variants onto one token so
// both sides of a comparison normalize identically.
var languageMap = map[string]string{
	"anak":         "kids",
	"dewasa":       "adult",
	"multivitamin": "mltvmn",
	"vitamin":      "vit",
	"gummy":        "gummy",
	"collagen":     "collagen",
	"omega":        "omega",
	"beauty":       "beauti",
}

// noiseWords carry no matching signal on receipts and are stripped.
var noiseWords = map[string]struct{}{
	"candy":  {},
	"gummy":  {},
	"tablet": {},
	"kapsul": {},
	"caplet": {},
	"the":    {},
	"and":    {},
	"for":    {},
	"with":   {},
}

var (
	nonWordRE    = regexp.MustCompile(`[^\w\s]`)
	whitespaceRE = regexp.MustCompile(`\s+`)

	// Pack-count suffixes: "30 days", "30's", "30s" all mean the same pack.
	dayPatterns = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`(?i)(\d+)\s*day'?s?`), "${1}days"},
		// Punctuation was already folded to spaces, so "30's" arrives as "30 s".
		{regexp.MustCompile(`(?i)(\d+)\s*'?s\b`), "${1}days"},
	}
)

// Normalize lowercases, strips punctuation, folds language variants, unifies
// pack-count suffixes, and drops noise words. An empty result means the input
// had no usable signal.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ToLower(text)
	text = nonWordRE.ReplaceAllString(text, " ")

	words := strings.Fields(text)
	for i, w := range words {
		if folded, ok := languageMap[w]; ok {
			words[i] = folded
		}
	}
	text = strings.Join(words, " ")

	for _, p := range dayPatterns {
		text = p.re.ReplaceAllString(text, p.repl)
	}

	kept := make([]string, 0, len(words))
	for _, w := range strings.Fields(text) {
		if _, noisy := noiseWords[w]; !noisy {
			kept = append(kept, w)
		}
	}

	return strings.TrimSpace(whitespaceRE.ReplaceAllString(strings.Join(kept, " "), " "))
}
