// Package titlekey canonicalizes free-text media titles for equality and
// fuzzy comparison.
package titlekey

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// Punctuation collapsed to a single space before tokenizing.
	punctReplacer = strings.NewReplacer(
		"-", " ", "—", " ", "–", " ", "_", " ", ":", " ",
		"/", " ", ",", " ", ".", " ", "'", " ", "!", " ",
		"?", " ", ";", " ",
	)

	// Isolated roman numerals I-X only.
	romanNumerals = map[string]string{
		"i": "1", "ii": "2", "iii": "3", "iv": "4", "v": "5",
		"vi": "6", "vii": "7", "viii": "8", "ix": "9", "x": "10",
	}

	leadingArticles = map[string]bool{"the": true, "a": true, "an": true}

	// Season/edition suffixes that distinguish parts of one series.
	seriesSuffixPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s+(?:season|series|volume|vol|chapter|book)\s+\d{1,3}$`),
		regexp.MustCompile(`\s+s\d{1,2}(?:\s*e\d{1,3})?$`),
		regexp.MustCompile(`\s+(?:the\s+)?(?:complete|limited|mini)\s+series$`),
	}
)

// Normalize returns the canonical key for a title. Steps run in a fixed
// order: lowercase, drop parenthetical content (nesting aware), "&" to
// "and", punctuation to spaces, roman numerals I-X to digits, leading
// article removal, whitespace collapse. Normalize is idempotent.
//
// Leading articles are dropped repeatedly, so "The A Team" becomes "team";
// dropping only one would not be idempotent. A title made of a single
// article is kept as is.
func Normalize(title string) string {
	return normalize(title, true)
}

// NormalizeKeepArticle is Normalize without the leading-article step.
func NormalizeKeepArticle(title string) string {
	return normalize(title, false)
}

func normalize(title string, dropArticle bool) string {
	if title == "" {
		return ""
	}

	s := strings.ToLower(title)
	s = stripParenthetical(s)
	s = strings.ReplaceAll(s, "&", " and ")
	s = punctReplacer.Replace(s)

	tokens := strings.Fields(s)
	for i, tok := range tokens {
		if digit, ok := romanNumerals[tok]; ok {
			tokens[i] = digit
		}
	}

	// A lone article is the whole title ("A", "The") and is kept. Stripping
	// repeats so that the result never starts with a removable article.
	if dropArticle {
		for len(tokens) > 1 && leadingArticles[tokens[0]] {
			tokens = tokens[1:]
		}
	}

	return strings.Join(tokens, " ")
}

// stripParenthetical removes everything inside parentheses, tracking depth
// so "Movie (Director's Cut (2019))" loses both groups.
func stripParenthetical(s string) string {
	if !strings.ContainsAny(s, "()") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	depth := 0
	for _, r := range s {
		switch {
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SeriesRoot returns the normalized title of a TV series with any trailing
// season, volume or "complete series" marker removed.
func SeriesRoot(title string) string {
	root := Normalize(title)
	for {
		trimmed := root
		for _, re := range seriesSuffixPatterns {
			trimmed = re.ReplaceAllString(trimmed, "")
		}
		trimmed = strings.TrimSpace(trimmed)
		if trimmed == root || trimmed == "" {
			return root
		}
		root = trimmed
	}
}

// Fold strips diacritics ("Amélie" -> "Amelie") so accented and plain
// spellings tokenize the same way.
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
