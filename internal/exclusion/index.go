package exclusion

import (
	"strconv"
	"strings"

	"github.com/reelrank/reelrank/internal/catalog"
	"github.com/reelrank/reelrank/internal/titlekey"
)

// Reasons reported by Match, in pass order.
const (
	ReasonIMDbID          = "imdb_id"
	ReasonProviderID      = "provider_id"
	ReasonExactTitle      = "exact_title"
	ReasonNormalizedTitle = "normalized_title"
	ReasonAnyYear         = "any_year"
	ReasonFuzzyTitle      = "fuzzy_title"
)

var allKinds = []catalog.Kind{catalog.KindMovie, catalog.KindSeries}

// Index matches candidates against the deny list. It is immutable after
// NewIndex and safe for concurrent readers.
type Index struct {
	ids         map[string]struct{}
	providerIDs map[int64]struct{}

	exact      map[string]struct{}
	normalized map[string]struct{}

	exactAnyYear      map[string]struct{}
	normalizedAnyYear map[string]struct{}

	fuzzy          []fuzzyEntry
	fuzzyThreshold int
}

type fuzzyEntry struct {
	kind  catalog.Kind
	title string
	year  int
}

// NewIndex builds the lookup tables. Rows without a kind are stored once per
// kind. A fuzzyThreshold of 0 disables the fuzzy pass.
func NewIndex(records []Record, fuzzyThreshold int) *Index {
	x := &Index{
		ids:               make(map[string]struct{}),
		providerIDs:       make(map[int64]struct{}),
		exact:             make(map[string]struct{}),
		normalized:        make(map[string]struct{}),
		exactAnyYear:      make(map[string]struct{}),
		normalizedAnyYear: make(map[string]struct{}),
		fuzzyThreshold:    fuzzyThreshold,
	}

	for _, r := range records {
		if r.IMDbID != "" {
			x.ids[r.IMDbID] = struct{}{}
		}
		if r.ProviderID > 0 {
			x.providerIDs[r.ProviderID] = struct{}{}
		}
		if strings.TrimSpace(r.Title) == "" {
			continue
		}

		kinds := allKinds
		if r.Kind != "" {
			kinds = []catalog.Kind{r.Kind}
		}
		lower := strings.ToLower(strings.TrimSpace(r.Title))
		norms := normalizedForms(r.Title)

		for _, k := range kinds {
			if r.Year > 0 {
				x.exact[key(k, lower, r.Year)] = struct{}{}
				for _, n := range norms {
					x.normalized[key(k, n, r.Year)] = struct{}{}
				}
			} else {
				x.exactAnyYear[key(k, lower, 0)] = struct{}{}
				for _, n := range norms {
					x.normalizedAnyYear[key(k, n, 0)] = struct{}{}
				}
			}
			if fuzzyThreshold > 0 {
				x.fuzzy = append(x.fuzzy, fuzzyEntry{kind: k, title: r.Title, year: r.Year})
			}
		}
	}
	return x
}

func normalizedForms(title string) []string {
	n := titlekey.Normalize(title)
	keep := titlekey.NormalizeKeepArticle(title)
	if n == "" {
		return nil
	}
	if keep == n {
		return []string{n}
	}
	return []string{n, keep}
}

func key(kind catalog.Kind, title string, year int) string {
	if year <= 0 {
		return string(kind) + "|" + title
	}
	return string(kind) + "|" + title + "|" + strconv.Itoa(year)
}

// Len reports the number of id and title entries held.
func (x *Index) Len() int {
	return len(x.ids) + len(x.providerIDs) + len(x.exact) + len(x.normalized) +
		len(x.exactAnyYear) + len(x.normalizedAnyYear)
}

// Match runs the passes in priority order and returns the reason of the
// first hit.
func (x *Index) Match(c *catalog.Candidate) (string, bool) {
	if id := catalog.NormalizeCrossRefID(c.IMDbID); id != "" {
		if _, ok := x.ids[id]; ok {
			return ReasonIMDbID, true
		}
	}
	if c.ProviderID > 0 {
		if _, ok := x.providerIDs[c.ProviderID]; ok {
			return ReasonProviderID, true
		}
	}

	kind := catalog.KindMovie
	if c.IsSeries() {
		kind = catalog.KindSeries
	}
	titles := c.Titles()

	if c.Year > 0 {
		for _, t := range titles {
			if _, ok := x.exact[key(kind, strings.ToLower(strings.TrimSpace(t)), c.Year)]; ok {
				return ReasonExactTitle, true
			}
		}
		for _, t := range titles {
			for _, n := range normalizedForms(t) {
				if _, ok := x.normalized[key(kind, n, c.Year)]; ok {
					return ReasonNormalizedTitle, true
				}
			}
		}
	}

	for _, t := range titles {
		if _, ok := x.exactAnyYear[key(kind, strings.ToLower(strings.TrimSpace(t)), 0)]; ok {
			return ReasonAnyYear, true
		}
		for _, n := range normalizedForms(t) {
			if _, ok := x.normalizedAnyYear[key(kind, n, 0)]; ok {
				return ReasonAnyYear, true
			}
		}
	}

	if x.fuzzyThreshold > 0 {
		for _, e := range x.fuzzy {
			if e.kind != kind {
				continue
			}
			if e.year > 0 && c.Year > 0 && e.year != c.Year {
				continue
			}
			for _, t := range titles {
				if titlekey.Similarity(t, e.title) >= x.fuzzyThreshold {
					return ReasonFuzzyTitle, true
				}
			}
		}
	}
	return "", false
}
