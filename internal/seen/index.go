// Package seen implements the index of titles the user has already
// consumed, built from their ratings history.
package seen

import (
	"sort"
	"strconv"
	"strings"

	"github.com/reelrank/reelrank/internal/catalog"
	"github.com/reelrank/reelrank/internal/titlekey"
)

// Record is the display form kept for each seen entry.
type Record struct {
	Title string `json:"title"`
	Year  int    `json:"year,omitempty"`
}

// Options controls how an Index is assembled.
type Options struct {
	BloomEnabled bool
	BloomFPRate  float64
}

// Index answers whether a candidate was already seen. It is immutable after
// construction and safe for concurrent readers.
type Index struct {
	byID   map[string]Record
	byKey  map[string]Record
	byRoot map[string]Record

	filter MembershipTester
	fuzzy  []fuzzyEntry

	// sources fingerprints the history files the index was built from.
	sources string
}

type fuzzyEntry struct {
	norm string
	year int
}

// Empty returns an index that contains nothing.
func Empty() *Index {
	return newIndex(nil, nil, nil, nil)
}

// Build creates an index from history rows. Rows without an id or usable
// title contribute nothing.
func Build(rows []HistoryRow, opts Options) *Index {
	byID := make(map[string]Record)
	byKey := make(map[string]Record)
	byRoot := make(map[string]Record)

	for _, row := range rows {
		rec := Record{Title: row.Title, Year: row.Year}
		if id := normalizeID(row.ID); id != "" {
			byID[id] = rec
		}

		title := row.Title
		if row.Episode && row.SeriesName != "" {
			title = row.SeriesName
		}
		if norm := titlekey.Normalize(title); norm != "" && !row.Episode {
			byKey[Key(norm, row.Year)] = rec
		}
		if row.Kind == catalog.KindSeries {
			if root := titlekey.SeriesRoot(title); root != "" {
				byRoot[root] = Record{Title: title}
			}
		}
	}

	return newIndex(byID, byKey, byRoot, buildFilter(byID, byKey, byRoot, opts))
}

// Sources returns the fingerprint of the history the index was built from,
// or "" when unknown.
func (x *Index) Sources() string {
	return x.sources
}

func newIndex(byID, byKey, byRoot map[string]Record, filter MembershipTester) *Index {
	if byID == nil {
		byID = map[string]Record{}
	}
	if byKey == nil {
		byKey = map[string]Record{}
	}
	if byRoot == nil {
		byRoot = map[string]Record{}
	}

	idx := &Index{byID: byID, byKey: byKey, byRoot: byRoot, filter: filter}
	idx.fuzzy = make([]fuzzyEntry, 0, len(byKey))
	for k := range byKey {
		norm, year := splitKey(k)
		idx.fuzzy = append(idx.fuzzy, fuzzyEntry{norm: norm, year: year})
	}
	sort.Slice(idx.fuzzy, func(i, j int) bool {
		if idx.fuzzy[i].norm != idx.fuzzy[j].norm {
			return idx.fuzzy[i].norm < idx.fuzzy[j].norm
		}
		return idx.fuzzy[i].year < idx.fuzzy[j].year
	})
	return idx
}

func buildFilter(byID, byKey, byRoot map[string]Record, opts Options) MembershipTester {
	n := len(byID) + len(byKey) + len(byRoot)
	var f MembershipTester
	if opts.BloomEnabled {
		f = NewBloomTester(n, opts.BloomFPRate)
	} else {
		f = NewHashSetTester(n)
	}
	forEachProbe(byID, byKey, byRoot, f.Add)
	return f
}

func forEachProbe(byID, byKey, byRoot map[string]Record, fn func(string)) {
	for id := range byID {
		fn(idProbe(id))
	}
	for k := range byKey {
		fn(keyProbe(k))
	}
	for r := range byRoot {
		fn(rootProbe(r))
	}
}

// Key encodes a normalized title and year as stored under by_key. A missing
// year encodes as an empty field.
func Key(norm string, year int) string {
	if year <= 0 {
		return norm + "|"
	}
	return norm + "|" + strconv.Itoa(year)
}

func splitKey(k string) (string, int) {
	i := strings.LastIndexByte(k, '|')
	if i < 0 {
		return k, 0
	}
	year, _ := strconv.Atoi(k[i+1:])
	return k[:i], year
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func idProbe(id string) string  { return "id:" + id }
func keyProbe(k string) string  { return "key:" + k }
func rootProbe(r string) string { return "root:" + r }

// Len is the number of distinct records across all three shapes.
func (x *Index) Len() int {
	return len(x.byID) + len(x.byKey) + len(x.byRoot)
}

// Contains checks the candidate's cross-reference id, then each of its
// titles as (normalized title, year) and as a yearless entry, then for
// series the normalized series root.
func (x *Index) Contains(c *catalog.Candidate) bool {
	if id := normalizeID(c.IMDbID); id != "" && x.lookup(idProbe(id), x.byID, id) {
		return true
	}

	titles := c.Titles()
	for _, t := range titles {
		norm := titlekey.Normalize(t)
		if c.Year > 0 {
			k := Key(norm, c.Year)
			if x.lookup(keyProbe(k), x.byKey, k) {
				return true
			}
		}
		k := Key(norm, 0)
		if x.lookup(keyProbe(k), x.byKey, k) {
			return true
		}
	}

	if c.IsSeries() {
		for _, t := range titles {
			root := titlekey.SeriesRoot(t)
			if root != "" && x.lookup(rootProbe(root), x.byRoot, root) {
				return true
			}
		}
	}
	return false
}

// lookup consults the membership filter first; a negative there is final.
func (x *Index) lookup(probe string, m map[string]Record, key string) bool {
	if x.filter != nil && !x.filter.Test(probe) {
		return false
	}
	_, ok := m[key]
	return ok
}

// IsSeenFuzzy compares the query's normalized title against every stored
// title. A match needs similarity >= threshold and years within tolerance;
// a zero year on either side matches any year.
func (x *Index) IsSeenFuzzy(title string, year, tolerance, threshold int) bool {
	q := titlekey.Normalize(title)
	if q == "" {
		return false
	}
	for _, e := range x.fuzzy {
		if year > 0 && e.year > 0 && abs(e.year-year) > tolerance {
			continue
		}
		if titlekey.Similarity(q, e.norm) >= threshold {
			return true
		}
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
