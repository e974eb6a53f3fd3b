// Package exclusion implements the user-curated deny list.
package exclusion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/reelrank/reelrank/internal/catalog"
)

// Record is one deny-list row. Zero Year means any year; empty Kind means
// any kind.
type Record struct {
	IMDbID     string
	ProviderID int64
	Title      string
	Year       int
	Kind       catalog.Kind
}

type field int

const (
	fieldID field = iota
	fieldProviderID
	fieldTitle
	fieldYear
	fieldType
)

var headerNames = map[string]field{
	"id":      fieldID,
	"imdb_id": fieldID,
	"imdb id": fieldID,
	"imdb":    fieldID,
	"tconst":  fieldID,
	"const":   fieldID,
	"tmdb_id": fieldProviderID,
	"tmdb id": fieldProviderID,
	"tmdb":    fieldProviderID,
	"title":   fieldTitle,
	"name":    fieldTitle,
	"year":    fieldYear,
	"type":    fieldType,
	"kind":    fieldType,
}

// Load reads the deny list at path.
func Load(path string, logger zerolog.Logger) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open denylist: %w", err)
	}
	defer f.Close()
	return Parse(f, logger)
}

// Parse reads deny-list rows. A first row containing any recognized column
// name is a header; otherwise every line is one bare id or title. Rows with
// an unparseable year are skipped.
func Parse(r io.Reader, logger zerolog.Logger) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.Comment = '#'

	var (
		records []Record
		cols    map[field]int
		first   = true
		skipped int
	)

	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		if blank(rec) {
			continue
		}

		if first {
			first = false
			if c, ok := detectHeader(rec); ok {
				cols = c
				continue
			}
		}

		var (
			row Record
			ok  bool
		)
		if cols != nil {
			row, ok = recordFromColumns(rec, cols)
		} else {
			row, ok = recordFromBare(strings.Join(rec, ","))
		}
		if !ok {
			skipped++
			continue
		}
		records = append(records, row)
	}

	if skipped > 0 {
		logger.Debug().Int("skipped", skipped).Msg("Skipped malformed denylist rows")
	}
	return records, nil
}

func blank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func detectHeader(rec []string) (map[field]int, bool) {
	cols := make(map[field]int)
	for i, cell := range rec {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(cell, "\ufeff")))
		if f, ok := headerNames[name]; ok {
			if _, dup := cols[f]; !dup {
				cols[f] = i
			}
		}
	}
	return cols, len(cols) > 0
}

func recordFromColumns(rec []string, cols map[field]int) (Record, bool) {
	get := func(f field) string {
		i, ok := cols[f]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	row := Record{Title: get(fieldTitle)}

	for _, raw := range []string{get(fieldID), get(fieldProviderID)} {
		if raw == "" {
			continue
		}
		switch {
		case catalog.IsCrossRefID(raw):
			row.IMDbID = catalog.NormalizeCrossRefID(raw)
		case isProviderID(raw):
			row.ProviderID, _ = strconv.ParseInt(raw, 10, 64)
		case row.Title == "":
			row.Title = raw
		}
	}

	year, ok := parseYearCell(get(fieldYear))
	if !ok {
		return Record{}, false
	}
	row.Year = year
	row.Kind = parseType(get(fieldType))

	if row.IMDbID == "" && row.ProviderID == 0 && row.Title == "" {
		return Record{}, false
	}
	return row, true
}

func recordFromBare(value string) (Record, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Record{}, false
	}
	if catalog.IsCrossRefID(value) {
		return Record{IMDbID: catalog.NormalizeCrossRefID(value)}, true
	}
	return Record{Title: value}, true
}

func isProviderID(s string) bool {
	n, err := strconv.ParseInt(s, 10, 64)
	return err == nil && n > 0
}

// parseYearCell treats blank and wildcard spellings as "any year".
func parseYearCell(s string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "*", "-":
		return 0, true
	}
	return catalog.ParseYear(s)
}

// parseType returns "" for blank, wildcard or unrecognized types so the row
// applies to every kind.
func parseType(s string) catalog.Kind {
	k, ok := catalog.ParseKind(s)
	if !ok {
		return ""
	}
	return k
}
