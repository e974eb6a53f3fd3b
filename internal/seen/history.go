package seen

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/reelrank/reelrank/internal/catalog"
)

// HistoryRow is one entry of the user's consumption history. Rating is on
// the 1-10 scale, 0 when the row carries no rating.
type HistoryRow struct {
	ID         string
	Title      string
	Year       int
	Kind       catalog.Kind
	Episode    bool
	Rating     float64
	Genres     []string
	Directors  []string
	SeriesName string
}

// Rated reports whether the row carries a user rating.
func (r *HistoryRow) Rated() bool {
	return r.Rating > 0
}

type column int

const (
	colID column = iota
	colTitle
	colYear
	colType
	colRating
	colGenres
	colDirectors
)

var historyHeaders = map[string]column{
	"const":          colID,
	"tconst":         colID,
	"imdb title id":  colID,
	"imdb_id":        colID,
	"imdb id":        colID,
	"id":             colID,
	"title":          colTitle,
	"name":           colTitle,
	"primarytitle":   colTitle,
	"originaltitle":  colTitle,
	"original title": colTitle,
	"year":           colYear,
	"startyear":      colYear,
	"release year":   colYear,
	"title type":     colType,
	"titletype":      colType,
	"type":           colType,
	"your rating":    colRating,
	"your_rating":    colRating,
	"my_rating":      colRating,
	"rating":         colRating,
	"genres":         colGenres,
	"directors":      colDirectors,
}

// LoadHistoryCSV reads a ratings export with flexible headers. Rows without
// an id or title are skipped individually.
func LoadHistoryCSV(path string, logger zerolog.Logger) ([]HistoryRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	defer f.Close()
	return parseHistoryCSV(f, logger)
}

func parseHistoryCSV(r io.Reader, logger zerolog.Logger) ([]HistoryRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history header: %w", err)
	}

	cols := make(map[column]int)
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if c, ok := historyHeaders[name]; ok {
			if _, dup := cols[c]; !dup {
				cols[c] = i
			}
		}
	}
	if _, ok := cols[colTitle]; !ok {
		if _, ok := cols[colID]; !ok {
			logger.Warn().Strs("header", header).Msg("History export has no recognized id or title column")
		}
	}

	var rows []HistoryRow
	skipped := 0
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		row, ok := historyRowFromRecord(rec, cols)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, row)
	}

	if skipped > 0 {
		logger.Debug().Int("skipped", skipped).Msg("Skipped malformed history rows")
	}
	return rows, nil
}

func historyRowFromRecord(rec []string, cols map[column]int) (HistoryRow, bool) {
	get := func(c column) string {
		i, ok := cols[c]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	row := HistoryRow{Title: get(colTitle)}

	row.ID = catalog.NormalizeCrossRefID(get(colID))
	if row.ID == "" {
		for _, cell := range rec {
			if m := catalog.CrossRefPattern.FindString(cell); m != "" {
				row.ID = strings.ToLower(m)
				break
			}
		}
	}
	if row.ID == "" && row.Title == "" {
		return HistoryRow{}, false
	}

	if y, ok := catalog.ParseYear(get(colYear)); ok {
		row.Year = y
	}

	applyType(&row, get(colType))

	if v, err := strconv.ParseFloat(get(colRating), 64); err == nil && v > 0 && v <= 10 {
		row.Rating = v
	}
	row.Genres = splitList(get(colGenres))
	row.Directors = splitList(get(colDirectors))
	return row, true
}

// applyType sets Kind from an export type value. Episode rows are titled
// "Series: Episode" and are attributed to their series.
func applyType(row *HistoryRow, raw string) {
	t := strings.ToLower(strings.TrimSpace(raw))
	if strings.Contains(t, "episode") {
		row.Kind = catalog.KindSeries
		row.Episode = true
		if name, _, found := strings.Cut(row.Title, ": "); found {
			row.SeriesName = name
		}
		return
	}
	if k, ok := catalog.ParseKind(t); ok {
		row.Kind = k
		return
	}
	row.Kind = catalog.KindMovie
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type remoteRow struct {
	TConst string  `json:"tconst"`
	IMDbID string  `json:"imdb_id"`
	Title  string  `json:"title"`
	Year   any     `json:"year"`
	Type   string  `json:"type"`
	Rating float64 `json:"rating"`
	Genres any     `json:"genres"`
}

// LoadHistoryJSONL reads a remote history export, one JSON object per line.
// Undecodable lines are skipped.
func LoadHistoryJSONL(path string, logger zerolog.Logger) ([]HistoryRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote history: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var rows []HistoryRow
	skipped := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rr remoteRow
		if err := json.Unmarshal([]byte(line), &rr); err != nil {
			skipped++
			continue
		}

		id := catalog.NormalizeCrossRefID(rr.TConst)
		if id == "" {
			id = catalog.NormalizeCrossRefID(rr.IMDbID)
		}
		if id == "" && rr.Title == "" {
			skipped++
			continue
		}

		row := HistoryRow{ID: id, Title: strings.TrimSpace(rr.Title)}
		row.Year = looseYear(rr.Year)
		applyType(&row, rr.Type)
		if rr.Rating > 0 && rr.Rating <= 10 {
			row.Rating = rr.Rating
		}
		row.Genres = looseList(rr.Genres)
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return rows, fmt.Errorf("failed to read remote history: %w", err)
	}

	if skipped > 0 {
		logger.Debug().Int("skipped", skipped).Msg("Skipped malformed remote history lines")
	}
	return rows, nil
}

func looseYear(v any) int {
	switch y := v.(type) {
	case float64:
		if yr, ok := catalog.ParseYear(strconv.Itoa(int(y))); ok {
			return yr
		}
	case string:
		if yr, ok := catalog.ParseYear(y); ok {
			return yr
		}
	}
	return 0
}

func looseList(v any) []string {
	switch g := v.(type) {
	case string:
		return splitList(g)
	case []any:
		out := make([]string, 0, len(g))
		for _, item := range g {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}
