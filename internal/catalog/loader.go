package catalog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// ErrNoCandidates is returned when a candidate source yields nothing usable.
var ErrNoCandidates = errors.New("no candidates")

// LoadFile reads a candidate batch from a JSON array or a JSON-lines file.
// Individual malformed lines are skipped and logged; only an unreadable
// file or an empty result is an error.
func LoadFile(path string, logger zerolog.Logger) ([]Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidates: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrNoCandidates
	}

	var out []Candidate
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("failed to decode candidates: %w", err)
		}
	} else {
		out = decodeLines(trimmed, logger)
	}

	out = sanitize(out)
	if len(out) == 0 {
		return nil, ErrNoCandidates
	}
	return out, nil
}

func decodeLines(data []byte, logger zerolog.Logger) []Candidate {
	var out []Candidate
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var c Candidate
		if err := json.Unmarshal(raw, &c); err != nil {
			logger.Debug().Err(err).Int("line", line).Msg("Skipping malformed candidate line")
			continue
		}
		out = append(out, c)
	}
	return out
}

// sanitize drops records without a title and fills in a default kind.
func sanitize(in []Candidate) []Candidate {
	out := in[:0]
	for _, c := range in {
		if c.Title == "" {
			continue
		}
		if k, ok := ParseKind(string(c.Kind)); ok {
			c.Kind = k
		} else {
			c.Kind = KindMovie
		}
		out = append(out, c)
	}
	return out
}

// Dedupe collapses candidates that share an identity: the same
// cross-reference id, or the same kind, normalized title and year. The
// record with more votes wins; ties keep the earlier record. Input order is
// otherwise preserved.
func Dedupe(in []Candidate) []Candidate {
	out := make([]Candidate, 0, len(in))
	byID := make(map[string]int)
	byTitle := make(map[string]int)

	for _, c := range in {
		id := NormalizeCrossRefID(c.IMDbID)
		tk := c.TitleKey()

		idx, found := -1, false
		if id != "" {
			idx, found = byID[id]
		}
		if !found {
			idx, found = byTitle[tk]
		}

		if found {
			if c.VoteCount > out[idx].VoteCount {
				out[idx] = c
			}
			if id != "" {
				byID[id] = idx
			}
			byTitle[tk] = idx
			continue
		}

		out = append(out, c)
		if id != "" {
			byID[id] = len(out) - 1
		}
		byTitle[tk] = len(out) - 1
	}
	return out
}
