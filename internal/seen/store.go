package seen

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelrank/reelrank/internal/statefile"
)

type document struct {
	ByID   map[string]Record `json:"by_id"`
	ByKey  map[string]Record `json:"by_key"`
	ByRoot map[string]Record `json:"by_root,omitempty"`
	Meta   documentMeta      `json:"meta"`
}

type documentMeta struct {
	Count   int       `json:"count"`
	BuiltAt time.Time `json:"built_at"`
	Sources string    `json:"sources,omitempty"`
}

// Store persists an Index as a JSON document plus a companion bloom blob.
type Store struct {
	path      string
	bloomPath string
	opts      Options
	logger    zerolog.Logger
}

// NewStore returns a store for the index at path. The bloom blob lives
// beside it with a ".bloom" suffix.
func NewStore(path string, opts Options, logger zerolog.Logger) *Store {
	return &Store{
		path:      path,
		bloomPath: path + ".bloom",
		opts:      opts,
		logger:    logger.With().Str("component", "seen-store").Logger(),
	}
}

// Load reads the persisted index. A missing or corrupt document yields an
// empty index and found=false. A missing, corrupt or stale bloom blob is
// rebuilt from the exact maps.
func (s *Store) Load() (idx *Index, found bool) {
	var doc document
	if err := statefile.ReadJSON(s.path, &doc); err != nil {
		if errors.Is(err, statefile.ErrNotExist) {
			s.logger.Debug().Str("path", s.path).Msg("No persisted seen index")
		} else {
			s.logger.Warn().Err(err).Msg("Ignoring unreadable seen index")
		}
		return Empty(), false
	}

	filter := s.loadFilter(doc)
	if filter == nil {
		filter = buildFilter(doc.ByID, doc.ByKey, doc.ByRoot, s.opts)
	}

	idx = newIndex(doc.ByID, doc.ByKey, doc.ByRoot, filter)
	idx.sources = doc.Meta.Sources
	s.logger.Debug().Int("records", idx.Len()).Msg("Loaded seen index")
	return idx, true
}

func (s *Store) loadFilter(doc document) MembershipTester {
	if !s.opts.BloomEnabled {
		return nil
	}
	data, err := statefile.ReadBytes(s.bloomPath)
	if err != nil {
		return nil
	}
	bt, err := UnmarshalBloomTester(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Rebuilding corrupt bloom filter")
		return nil
	}

	stale := false
	forEachProbe(doc.ByID, doc.ByKey, doc.ByRoot, func(p string) {
		if !stale && !bt.Test(p) {
			stale = true
		}
	})
	if stale {
		s.logger.Warn().Msg("Rebuilding stale bloom filter")
		return nil
	}
	return bt
}

// Save writes the document and, when the index carries one, the bloom blob.
// Both writes are atomic. Load checks the blob against the document, so a
// crash between the two writes costs a filter rebuild, not a false negative.
func (s *Store) Save(idx *Index) error {
	if bt, ok := idx.filter.(*BloomTester); ok {
		blob, err := bt.MarshalBinary()
		if err != nil {
			return err
		}
		if err := statefile.WriteBytes(s.bloomPath, blob); err != nil {
			return fmt.Errorf("failed to save bloom filter: %w", err)
		}
	}

	doc := document{
		ByID:   idx.byID,
		ByKey:  idx.byKey,
		ByRoot: idx.byRoot,
		Meta:   documentMeta{Count: idx.Len(), BuiltAt: time.Now().UTC(), Sources: idx.sources},
	}
	if err := statefile.WriteJSON(s.path, doc); err != nil {
		return fmt.Errorf("failed to save seen index: %w", err)
	}
	return nil
}

// Paths names the history sources an index is built from.
type Paths struct {
	RatingsCSV    string
	RemoteHistory string
}

// Fingerprint hashes the contents of every configured history source. A
// missing file hashes differently from an empty one. Compare it with
// Index.Sources to tell whether a persisted index is current.
func Fingerprint(paths Paths) string {
	h := sha256.New()
	for _, p := range []string{paths.RatingsCSV, paths.RemoteHistory} {
		if p == "" {
			continue
		}
		fmt.Fprintf(h, "%s\x00", p)
		f, err := os.Open(p)
		if err != nil {
			io.WriteString(h, "missing\x00")
			continue
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			io.WriteString(h, "unreadable\x00")
		}
		io.WriteString(h, "\x00")
	}
	return hex.EncodeToString(h.Sum(nil))
}

// LoadHistory reads every configured history source. Missing or unreadable
// sources are logged and skipped.
func LoadHistory(paths Paths, logger zerolog.Logger) []HistoryRow {
	var rows []HistoryRow

	if paths.RatingsCSV != "" {
		r, err := LoadHistoryCSV(paths.RatingsCSV, logger)
		if err != nil {
			logger.Warn().Err(err).Str("path", paths.RatingsCSV).Msg("Ratings history unavailable")
		}
		rows = append(rows, r...)
	}

	if paths.RemoteHistory != "" {
		r, err := LoadHistoryJSONL(paths.RemoteHistory, logger)
		if err != nil {
			logger.Warn().Err(err).Str("path", paths.RemoteHistory).Msg("Remote history unavailable")
		}
		rows = append(rows, r...)
	}
	return rows
}

// BuildFromFiles reads every configured history source and builds an index
// stamped with the sources' fingerprint. The result may be empty but is never
// nil. The combined rows are returned for profile building and weight tuning.
func BuildFromFiles(paths Paths, opts Options, logger zerolog.Logger) (*Index, []HistoryRow) {
	sources := Fingerprint(paths)
	rows := LoadHistory(paths, logger)
	idx := Build(rows, opts)
	idx.sources = sources
	logger.Info().Int("rows", len(rows)).Int("records", idx.Len()).Msg("Built seen index")
	return idx, rows
}
