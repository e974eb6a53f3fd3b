// Package feedback turns downvote, skip-genre and hide events into decayed
// penalties and a hard hide decision.
package feedback

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelrank/reelrank/internal/statefile"
)

// Event is one negative signal. TS is epoch seconds; Weight is in (0, 1].
type Event struct {
	TS     int64   `json:"ts"`
	Weight float64 `json:"weight"`
}

// State is the persisted feedback history keyed by candidate key and by
// lowercased genre.
type State struct {
	Titles map[string][]Event `json:"titles"`
	Genres map[string][]Event `json:"genres"`
	Hidden []string           `json:"hidden"`
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		Titles: make(map[string][]Event),
		Genres: make(map[string][]Event),
		Hidden: []string{},
	}
}

func (s *State) ensure() {
	if s.Titles == nil {
		s.Titles = make(map[string][]Event)
	}
	if s.Genres == nil {
		s.Genres = make(map[string][]Event)
	}
	if s.Hidden == nil {
		s.Hidden = []string{}
	}
}

// Update appends the events of d, stamped at, to the state.
func (s *State) Update(d Directives, at time.Time) {
	s.ensure()
	ev := Event{TS: at.Unix(), Weight: 1.0}

	for _, key := range d.Downvotes {
		s.Titles[key] = append(s.Titles[key], ev)
	}
	for _, g := range d.Genres {
		s.Genres[g] = append(s.Genres[g], ev)
	}
	for _, key := range d.Hide {
		if !s.isHidden(key) {
			s.Hidden = append(s.Hidden, key)
		}
	}
	sort.Strings(s.Hidden)
}

func (s *State) isHidden(key string) bool {
	for _, h := range s.Hidden {
		if h == key {
			return true
		}
	}
	return false
}

// pruneFloor is the decayed weight below which an event no longer matters.
const pruneFloor = 0.01

// Prune drops events whose decayed weight has fallen below 1% and removes
// keys left without events. It returns the number of events dropped.
func (s *State) Prune(now time.Time, halfLifeDays float64) int {
	s.ensure()
	dropped := 0
	prune := func(m map[string][]Event) {
		for k, events := range m {
			kept := events[:0]
			for _, e := range events {
				if Decayed(e.Weight, ageDays(e, now), halfLifeDays) >= pruneFloor {
					kept = append(kept, e)
				} else {
					dropped++
				}
			}
			if len(kept) == 0 {
				delete(m, k)
			} else {
				m[k] = kept
			}
		}
	}
	prune(s.Titles)
	prune(s.Genres)
	return dropped
}

// Store loads and saves State atomically.
type Store struct {
	path   string
	logger zerolog.Logger
}

func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{path: path, logger: logger.With().Str("component", "feedback-store").Logger()}
}

// Load returns the persisted state, or an empty state when the file is
// missing or unreadable.
func (s *Store) Load() *State {
	st := NewState()
	if err := statefile.ReadJSON(s.path, st); err != nil {
		if !errors.Is(err, statefile.ErrNotExist) {
			s.logger.Warn().Err(err).Msg("Ignoring unreadable feedback state")
		}
		return NewState()
	}
	st.ensure()
	return st
}

// Save replaces the state file atomically.
func (s *Store) Save(st *State) error {
	st.ensure()
	if err := statefile.WriteJSON(s.path, st); err != nil {
		return fmt.Errorf("failed to save feedback state: %w", err)
	}
	return nil
}
