// Package testutil provides helpers shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/reelrank/reelrank/internal/catalog"
	"github.com/reelrank/reelrank/internal/database"
)

// TestDB wraps a migrated test database.
type TestDB struct {
	DB     *database.DB
	Path   string
	Logger zerolog.Logger
}

// NewTestDB creates a migrated SQLite database under t.TempDir. It is closed
// automatically when the test ends.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := NewTestLogger(t)

	db, err := database.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return &TestDB{DB: db, Path: dbPath, Logger: logger}
}

// NewTestLogger creates a test logger that outputs to t.Log.
func NewTestLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}

// NopLogger returns a no-op logger for tests that don't need output.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}

// CandidateOption customizes a candidate built by NewCandidate.
type CandidateOption func(*catalog.Candidate)

// NewCandidate returns a movie candidate with the given title and year.
func NewCandidate(title string, year int, opts ...CandidateOption) catalog.Candidate {
	c := catalog.Candidate{Title: title, Year: year, Kind: catalog.KindMovie}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func WithIMDbID(id string) CandidateOption {
	return func(c *catalog.Candidate) { c.IMDbID = id }
}

func WithProviderID(id int64) CandidateOption {
	return func(c *catalog.Candidate) { c.ProviderID = id }
}

func WithSeries(seasons int) CandidateOption {
	return func(c *catalog.Candidate) {
		c.Kind = catalog.KindSeries
		c.Seasons = seasons
	}
}

// WithScores sets critic and audience scores on the 0-1 scale.
func WithScores(critic, audience float64) CandidateOption {
	return func(c *catalog.Candidate) {
		c.CriticScore = catalog.Float(critic)
		c.AudienceScore = catalog.Float(audience)
	}
}

func WithVotes(votes int) CandidateOption {
	return func(c *catalog.Candidate) { c.VoteCount = votes }
}

func WithPopularity(p float64) CandidateOption {
	return func(c *catalog.Candidate) { c.Popularity = p }
}

func WithGenres(genres ...string) CandidateOption {
	return func(c *catalog.Candidate) { c.Genres = genres }
}

func WithDirectors(directors ...string) CandidateOption {
	return func(c *catalog.Candidate) { c.Directors = directors }
}
