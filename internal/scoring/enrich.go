package scoring

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/reelrank/reelrank/internal/catalog"
	"github.com/reelrank/reelrank/internal/statefile"
)

// Enricher adds slower signals to a shortlisted candidate in place.
type Enricher interface {
	Enrich(ctx context.Context, c *catalog.Candidate) error
}

// Overlay is the enrichment record for one candidate key. Zero fields leave
// the candidate unchanged.
type Overlay struct {
	CriticScore   *float64 `json:"critic,omitempty"`
	AudienceScore *float64 `json:"audience,omitempty"`
	CriticLabel   string   `json:"critic_label,omitempty"`
	AudienceLabel string   `json:"audience_label,omitempty"`
	VoteCount     int      `json:"votes,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	Directors     []string `json:"directors,omitempty"`
	Cast          []string `json:"cast,omitempty"`
	Seasons       int      `json:"seasons,omitempty"`
}

// FileEnricher serves overlays from a local JSON file keyed by candidate
// key.
type FileEnricher struct {
	overlays map[string]Overlay
}

// NewFileEnricher wraps an in-memory overlay map.
func NewFileEnricher(overlays map[string]Overlay) *FileEnricher {
	if overlays == nil {
		overlays = map[string]Overlay{}
	}
	return &FileEnricher{overlays: overlays}
}

// LoadFileEnricher reads the overlay file at path. A missing or corrupt file
// yields an enricher that changes nothing.
func LoadFileEnricher(path string, logger zerolog.Logger) *FileEnricher {
	var overlays map[string]Overlay
	if err := statefile.ReadJSON(path, &overlays); err != nil {
		logger.Debug().Err(err).Msg("No enrichment overlay")
		return NewFileEnricher(nil)
	}
	logger.Debug().Int("entries", len(overlays)).Msg("Loaded enrichment overlay")
	return NewFileEnricher(overlays)
}

// Len reports the number of overlay entries.
func (f *FileEnricher) Len() int {
	return len(f.overlays)
}

func (f *FileEnricher) Enrich(ctx context.Context, c *catalog.Candidate) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enrich %s: %w", c.Key(), err)
	}
	o, ok := f.overlays[c.Key()]
	if !ok {
		return nil
	}

	if o.CriticScore != nil {
		c.CriticScore = o.CriticScore
	}
	if o.AudienceScore != nil {
		c.AudienceScore = o.AudienceScore
	}
	if o.CriticLabel != "" {
		c.CriticLabel = o.CriticLabel
	}
	if o.AudienceLabel != "" {
		c.AudienceLabel = o.AudienceLabel
	}
	if o.VoteCount > c.VoteCount {
		c.VoteCount = o.VoteCount
	}
	if len(o.Genres) > 0 && len(c.Genres) == 0 {
		c.Genres = o.Genres
	}
	if len(o.Directors) > 0 {
		c.Directors = o.Directors
	}
	if len(o.Cast) > 0 {
		c.Cast = o.Cast
	}
	if o.Seasons > 0 {
		c.Seasons = o.Seasons
	}
	return nil
}
