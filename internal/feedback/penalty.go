package feedback

import (
	"math"
	"time"

	"github.com/reelrank/reelrank/internal/catalog"
)

// Config holds the decay and penalty knobs.
type Config struct {
	HalfLifeDays     float64
	BaseTitlePenalty float64
	BaseGenrePenalty float64
	HideThreshold    int
	ActivityFloor    float64
}

func DefaultConfig() Config {
	return Config{
		HalfLifeDays:     30,
		BaseTitlePenalty: 20,
		BaseGenrePenalty: 8,
		HideThreshold:    2,
		ActivityFloor:    0.2,
	}
}

// Decayed returns weight × 0.5^(ageDays/halfLifeDays). Negative ages count
// as zero; a non-positive half-life disables decay.
func Decayed(weight, ageDays, halfLifeDays float64) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	if halfLifeDays <= 0 {
		return weight
	}
	return weight * math.Pow(0.5, ageDays/halfLifeDays)
}

func ageDays(e Event, now time.Time) float64 {
	return now.Sub(time.Unix(e.TS, 0)).Hours() / 24
}

// Penalties is the actionable feedback for one candidate batch.
type Penalties struct {
	Title  map[string]float64
	Genre  map[string]float64
	Active map[string]int
	Hidden map[string]bool
}

// TitlePenalty returns the penalty points for a candidate key.
func (p *Penalties) TitlePenalty(key string) float64 {
	return p.Title[key]
}

// GenrePenalty returns the mean penalty over the given lowercased genres.
func (p *Penalties) GenrePenalty(genres []string) float64 {
	if len(genres) == 0 {
		return 0
	}
	sum := 0.0
	for _, g := range genres {
		sum += p.Genre[g]
	}
	return sum / float64(len(genres))
}

// IsHidden reports whether the candidate key is gated out.
func (p *Penalties) IsHidden(key string) bool {
	return p.Hidden[key]
}

// Compute derives penalties from state as of now and keeps only entries for
// keys and genres present in the batch. It does not modify state.
func Compute(state *State, now time.Time, cfg Config, batch []catalog.Candidate) Penalties {
	keys := make(map[string]struct{}, len(batch))
	genres := make(map[string]struct{})
	for i := range batch {
		keys[batch[i].Key()] = struct{}{}
		for _, g := range batch[i].LowerGenres() {
			genres[g] = struct{}{}
		}
	}

	p := Penalties{
		Title:  make(map[string]float64),
		Genre:  make(map[string]float64),
		Active: make(map[string]int),
		Hidden: make(map[string]bool),
	}
	if state == nil {
		return p
	}

	for key, events := range state.Titles {
		sum, active := accumulate(events, now, cfg)
		if _, ok := keys[key]; !ok {
			continue
		}
		if sum > 0 {
			p.Title[key] = cfg.BaseTitlePenalty * sum
		}
		if active > 0 {
			p.Active[key] = active
		}
		if cfg.HideThreshold > 0 && active >= cfg.HideThreshold {
			p.Hidden[key] = true
		}
	}

	for genre, events := range state.Genres {
		sum, _ := accumulate(events, now, cfg)
		if _, ok := genres[genre]; ok && sum > 0 {
			p.Genre[genre] = cfg.BaseGenrePenalty * sum
		}
	}

	for _, key := range state.Hidden {
		if _, ok := keys[key]; ok {
			p.Hidden[key] = true
		}
	}
	return p
}

func accumulate(events []Event, now time.Time, cfg Config) (float64, int) {
	sum := 0.0
	active := 0
	for _, e := range events {
		w := Decayed(e.Weight, ageDays(e, now), cfg.HalfLifeDays)
		sum += w
		if w > cfg.ActivityFloor {
			active++
		}
	}
	return sum, active
}
