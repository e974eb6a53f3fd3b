package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/reelrank/reelrank/internal/seen"
	"github.com/reelrank/reelrank/internal/statefile"
)

// Weights are the blend knobs persisted between runs.
type Weights struct {
	CriticWeight        float64 `json:"critic_weight"`
	AudienceWeight      float64 `json:"audience_weight"`
	CommitmentCostScale float64 `json:"commitment_cost_scale"`
	NoveltyPressure     float64 `json:"novelty_pressure"`
}

// DefaultWeights favors audience over critic signals.
func DefaultWeights() Weights {
	return Weights{
		CriticWeight:        0.30,
		AudienceWeight:      0.65,
		CommitmentCostScale: 1.0,
		NoveltyPressure:     0.15,
	}
}

// Guard repairs degenerate weights: non-finite values fall back to defaults,
// negatives become zero, and critic and audience are swapped when audience
// would otherwise trail critic.
func (w Weights) Guard() Weights {
	def := DefaultWeights()
	fix := func(v, fallback float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fallback
		}
		if v < 0 {
			return 0
		}
		return v
	}

	w.CriticWeight = fix(w.CriticWeight, def.CriticWeight)
	w.AudienceWeight = fix(w.AudienceWeight, def.AudienceWeight)
	w.CommitmentCostScale = fix(w.CommitmentCostScale, def.CommitmentCostScale)
	w.NoveltyPressure = fix(w.NoveltyPressure, def.NoveltyPressure)

	if w.AudienceWeight < w.CriticWeight {
		w.AudienceWeight, w.CriticWeight = w.CriticWeight, w.AudienceWeight
	}
	return w
}

type weightsFile struct {
	CriticWeight        *float64 `json:"critic_weight"`
	AudienceWeight      *float64 `json:"audience_weight"`
	CommitmentCostScale *float64 `json:"commitment_cost_scale"`
	NoveltyPressure     *float64 `json:"novelty_pressure"`
}

// LoadWeights reads the weights file, backfilling absent keys with defaults
// and applying Guard. A missing or corrupt file yields guarded defaults.
func LoadWeights(path string, logger zerolog.Logger) Weights {
	w := DefaultWeights()

	var f weightsFile
	if err := statefile.ReadJSON(path, &f); err != nil {
		if !errors.Is(err, statefile.ErrNotExist) {
			logger.Warn().Err(err).Msg("Using default weights")
		}
		return w.Guard()
	}

	if f.CriticWeight != nil {
		w.CriticWeight = *f.CriticWeight
	}
	if f.AudienceWeight != nil {
		w.AudienceWeight = *f.AudienceWeight
	}
	if f.CommitmentCostScale != nil {
		w.CommitmentCostScale = *f.CommitmentCostScale
	}
	if f.NoveltyPressure != nil {
		w.NoveltyPressure = *f.NoveltyPressure
	}
	return w.Guard()
}

// SaveWeights writes guarded weights atomically.
func SaveWeights(path string, w Weights) error {
	if err := statefile.WriteJSON(path, w.Guard()); err != nil {
		return fmt.Errorf("failed to save weights: %w", err)
	}
	return nil
}

const (
	tuneStep           = 0.04
	tuneCriticFraction = 0.6
	minAudienceWeight  = 0.55
	maxAudienceWeight  = 0.80
	minCriticWeight    = 0.15
	maxCriticWeight    = 0.40
)

// TuneReport describes one tuning pass.
type TuneReport struct {
	Positive int
	Negative int
	Rated    int
	Delta    float64
}

// TuneWeights nudges audience weight up (and critic down) when the user
// rates more titles 8-10 than 1-5, and the reverse otherwise. Each pass moves
// audience weight by at most 0.04; results stay inside fixed bands and are
// guarded.
func TuneWeights(w Weights, rows []seen.HistoryRow) (Weights, TuneReport) {
	var rep TuneReport
	for i := range rows {
		r := rows[i].Rating
		switch {
		case r >= 8:
			rep.Positive++
		case r > 0 && r <= 5:
			rep.Negative++
		}
		if r > 0 {
			rep.Rated++
		}
	}
	if rep.Rated == 0 {
		return w.Guard(), rep
	}

	rep.Delta = float64(rep.Positive-rep.Negative) / float64(rep.Rated)
	w.AudienceWeight = clamp(w.AudienceWeight+tuneStep*rep.Delta, minAudienceWeight, maxAudienceWeight)
	w.CriticWeight = clamp(w.CriticWeight-tuneStep*tuneCriticFraction*rep.Delta, minCriticWeight, maxCriticWeight)
	return w.Guard(), rep
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
