// Package scoring computes 0-100 preference scores in two stages: a cheap
// preliminary score for shortlisting and a personalized final score.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/reelrank/reelrank/internal/catalog"
	"github.com/reelrank/reelrank/internal/feedback"
)

// Config holds the fixed scoring constants.
type Config struct {
	PriorStrength      float64
	PriorMean          float64
	NoveltyWindowYears float64
	NeutralBase        float64
	GenreBand          float64
	DirectorBand       float64
	AuthorityCap       float64
}

func DefaultConfig() Config {
	return Config{
		PriorStrength:      150,
		PriorMean:          6.5,
		NoveltyWindowYears: 15,
		NeutralBase:        60,
		GenreBand:          15,
		DirectorBand:       10,
		AuthorityCap:       5,
	}
}

// Parts is the breakdown of a final score.
type Parts struct {
	Base         float64 `json:"base"`
	Novelty      float64 `json:"novelty"`
	Commitment   float64 `json:"commitment"`
	GenreFit     float64 `json:"genre_fit"`
	Director     float64 `json:"director"`
	Authority    float64 `json:"authority"`
	TitlePenalty float64 `json:"title_penalty"`
	GenrePenalty float64 `json:"genre_penalty"`
}

// Scored is a final score with its explanation.
type Scored struct {
	Score float64
	Why   string
	Parts Parts
}

// Engine scores candidates. It only reads its fields, so one Engine may be
// shared by concurrent workers.
type Engine struct {
	cfg     Config
	weights Weights
	profile Profile
	now     time.Time
}

// NewEngine returns an engine with guarded weights, scoring as of now.
func NewEngine(cfg Config, w Weights, p Profile, now time.Time) *Engine {
	return &Engine{cfg: cfg, weights: w.Guard(), profile: p, now: now}
}

// Weights returns the guarded weights in use.
func (e *Engine) Weights() Weights {
	return e.weights
}

// unit reads a signal onto the 0-1 scale. Values on 0-10 or 0-100 scales
// are converted; missing, negative or non-finite values are unavailable.
func unit(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	x := *v
	switch {
	case math.IsNaN(x) || math.IsInf(x, 0) || x < 0:
		return 0, false
	case x <= 1:
		return x, true
	case x <= 10:
		return x / 10, true
	case x <= 100:
		return x / 100, true
	default:
		return 0, false
	}
}

// Bayesian shrinks rating r (0-10) with v votes toward prior mean mu with
// prior strength m.
func Bayesian(r float64, v int, m, mu float64) float64 {
	votes := math.Max(0, float64(v))
	if votes+m <= 0 {
		return mu
	}
	return (votes/(votes+m))*r + (m/(votes+m))*mu
}

// Novelty fades linearly from 1 for a title released this year to 0 at
// windowYears old. Unknown years score 0.
func Novelty(year int, now time.Time, windowYears float64) float64 {
	if year <= 0 || windowYears <= 0 {
		return 0
	}
	age := float64(now.Year() - year)
	if age <= 0 {
		return 1
	}
	return clamp(1-age/windowYears, 0, 1)
}

// CommitPenalty is the viewing-commitment discount before scaling: zero for
// movies, growing with season count for series.
func CommitPenalty(c *catalog.Candidate) float64 {
	if !c.IsSeries() {
		return 0
	}
	switch {
	case c.Seasons >= 3:
		return 0.09
	case c.Seasons == 2:
		return 0.04
	default:
		return 0.02
	}
}

func (e *Engine) modifiers(c *catalog.Candidate) (novelty, commit float64) {
	novelty = Novelty(c.Year, e.now, e.cfg.NoveltyWindowYears)
	commit = CommitPenalty(c) * e.weights.CommitmentCostScale
	return novelty, commit
}

// Prelim is the stage-1 score in [0, 100], using only fields every
// candidate carries.
func (e *Engine) Prelim(c *catalog.Candidate) float64 {
	mu := e.cfg.PriorMean
	critic, hasCritic := unit(c.CriticScore)
	audience, hasAudience := unit(c.AudienceScore)

	r := mu
	switch {
	case hasAudience:
		r = audience * 10
	case hasCritic:
		r = critic * 10
	}
	bayes := Bayesian(r, c.VoteCount, e.cfg.PriorStrength, mu) / 10

	if !hasCritic {
		critic = bayes
	}
	cw, aw := e.weights.CriticWeight, e.weights.AudienceWeight
	blend := bayes
	if cw+aw > 0 {
		blend = (cw*critic + aw*bayes) / (cw + aw)
	}

	novelty, commit := e.modifiers(c)
	score := blend * (1 + e.weights.NoveltyPressure*novelty) * (1 - commit) * 100
	return clampScore(score)
}

// Final is the personalized stage-2 score in [0, 100] with its explanation.
// pen may be nil.
func (e *Engine) Final(c *catalog.Candidate, pen *feedback.Penalties) Scored {
	var parts Parts
	var why []string

	critic, hasCritic := unit(c.CriticScore)
	audience, hasAudience := unit(c.AudienceScore)
	switch {
	case hasCritic && hasAudience:
		parts.Base = (critic + audience) / 2 * 100
	case hasCritic:
		parts.Base = critic * 100
	case hasAudience:
		parts.Base = audience * 100
	default:
		parts.Base = e.cfg.NeutralBase
	}
	if hasCritic {
		why = append(why, fmt.Sprintf("%s %.1f", labelOr(c.CriticLabel, "Critic"), critic*10))
	}
	if hasAudience {
		why = append(why, fmt.Sprintf("%s %.1f", labelOr(c.AudienceLabel, "Audience"), audience*10))
	}
	if c.Year > 0 {
		why = append(why, fmt.Sprintf("%d", c.Year))
	}

	novelty, commit := e.modifiers(c)
	base := parts.Base * (1 + e.weights.NoveltyPressure*novelty)
	parts.Novelty = base - parts.Base
	adjusted := base * (1 - commit)
	parts.Commitment = adjusted - base

	genres := c.LowerGenres()
	if len(genres) > 0 && len(e.profile.Genres) > 0 {
		sum := 0.0
		for _, g := range genres {
			sum += e.profile.Genres[g]
		}
		parts.GenreFit = sum / float64(len(genres)) * e.cfg.GenreBand
		if math.Abs(parts.GenreFit) >= 0.5 {
			why = append(why, fmt.Sprintf("genre fit %+.1f", parts.GenreFit))
		}
	}

	if name, w, ok := e.bestDirector(c.Directors); ok {
		parts.Director = w * e.cfg.DirectorBand
		if math.Abs(parts.Director) >= 0.5 {
			why = append(why, "director "+name)
		}
	}

	if c.VoteCount > 0 {
		parts.Authority = math.Min(e.cfg.AuthorityCap, math.Log10(1+float64(c.VoteCount)))
	}

	if pen != nil {
		parts.TitlePenalty = pen.TitlePenalty(c.Key())
		parts.GenrePenalty = pen.GenrePenalty(genres)
		if parts.TitlePenalty > 0.05 {
			why = append(why, fmt.Sprintf("downvoted -%.1f", parts.TitlePenalty))
		}
		if parts.GenrePenalty > 0.05 {
			why = append(why, fmt.Sprintf("genre penalty -%.1f", parts.GenrePenalty))
		}
	}

	if c.IsSeries() && c.Seasons >= 2 {
		why = append(why, "multi-season")
	}

	score := adjusted + parts.GenreFit + parts.Director + parts.Authority - parts.TitlePenalty - parts.GenrePenalty
	return Scored{Score: clampScore(score), Why: strings.Join(why, "; "), Parts: parts}
}

// bestDirector returns the candidate's director with the highest learned
// weight. ok is false when no director is in the profile.
func (e *Engine) bestDirector(directors []string) (string, float64, bool) {
	best, bestName, ok := 0.0, "", false
	for _, d := range directors {
		w, known := e.profile.Directors[normKey(d)]
		if !known {
			continue
		}
		if !ok || w > best {
			best, bestName, ok = w, d, true
		}
	}
	return bestName, best, ok
}

func labelOr(label, fallback string) string {
	if strings.TrimSpace(label) == "" {
		return fallback
	}
	return label
}

// clampScore pins s to [0, 100]; NaN scores 0.
func clampScore(s float64) float64 {
	if math.IsNaN(s) {
		return 0
	}
	return math.Max(0, math.Min(100, s))
}
