// Package pipeline runs one batch pass over a candidate set: dedupe,
// exclusion, seen suppression, feedback gating, two-stage scoring and
// ranking.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/reelrank/reelrank/internal/catalog"
	"github.com/reelrank/reelrank/internal/exclusion"
	"github.com/reelrank/reelrank/internal/feedback"
	"github.com/reelrank/reelrank/internal/metrics"
	"github.com/reelrank/reelrank/internal/ranker"
	"github.com/reelrank/reelrank/internal/scoring"
	"github.com/reelrank/reelrank/internal/seen"
)

// Config sizes a run.
type Config struct {
	ShortlistSize      int
	ShownSize          int
	Workers            int
	SeenFuzzy          bool
	SeenFuzzyThreshold int
	SeenFuzzyTolerance int
}

// Inputs are the read-only structures a run filters and scores against.
// Nil indices match nothing; a nil Enricher skips stage-2 enrichment.
type Inputs struct {
	Seen          *seen.Index
	Exclusions    *exclusion.Index
	Feedback      *feedback.State
	FeedbackCfg   feedback.Config
	Engine        *scoring.Engine
	Enricher      scoring.Enricher
	RecentlyShown map[string]bool
}

// Drop records why a candidate left the run.
type Drop struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Year   int    `json:"year,omitempty"`
	Reason string `json:"reason"`
}

// Counts are per-stage diagnostics.
type Counts struct {
	Input       int            `json:"input"`
	Deduped     int            `json:"deduped"`
	Excluded    map[string]int `json:"excluded"`
	Seen        int            `json:"seen"`
	SeenFuzzy   int            `json:"seen_fuzzy"`
	Hidden      int            `json:"hidden"`
	Scored      int            `json:"scored"`
	Shortlisted int            `json:"shortlisted"`
	Shown       int            `json:"shown"`
}

// OutputItem is one ranked candidate as written to the output file.
type OutputItem struct {
	catalog.Candidate
	Key        string        `json:"key"`
	Rank       int           `json:"rank"`
	Match      float64       `json:"match"`
	MatchScore int           `json:"match_score"`
	Prelim     float64       `json:"prelim"`
	Why        string        `json:"why"`
	Parts      scoring.Parts `json:"parts"`
	Flags      []string      `json:"flags,omitempty"`
}

// Result is the outcome of one run.
type Result struct {
	RunID       string          `json:"run_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Weights     scoring.Weights `json:"weights"`
	Counts      Counts          `json:"counts"`
	Items       []OutputItem    `json:"items"`
	Shortlist   []OutputItem    `json:"shortlist"`
	Dropped     []Drop          `json:"dropped,omitempty"`
}

// Runner executes pipeline passes.
type Runner struct {
	cfg    Config
	logger zerolog.Logger
}

func NewRunner(cfg Config, logger zerolog.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Runner{cfg: cfg, logger: logger.With().Str("component", "pipeline").Logger()}
}

// Run filters and ranks candidates as of now. Only context cancellation or
// a missing engine is an error; bad data shrinks the result instead.
func (r *Runner) Run(ctx context.Context, candidates []catalog.Candidate, in Inputs, now time.Time) (*Result, error) {
	if in.Engine == nil {
		return nil, errors.New("pipeline: scoring engine is required")
	}

	res := &Result{
		RunID:       uuid.New().String(),
		GeneratedAt: now.UTC(),
		Weights:     in.Engine.Weights(),
		Counts:      Counts{Input: len(candidates), Excluded: map[string]int{}},
		Items:       []OutputItem{},
		Shortlist:   []OutputItem{},
	}
	log := r.logger.With().Str("run_id", res.RunID).Logger()

	deduped := catalog.Dedupe(candidates)
	res.Counts.Deduped = len(deduped)

	survivors := r.filter(deduped, in, res)

	pen := feedback.Compute(in.Feedback, now, in.FeedbackCfg, survivors)
	items := make([]ranker.Item, 0, len(survivors))
	for i := range survivors {
		it := ranker.NewItem(survivors[i])
		if pen.IsHidden(it.Key) {
			res.Counts.Hidden++
			res.Dropped = append(res.Dropped, drop(&survivors[i], it.Key, "hidden"))
			continue
		}
		items = append(items, it)
	}
	res.Counts.Scored = len(items)

	if err := r.forEach(ctx, items, func(_ context.Context, it *ranker.Item) error {
		it.Prelim = in.Engine.Prelim(&it.Candidate)
		return nil
	}); err != nil {
		return nil, err
	}

	shortlist := append([]ranker.Item(nil), ranker.Shortlist(items, r.cfg.ShortlistSize)...)
	res.Counts.Shortlisted = len(shortlist)

	if err := r.forEach(ctx, shortlist, func(ctx context.Context, it *ranker.Item) error {
		if in.Enricher != nil {
			if err := in.Enricher.Enrich(ctx, &it.Candidate); err != nil {
				if ctx.Err() != nil {
					return err
				}
				log.Warn().Err(err).Str("key", it.Key).Msg("Enrichment failed, scoring with stage-1 fields")
			}
		}
		scored := in.Engine.Final(&it.Candidate, &pen)
		it.Score, it.Why, it.Parts = scored.Score, scored.Why, scored.Parts
		return nil
	}); err != nil {
		return nil, err
	}

	ranked, _ := ranker.Rank(shortlist, 0, 0)
	shown := ranker.SelectShown(ranked, r.cfg.ShownSize, in.RecentlyShown)
	res.Counts.Shown = len(shown)

	for i := range ranked {
		res.Shortlist = append(res.Shortlist, output(&ranked[i], i+1, in.RecentlyShown, &pen))
	}
	for i := range shown {
		res.Items = append(res.Items, output(&shown[i], i+1, in.RecentlyShown, &pen))
	}

	r.record(res)
	log.Info().
		Int("input", res.Counts.Input).
		Int("deduped", res.Counts.Deduped).
		Int("seen", res.Counts.Seen+res.Counts.SeenFuzzy).
		Int("hidden", res.Counts.Hidden).
		Int("shortlisted", res.Counts.Shortlisted).
		Int("shown", res.Counts.Shown).
		Msg("Ranked candidates")
	return res, nil
}

// filter applies the exclusion index, then exact and fuzzy seen checks.
func (r *Runner) filter(cands []catalog.Candidate, in Inputs, res *Result) []catalog.Candidate {
	out := make([]catalog.Candidate, 0, len(cands))
	for i := range cands {
		c := &cands[i]

		if in.Exclusions != nil {
			if reason, ok := in.Exclusions.Match(c); ok {
				res.Counts.Excluded[reason]++
				res.Dropped = append(res.Dropped, drop(c, c.Key(), "excluded:"+reason))
				continue
			}
		}

		if in.Seen != nil {
			if in.Seen.Contains(c) {
				res.Counts.Seen++
				res.Dropped = append(res.Dropped, drop(c, c.Key(), "seen"))
				continue
			}
			if r.cfg.SeenFuzzy && r.seenFuzzy(in.Seen, c) {
				res.Counts.SeenFuzzy++
				res.Dropped = append(res.Dropped, drop(c, c.Key(), "seen_fuzzy"))
				continue
			}
		}

		out = append(out, *c)
	}
	return out
}

func (r *Runner) seenFuzzy(idx *seen.Index, c *catalog.Candidate) bool {
	for _, t := range c.Titles() {
		if idx.IsSeenFuzzy(t, c.Year, r.cfg.SeenFuzzyTolerance, r.cfg.SeenFuzzyThreshold) {
			return true
		}
	}
	return false
}

// forEach runs fn over items on a bounded worker pool. Each call touches only
// its own item.
func (r *Runner) forEach(ctx context.Context, items []ranker.Item, fn func(context.Context, *ranker.Item) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := range items {
		it := &items[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, it)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

func (r *Runner) record(res *Result) {
	metrics.RecordStage("input", res.Counts.Input)
	metrics.RecordStage("deduped", res.Counts.Deduped)
	metrics.RecordStage("scored", res.Counts.Scored)
	metrics.RecordStage("shortlisted", res.Counts.Shortlisted)
	metrics.RecordStage("shown", res.Counts.Shown)

	metrics.RecordDropped("duplicate", res.Counts.Input-res.Counts.Deduped)
	excluded := 0
	for _, n := range res.Counts.Excluded {
		excluded += n
	}
	metrics.RecordDropped("excluded", excluded)
	metrics.RecordDropped("seen", res.Counts.Seen)
	metrics.RecordDropped("seen_fuzzy", res.Counts.SeenFuzzy)
	metrics.RecordDropped("hidden", res.Counts.Hidden)
}

func drop(c *catalog.Candidate, key, reason string) Drop {
	return Drop{Key: key, Title: c.Title, Year: c.Year, Reason: reason}
}

func output(it *ranker.Item, rank int, recent map[string]bool, pen *feedback.Penalties) OutputItem {
	o := OutputItem{
		Candidate:  it.Candidate,
		Key:        it.Key,
		Rank:       rank,
		Match:      math.Round(it.Score*10) / 10,
		MatchScore: int(math.Round(it.Score)),
		Prelim:     math.Round(it.Prelim*10) / 10,
		Why:        it.Why,
		Parts:      it.Parts,
	}
	if recent[it.Key] {
		o.Flags = append(o.Flags, "recently_shown")
	}
	if pen.TitlePenalty(it.Key) > 0 {
		o.Flags = append(o.Flags, "downvoted")
	}
	return o
}
