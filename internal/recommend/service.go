// Package recommend orchestrates a full recommendation run: it loads the
// on-disk state stores, runs the pipeline and persists state and output.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelrank/reelrank/internal/catalog"
	"github.com/reelrank/reelrank/internal/config"
	"github.com/reelrank/reelrank/internal/exclusion"
	"github.com/reelrank/reelrank/internal/feedback"
	"github.com/reelrank/reelrank/internal/history"
	"github.com/reelrank/reelrank/internal/metrics"
	"github.com/reelrank/reelrank/internal/pipeline"
	"github.com/reelrank/reelrank/internal/scoring"
	"github.com/reelrank/reelrank/internal/seen"
	"github.com/reelrank/reelrank/internal/statefile"
)

// ErrNoCandidateSource is returned when no candidate file is configured.
var ErrNoCandidateSource = errors.New("no candidate source configured")

// Service runs recommendation passes. At most one run or state mutation
// executes at a time.
type Service struct {
	cfg       *config.Config
	history   *history.Service
	seenStore *seen.Store
	fbStore   *feedback.Store
	parser    *feedback.Parser
	runner    *pipeline.Runner
	logger    zerolog.Logger
	now       func() time.Time

	mu     sync.Mutex
	latest *pipeline.Result
}

// NewService creates a recommendation service. hist may be nil, in which
// case rotation and shown-item logging are disabled.
func NewService(cfg *config.Config, hist *history.Service, logger zerolog.Logger) *Service {
	log := logger.With().Str("component", "recommend").Logger()
	return &Service{
		cfg:       cfg,
		history:   hist,
		seenStore: seen.NewStore(cfg.Paths.SeenIndex, SeenOptions(cfg), logger),
		fbStore:   feedback.NewStore(cfg.Paths.FeedbackState, logger),
		parser:    feedback.NewParser(cfg.Feedback.ResolveThreshold, logger),
		runner:    pipeline.NewRunner(PipelineConfig(cfg), logger),
		logger:    log,
		now:       time.Now,
	}
}

// RunOnce executes one full pass and writes the output file.
func (s *Service) RunOnce(ctx context.Context) (*pipeline.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	res, err := s.run(ctx)
	metrics.RecordRun(time.Since(start), err)
	if err != nil {
		s.logger.Error().Err(err).Msg("Recommendation run failed")
		return nil, err
	}
	return res, nil
}

func (s *Service) run(ctx context.Context) (*pipeline.Result, error) {
	if s.cfg.Paths.Candidates == "" {
		return nil, ErrNoCandidateSource
	}
	now := s.now()

	candidates, err := catalog.LoadFile(s.cfg.Paths.Candidates, s.logger)
	if err != nil {
		if !errors.Is(err, catalog.ErrNoCandidates) {
			return nil, err
		}
		s.logger.Warn().Str("path", s.cfg.Paths.Candidates).Msg("Candidate file has no usable records")
	}

	seenIdx, rows := s.loadSeen()

	state := s.fbStore.Load()
	s.ingestInbox(state, candidates, now)

	in := pipeline.Inputs{
		Seen:          seenIdx,
		Exclusions:    s.loadExclusions(),
		Feedback:      state,
		FeedbackCfg:   FeedbackConfig(s.cfg),
		Engine:        scoring.NewEngine(ScoringConfig(s.cfg), scoring.LoadWeights(s.cfg.Paths.Weights, s.logger), s.loadProfile(rows), now),
		RecentlyShown: s.recentlyShown(ctx, now),
	}
	if s.cfg.Paths.Enrichment != "" {
		in.Enricher = scoring.LoadFileEnricher(s.cfg.Paths.Enrichment, s.logger)
	}

	res, err := s.runner.Run(ctx, candidates, in, now)
	if err != nil {
		return nil, err
	}

	if pruned := state.Prune(now, s.cfg.Feedback.HalfLifeDays); pruned > 0 {
		s.logger.Debug().Int("pruned", pruned).Msg("Pruned decayed feedback events")
	}
	if err := s.fbStore.Save(state); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist feedback state")
	}

	if err := statefile.WriteJSON(s.cfg.Paths.Output, res); err != nil {
		return nil, fmt.Errorf("failed to write output: %w", err)
	}
	s.recordShown(ctx, res, now)

	s.latest = res
	return res, nil
}

// loadSeen returns the persisted index when it was built from the current
// history files, and otherwise rebuilds and saves it. The history rows are
// returned for profile building.
func (s *Service) loadSeen() (*seen.Index, []seen.HistoryRow) {
	paths := SeenPaths(s.cfg)
	if idx, found := s.seenStore.Load(); found && idx.Sources() == seen.Fingerprint(paths) {
		metrics.SetSeenIndexSize(idx.Len())
		return idx, seen.LoadHistory(paths, s.logger)
	}

	idx, rows := seen.BuildFromFiles(paths, SeenOptions(s.cfg), s.logger)
	if err := s.seenStore.Save(idx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist seen index")
	}
	metrics.SetSeenIndexSize(idx.Len())
	return idx, rows
}

func (s *Service) loadExclusions() *exclusion.Index {
	if s.cfg.Paths.Denylist == "" {
		return nil
	}
	records, err := exclusion.Load(s.cfg.Paths.Denylist, s.logger)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Denylist unavailable, nothing excluded")
		return nil
	}
	return exclusion.NewIndex(records, s.cfg.Exclusion.FuzzyThreshold)
}

func (s *Service) loadProfile(rows []seen.HistoryRow) scoring.Profile {
	p := scoring.BuildProfile(rows)
	if s.cfg.Paths.Profile == "" {
		return p
	}
	merged, err := scoring.LoadProfile(s.cfg.Paths.Profile, p)
	if err != nil {
		s.logger.Debug().Err(err).Msg("No profile overrides applied")
		return p
	}
	return merged
}

func (s *Service) recentlyShown(ctx context.Context, now time.Time) map[string]bool {
	if s.history == nil || s.cfg.Ranking.SkipWindowDays <= 0 {
		return nil
	}
	since := now.Add(-time.Duration(s.cfg.Ranking.SkipWindowDays) * 24 * time.Hour)
	recent, err := s.history.RecentlyShown(ctx, since)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Shown history unavailable, rotation disabled")
		return nil
	}
	return recent
}

func (s *Service) recordShown(ctx context.Context, res *pipeline.Result, now time.Time) {
	if s.history == nil || len(res.Items) == 0 {
		return
	}
	items := make([]history.RecordInput, 0, len(res.Items))
	for i := range res.Items {
		it := &res.Items[i]
		items = append(items, history.RecordInput{
			ItemKey: it.Key,
			Title:   it.Title,
			Year:    it.Year,
			Kind:    string(it.Kind),
			Rank:    it.Rank,
			Score:   it.Match,
		})
	}
	if err := s.history.Record(ctx, res.RunID, now, items); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record shown items")
	}
}

// Latest returns the most recent result, reading the output file when no run
// has happened in this process. A missing file yields statefile.ErrNotExist.
func (s *Service) Latest() (*pipeline.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest != nil {
		return s.latest, nil
	}
	var res pipeline.Result
	if err := statefile.ReadJSON(s.cfg.Paths.Output, &res); err != nil {
		return nil, err
	}
	s.latest = &res
	return s.latest, nil
}

// RebuildSeen rebuilds the seen index from the history sources and persists
// it. It returns the number of records in the new index.
func (s *Service) RebuildSeen(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, _ := seen.BuildFromFiles(SeenPaths(s.cfg), SeenOptions(s.cfg), s.logger)
	if err := s.seenStore.Save(idx); err != nil {
		return 0, err
	}
	metrics.SetSeenIndexSize(idx.Len())
	return idx.Len(), nil
}

// TuneWeights nudges the stored weights from the rated history and saves
// them.
func (s *Service) TuneWeights(ctx context.Context) (scoring.Weights, scoring.TuneReport, error) {
	if err := ctx.Err(); err != nil {
		return scoring.Weights{}, scoring.TuneReport{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := seen.LoadHistory(SeenPaths(s.cfg), s.logger)
	tuned, report := scoring.TuneWeights(scoring.LoadWeights(s.cfg.Paths.Weights, s.logger), rows)
	if err := scoring.SaveWeights(s.cfg.Paths.Weights, tuned); err != nil {
		return scoring.Weights{}, report, err
	}
	s.logger.Info().
		Int("rated", report.Rated).
		Float64("delta", report.Delta).
		Float64("audience_weight", tuned.AudienceWeight).
		Float64("critic_weight", tuned.CriticWeight).
		Msg("Tuned weights")
	return tuned, report, nil
}
