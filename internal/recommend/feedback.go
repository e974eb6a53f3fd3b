package recommend

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/reelrank/reelrank/internal/catalog"
	"github.com/reelrank/reelrank/internal/feedback"
	"github.com/reelrank/reelrank/internal/metrics"
	"github.com/reelrank/reelrank/internal/pipeline"
	"github.com/reelrank/reelrank/internal/statefile"
)

// IngestReport summarizes one feedback ingestion.
type IngestReport struct {
	Messages  int `json:"messages"`
	Downvotes int `json:"downvotes"`
	Genres    int `json:"genres"`
	Hidden    int `json:"hidden"`
}

func (r *IngestReport) add(d feedback.Directives) {
	r.Downvotes += len(d.Downvotes)
	r.Genres += len(d.Genres)
	r.Hidden += len(d.Hide)
}

// IngestFeedback parses messages against the latest shown batch (or the
// candidate file when nothing has been shown yet), appends the resulting
// events and persists the feedback state.
func (s *Service) IngestFeedback(ctx context.Context, msgs []feedback.Message) (IngestReport, error) {
	if err := ctx.Err(); err != nil {
		return IngestReport{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	state := s.fbStore.Load()
	report := s.apply(state, msgs, s.feedbackBatch(), now)
	state.Prune(now, s.cfg.Feedback.HalfLifeDays)
	if err := s.fbStore.Save(state); err != nil {
		return report, err
	}
	return report, nil
}

// ingestInbox consumes the pending inbox file into state. The inbox is
// emptied only once the updated state is saved, so a failed run cannot lose
// messages.
func (s *Service) ingestInbox(state *feedback.State, batch []catalog.Candidate, now time.Time) {
	path := s.cfg.Paths.FeedbackInbox
	if path == "" {
		return
	}
	msgs, err := feedback.LoadInbox(path, s.logger)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Msg("Feedback inbox unreadable")
		}
		return
	}
	if len(msgs) == 0 {
		return
	}

	if prev := s.previousShortlist(); len(prev) > 0 {
		batch = append(append([]catalog.Candidate(nil), batch...), prev...)
	}
	s.apply(state, msgs, batch, now)
	if err := s.fbStore.Save(state); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist feedback state, inbox kept")
		return
	}
	if err := statefile.WriteBytes(path, nil); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to clear feedback inbox")
	}
}

func (s *Service) apply(state *feedback.State, msgs []feedback.Message, batch []catalog.Candidate, now time.Time) IngestReport {
	report := IngestReport{Messages: len(msgs)}
	for i := range msgs {
		at := msgs[i].At
		if at.IsZero() {
			at = now
		}
		d := s.parser.Parse(msgs[i].Text(), batch)
		if d.Empty() {
			continue
		}
		state.Update(d, at)
		report.add(d)
	}

	metrics.RecordFeedback("downvote", report.Downvotes)
	metrics.RecordFeedback("genre", report.Genres)
	metrics.RecordFeedback("hide", report.Hidden)
	s.logger.Info().
		Int("messages", report.Messages).
		Int("downvotes", report.Downvotes).
		Int("genres", report.Genres).
		Int("hidden", report.Hidden).
		Msg("Ingested feedback")
	return report
}

// feedbackBatch is the set of titles a free-form mention may resolve to:
// the latest shortlist, or the candidate file when nothing has run yet.
func (s *Service) feedbackBatch() []catalog.Candidate {
	if prev := s.previousShortlist(); len(prev) > 0 {
		return prev
	}

	if s.cfg.Paths.Candidates == "" {
		return nil
	}
	cands, err := catalog.LoadFile(s.cfg.Paths.Candidates, s.logger)
	if err != nil {
		s.logger.Debug().Err(err).Msg("No batch to resolve feedback titles against")
		return nil
	}
	return catalog.Dedupe(cands)
}

// previousShortlist returns the shortlist of the last run, reading the output
// file when this process has not run yet. Callers hold s.mu.
func (s *Service) previousShortlist() []catalog.Candidate {
	if s.latest == nil {
		var res pipeline.Result
		if err := statefile.ReadJSON(s.cfg.Paths.Output, &res); err != nil {
			return nil
		}
		s.latest = &res
	}
	out := make([]catalog.Candidate, 0, len(s.latest.Shortlist))
	for i := range s.latest.Shortlist {
		out = append(out, s.latest.Shortlist[i].Candidate)
	}
	return out
}
