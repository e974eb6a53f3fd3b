package recommend

import (
	"github.com/reelrank/reelrank/internal/config"
	"github.com/reelrank/reelrank/internal/feedback"
	"github.com/reelrank/reelrank/internal/pipeline"
	"github.com/reelrank/reelrank/internal/scoring"
	"github.com/reelrank/reelrank/internal/seen"
)

// SeenOptions maps the seen section onto index build options.
func SeenOptions(cfg *config.Config) seen.Options {
	return seen.Options{
		BloomEnabled: cfg.Seen.BloomEnabled,
		BloomFPRate:  cfg.Seen.BloomFPRate,
	}
}

// SeenPaths returns the history sources the seen index is built from.
func SeenPaths(cfg *config.Config) seen.Paths {
	return seen.Paths{
		RatingsCSV:    cfg.Paths.RatingsCSV,
		RemoteHistory: cfg.Paths.RemoteHistory,
	}
}

func FeedbackConfig(cfg *config.Config) feedback.Config {
	return feedback.Config{
		HalfLifeDays:     cfg.Feedback.HalfLifeDays,
		BaseTitlePenalty: cfg.Feedback.BaseTitlePenalty,
		BaseGenrePenalty: cfg.Feedback.BaseGenrePenalty,
		HideThreshold:    cfg.Feedback.HideThreshold,
		ActivityFloor:    cfg.Feedback.ActivityFloor,
	}
}

func ScoringConfig(cfg *config.Config) scoring.Config {
	return scoring.Config{
		PriorStrength:      cfg.Scoring.PriorStrength,
		PriorMean:          cfg.Scoring.PriorMean,
		NoveltyWindowYears: cfg.Scoring.NoveltyWindowYears,
		NeutralBase:        cfg.Scoring.NeutralBase,
		GenreBand:          cfg.Scoring.GenreBand,
		DirectorBand:       cfg.Scoring.DirectorBand,
		AuthorityCap:       cfg.Scoring.AuthorityCap,
	}
}

func PipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		ShortlistSize:      cfg.Ranking.ShortlistSize,
		ShownSize:          cfg.Ranking.ShownSize,
		Workers:            cfg.Ranking.Workers,
		SeenFuzzy:          cfg.Seen.FuzzyEnabled,
		SeenFuzzyThreshold: cfg.Seen.FuzzyThreshold,
		SeenFuzzyTolerance: cfg.Seen.FuzzyToleranceYear,
	}
}
