package health

import "github.com/reelrank/reelrank/internal/config"

// Checks returns the file checks for a configuration.
func Checks(cfg *config.Config) []FileCheck {
	p := cfg.Paths
	return []FileCheck{
		{Category: CategoryInputs, ID: "candidates", Name: "Candidate batch", Path: p.Candidates, Required: true},
		{Category: CategoryInputs, ID: "ratings", Name: "Ratings export", Path: p.RatingsCSV},
		{Category: CategoryInputs, ID: "remote-history", Name: "Remote history export", Path: p.RemoteHistory},
		{Category: CategoryInputs, ID: "denylist", Name: "Deny list", Path: p.Denylist},
		{Category: CategoryInputs, ID: "enrichment", Name: "Enrichment overlay", Path: p.Enrichment},
		{Category: CategoryState, ID: "seen-index", Name: "Seen index", Path: p.SeenIndex},
		{Category: CategoryState, ID: "feedback", Name: "Feedback state", Path: p.FeedbackState},
		{Category: CategoryState, ID: "weights", Name: "Scoring weights", Path: p.Weights},
		{Category: CategoryState, ID: "output", Name: "Latest output", Path: p.Output},
	}
}
