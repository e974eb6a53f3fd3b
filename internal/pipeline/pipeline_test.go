package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelrank/reelrank/internal/catalog"
	"github.com/reelrank/reelrank/internal/exclusion"
	"github.com/reelrank/reelrank/internal/feedback"
	"github.com/reelrank/reelrank/internal/scoring"
	"github.com/reelrank/reelrank/internal/seen"
	"github.com/reelrank/reelrank/internal/testutil"
)

var now = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

func engine() *scoring.Engine {
	return scoring.NewEngine(scoring.DefaultConfig(), scoring.DefaultWeights(), scoring.Profile{}, now)
}

func defaultConfig() Config {
	return Config{ShortlistSize: 50, ShownSize: 10, Workers: 4, SeenFuzzy: true, SeenFuzzyThreshold: 92, SeenFuzzyTolerance: 1}
}

func TestRun_SeenByNormalizedKey(t *testing.T) {
	candidates := []catalog.Candidate{
		{IMDbID: "tt001", Title: "X", Year: 2020, Kind: catalog.KindMovie, CriticScore: catalog.Float(0.8), AudienceScore: catalog.Float(0.7), VoteCount: 500},
		{IMDbID: "tt002", Title: "X", Year: 2020, Kind: catalog.KindMovie},
	}
	in := Inputs{
		Seen:   seen.Build([]seen.HistoryRow{{Title: "x", Year: 2020}}, seen.Options{BloomEnabled: true, BloomFPRate: 0.001}),
		Engine: engine(),
	}

	res, err := NewRunner(defaultConfig(), testutil.NewTestLogger(t)).Run(context.Background(), candidates, in, now)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Empty(t, res.Shortlist)
	assert.Equal(t, 2, res.Counts.Input)
	assert.Equal(t, res.Counts.Deduped, res.Counts.Seen)

	// The same batch without a seen index is not empty.
	res, err = NewRunner(defaultConfig(), testutil.NopLogger()).Run(context.Background(), candidates, Inputs{Engine: engine()}, now)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Items)
}

func TestRun_FiltersAndRanks(t *testing.T) {
	candidates := []catalog.Candidate{
		testutil.NewCandidate("Heat", 1995, testutil.WithIMDbID("tt0113277"), testutil.WithScores(0.83, 0.83), testutil.WithVotes(700000)),
		testutil.NewCandidate("Alien", 1979, testutil.WithIMDbID("tt0078748"), testutil.WithScores(0.85, 0.85), testutil.WithVotes(900000)),
		testutil.NewCandidate("Arrival", 2016, testutil.WithProviderID(329865), testutil.WithScores(0.79, 0.8), testutil.WithVotes(800000)),
		testutil.NewCandidate("Cats", 2019, testutil.WithScores(0.2, 0.3), testutil.WithVotes(50000)),
		testutil.NewCandidate("Dune Part Two", 2024, testutil.WithIMDbID("tt15239678"), testutil.WithScores(0.85, 0.86), testutil.WithVotes(600000)),
		testutil.NewCandidate("Mission Impossible Dead Reckoning", 2023, testutil.WithScores(0.77, 0.77), testutil.WithVotes(300000)),
		testutil.NewCandidate("Unknown Gem", 0),
	}

	state := feedback.NewState()
	state.Update(feedback.Directives{Downvotes: []string{"tt0078748", "tt0078748"}}, now.Add(-time.Hour))
	state.Update(feedback.Directives{Downvotes: []string{"tt0113277"}}, now.Add(-time.Hour))

	in := Inputs{
		Seen: seen.Build([]seen.HistoryRow{
			{ID: "tt15239678", Title: "Dune: Part Two", Year: 2024},
			{Title: "Mission: Impossible - Dead Reckoning Part One", Year: 2023},
		}, seen.Options{}),
		Exclusions:  exclusion.NewIndex([]exclusion.Record{{Title: "Cats"}}, 95),
		Feedback:    state,
		FeedbackCfg: feedback.DefaultConfig(),
		Engine:      engine(),
		Enricher: scoring.NewFileEnricher(map[string]scoring.Overlay{
			"tmdb:329865": {Directors: []string{"Denis Villeneuve"}},
		}),
	}

	res, err := NewRunner(defaultConfig(), testutil.NewTestLogger(t)).Run(context.Background(), candidates, in, now)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Counts.Excluded[exclusion.ReasonAnyYear])
	assert.Equal(t, 1, res.Counts.Seen)
	assert.Equal(t, 1, res.Counts.SeenFuzzy)
	assert.Equal(t, 1, res.Counts.Hidden)

	var keys []string
	for _, it := range res.Items {
		keys = append(keys, it.Key)
		assert.GreaterOrEqual(t, it.MatchScore, 0)
		assert.LessOrEqual(t, it.MatchScore, 100)
	}
	assert.ElementsMatch(t, []string{"tt0113277", "tmdb:329865", "movie:unknown gem:"}, keys)
	assert.Equal(t, []string{"Denis Villeneuve"}, res.Items[indexOf(keys, "tmdb:329865")].Directors)

	heat := res.Items[indexOf(keys, "tt0113277")]
	assert.Contains(t, heat.Flags, "downvoted")
	assert.Greater(t, heat.Parts.TitlePenalty, 0.0)

	for i := 1; i < len(res.Items); i++ {
		assert.GreaterOrEqual(t, res.Items[i-1].Match, res.Items[i].Match)
		assert.Equal(t, i+1, res.Items[i].Rank)
	}
}

func indexOf(keys []string, key string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}

func TestRun_Deterministic(t *testing.T) {
	var candidates []catalog.Candidate
	for i, title := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		candidates = append(candidates, testutil.NewCandidate(title, 2010+i%3, testutil.WithScores(0.7, 0.7), testutil.WithVotes(1000)))
	}

	encode := func() []byte {
		res, err := NewRunner(defaultConfig(), testutil.NopLogger()).Run(context.Background(), candidates, Inputs{Engine: engine()}, now)
		require.NoError(t, err)
		res.RunID = ""
		data, err := json.Marshal(res)
		require.NoError(t, err)
		return data
	}

	first := encode()
	for range 5 {
		assert.Equal(t, first, encode())
	}
}

func TestRun_RotationSkipsRecentlyShown(t *testing.T) {
	candidates := []catalog.Candidate{
		testutil.NewCandidate("Top", 2020, testutil.WithScores(0.9, 0.9), testutil.WithVotes(1000)),
		testutil.NewCandidate("Mid", 2020, testutil.WithScores(0.7, 0.7), testutil.WithVotes(1000)),
		testutil.NewCandidate("Low", 2020, testutil.WithScores(0.5, 0.5), testutil.WithVotes(1000)),
	}
	cfg := defaultConfig()
	cfg.ShownSize = 2

	in := Inputs{Engine: engine(), RecentlyShown: map[string]bool{"movie:top:2020": true}}
	res, err := NewRunner(cfg, testutil.NopLogger()).Run(context.Background(), candidates, in, now)
	require.NoError(t, err)

	require.Len(t, res.Items, 2)
	assert.Equal(t, "Mid", res.Items[0].Title)
	assert.Equal(t, "Low", res.Items[1].Title)
	assert.Len(t, res.Shortlist, 3)
	assert.Contains(t, res.Shortlist[0].Flags, "recently_shown")
}

func TestRun_Errors(t *testing.T) {
	runner := NewRunner(defaultConfig(), testutil.NopLogger())
	_, err := runner.Run(context.Background(), nil, Inputs{}, now)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = runner.Run(ctx, []catalog.Candidate{testutil.NewCandidate("A", 2020)}, Inputs{Engine: engine()}, now)
	assert.ErrorIs(t, err, context.Canceled)

	res, err := runner.Run(context.Background(), nil, Inputs{Engine: engine()}, now)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}
