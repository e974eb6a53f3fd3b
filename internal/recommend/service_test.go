package recommend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelrank/reelrank/internal/config"
	"github.com/reelrank/reelrank/internal/feedback"
	"github.com/reelrank/reelrank/internal/history"
	"github.com/reelrank/reelrank/internal/pipeline"
	"github.com/reelrank/reelrank/internal/scoring"
	"github.com/reelrank/reelrank/internal/statefile"
	"github.com/reelrank/reelrank/internal/testutil"
)

const candidatesJSON = `[
  {"imdb_id": "tt0000001", "title": "Seen Movie", "year": 2019, "kind": "movie", "critic": 0.9, "audience": 0.9, "votes": 9000},
  {"imdb_id": "tt0000002", "title": "Blocked Film", "year": 2022, "kind": "movie", "critic": 0.9, "audience": 0.9, "votes": 9000},
  {"imdb_id": "tt0000003", "title": "Bright Horizon", "year": 2024, "kind": "movie", "critic": 0.9, "audience": 0.9, "votes": 5000},
  {"imdb_id": "tt0000004", "title": "Quiet Harbor", "year": 2023, "kind": "movie", "critic": 0.5, "audience": 0.5, "votes": 100}
]`

const ratingsCSV = "Const,Your Rating,Title,Title Type,Year,Genres,Directors\n" +
	"tt0000001,8,Seen Movie,movie,2019,Drama,Someone\n" +
	"tt0000009,9,Other Movie,movie,2010,Drama,Someone\n"

type fixture struct {
	dir string
	cfg *config.Config
	svc *Service
	now time.Time
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Paths = config.PathsConfig{
		Candidates:    filepath.Join(dir, "candidates.json"),
		RatingsCSV:    filepath.Join(dir, "ratings.csv"),
		Denylist:      filepath.Join(dir, "denylist.csv"),
		FeedbackState: filepath.Join(dir, "feedback.json"),
		FeedbackInbox: filepath.Join(dir, "inbox.jsonl"),
		SeenIndex:     filepath.Join(dir, "seen_index.json"),
		Weights:       filepath.Join(dir, "weights.json"),
		Output:        filepath.Join(dir, "recommendations.json"),
	}
	cfg.Ranking.ShortlistSize = 10
	cfg.Ranking.ShownSize = 1
	cfg.Ranking.Workers = 2

	write(t, cfg.Paths.Candidates, candidatesJSON)
	write(t, cfg.Paths.RatingsCSV, ratingsCSV)
	write(t, cfg.Paths.Denylist, "title,year\nBlocked Film,\n")

	tdb := testutil.NewTestDB(t)
	hist := history.NewService(tdb.DB.Conn(), tdb.Logger)

	f := &fixture{
		dir: dir,
		cfg: cfg,
		svc: NewService(cfg, hist, testutil.NewTestLogger(t)),
		now: time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC),
	}
	f.svc.now = func() time.Time { return f.now }
	return f
}

func keys(items []pipeline.OutputItem) []string {
	out := make([]string, 0, len(items))
	for i := range items {
		out = append(out, items[i].Key)
	}
	return out
}

func TestService_RunOnce(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"tt0000003"}, keys(res.Items))
	assert.Equal(t, []string{"tt0000003", "tt0000004"}, keys(res.Shortlist))
	assert.Equal(t, 4, res.Counts.Input)
	assert.Equal(t, 1, res.Counts.Seen)
	assert.Equal(t, 1, res.Counts.Excluded["any_year"])

	var onDisk pipeline.Result
	require.NoError(t, statefile.ReadJSON(f.cfg.Paths.Output, &onDisk))
	assert.Equal(t, res.RunID, onDisk.RunID)
	assert.FileExists(t, f.cfg.Paths.SeenIndex)
	assert.FileExists(t, f.cfg.Paths.SeenIndex+".bloom")
	assert.FileExists(t, f.cfg.Paths.FeedbackState)

	shown, err := f.svc.history.List(context.Background(), history.ListOptions{RunID: res.RunID})
	require.NoError(t, err)
	require.Len(t, shown.Items, 1)
	assert.Equal(t, "tt0000003", shown.Items[0].ItemKey)

	latest, err := f.svc.Latest()
	require.NoError(t, err)
	assert.Equal(t, res.RunID, latest.RunID)
}

func TestService_RunOnceRotatesRecentlyShown(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"tt0000003"}, keys(first.Items))

	f.now = f.now.Add(time.Hour)
	second, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"tt0000004"}, keys(second.Items))

	f.now = f.now.Add(5 * 24 * time.Hour)
	third, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"tt0000003"}, keys(third.Items), "skip window elapsed")
}

func TestService_RunOnceConsumesInbox(t *testing.T) {
	f := newFixture(t)
	write(t, f.cfg.Paths.FeedbackInbox, `{"body": "hide: tt0000003"}`+"\n")

	res, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"tt0000004"}, keys(res.Items))
	assert.Equal(t, 1, res.Counts.Hidden)

	data, err := os.ReadFile(f.cfg.Paths.FeedbackInbox)
	require.NoError(t, err)
	assert.Empty(t, data)

	var st feedback.State
	require.NoError(t, statefile.ReadJSON(f.cfg.Paths.FeedbackState, &st))
	assert.Equal(t, []string{"tt0000003"}, st.Hidden)
}

func TestService_RunOnceRebuildsSeenWhenHistoryChanges(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"tt0000003"}, keys(first.Items))

	file, err := os.OpenFile(f.cfg.Paths.RatingsCSV, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = file.WriteString("tt0000003,9,Bright Horizon,movie,2024,Drama,Someone\n")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	second, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Counts.Seen)
	assert.Equal(t, []string{"tt0000004"}, keys(second.Shortlist))

	fresh := NewService(f.cfg, nil, testutil.NopLogger())
	fresh.now = f.svc.now
	third, err := fresh.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, third.Counts.Seen, "persisted index is current")
}

func TestService_RunOnceFailureKeepsInboxFeedback(t *testing.T) {
	f := newFixture(t)
	write(t, f.cfg.Paths.FeedbackInbox, `{"body": "hide: tt0000003"}`+"\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)

	var st feedback.State
	require.NoError(t, statefile.ReadJSON(f.cfg.Paths.FeedbackState, &st))
	assert.Equal(t, []string{"tt0000003"}, st.Hidden)

	res, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"tt0000004"}, keys(res.Items))
	assert.Equal(t, 1, res.Counts.Hidden)
}

func TestService_IngestFeedback(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)

	report, err := f.svc.IngestFeedback(context.Background(), []feedback.Message{
		{Body: "👎 Bright Horizon\nskip genre: Horror"},
		{Body: "nothing actionable here"},
	})
	require.NoError(t, err)
	assert.Equal(t, IngestReport{Messages: 2, Downvotes: 1, Genres: 1}, report)

	var st feedback.State
	require.NoError(t, statefile.ReadJSON(f.cfg.Paths.FeedbackState, &st))
	require.Len(t, st.Titles["tt0000003"], 1)
	assert.Equal(t, f.now.Unix(), st.Titles["tt0000003"][0].TS)
	require.Len(t, st.Genres["horror"], 1)

	res, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Shortlist, 2)
	for _, it := range res.Shortlist {
		if it.Key == "tt0000003" {
			assert.Contains(t, it.Flags, "downvoted")
			assert.Contains(t, it.Why, "downvoted")
		} else {
			assert.NotContains(t, it.Flags, "downvoted")
		}
	}
}

func TestService_IngestFeedbackWithoutPriorRun(t *testing.T) {
	f := newFixture(t)

	report, err := f.svc.IngestFeedback(context.Background(), []feedback.Message{
		{HTML: "<p>downvote Quiet Harbor</p>"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Downvotes)
}

func TestService_RunOnceErrors(t *testing.T) {
	t.Run("no candidate source", func(t *testing.T) {
		f := newFixture(t)
		f.cfg.Paths.Candidates = ""
		_, err := f.svc.RunOnce(context.Background())
		assert.ErrorIs(t, err, ErrNoCandidateSource)
	})

	t.Run("missing candidate file", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, os.Remove(f.cfg.Paths.Candidates))
		_, err := f.svc.RunOnce(context.Background())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("empty candidate file", func(t *testing.T) {
		f := newFixture(t)
		write(t, f.cfg.Paths.Candidates, "")
		res, err := f.svc.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Empty(t, res.Items)
	})

	t.Run("corrupt state degrades to defaults", func(t *testing.T) {
		f := newFixture(t)
		write(t, f.cfg.Paths.FeedbackState, "{not json")
		write(t, f.cfg.Paths.Weights, "{not json")
		write(t, f.cfg.Paths.SeenIndex, "{\"by_id\": ")
		res, err := f.svc.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, scoring.DefaultWeights(), res.Weights)
		assert.Equal(t, []string{"tt0000003"}, keys(res.Items))
	})
}

func TestService_Latest(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Latest()
	assert.ErrorIs(t, err, statefile.ErrNotExist)

	res, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)

	fresh := NewService(f.cfg, nil, testutil.NopLogger())
	latest, err := fresh.Latest()
	require.NoError(t, err)
	assert.Equal(t, res.RunID, latest.RunID)
	assert.Equal(t, keys(res.Items), keys(latest.Items))
}

func TestService_RebuildSeen(t *testing.T) {
	f := newFixture(t)

	n, err := f.svc.RebuildSeen(context.Background())
	require.NoError(t, err)
	assert.Positive(t, n)
	assert.FileExists(t, f.cfg.Paths.SeenIndex)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.svc.RebuildSeen(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_TuneWeights(t *testing.T) {
	f := newFixture(t)

	w, report, err := f.svc.TuneWeights(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Rated)
	assert.Equal(t, 2, report.Positive)
	assert.Greater(t, w.AudienceWeight, scoring.DefaultWeights().AudienceWeight)

	var saved scoring.Weights
	require.NoError(t, statefile.ReadJSON(f.cfg.Paths.Weights, &saved))
	assert.InDelta(t, w.AudienceWeight, saved.AudienceWeight, 1e-9)
}
