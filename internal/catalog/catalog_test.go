package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input  string
		want   Kind
		wantOK bool
	}{
		{"movie", KindMovie, true},
		{"Feature", KindMovie, true},
		{"tvSeries", KindSeries, true},
		{"TV Mini Series", KindSeries, true},
		{"tv", KindSeries, true},
		{"", "", false},
		{"podcast", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseKind(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestIsCrossRefID(t *testing.T) {
	assert.True(t, IsCrossRefID("tt0111161"))
	assert.True(t, IsCrossRefID(" TT0111161 "))
	assert.False(t, IsCrossRefID("0111161"))
	assert.False(t, IsCrossRefID("tt12"))
	assert.False(t, IsCrossRefID("https://www.imdb.com/title/tt0111161/"))
	assert.Equal(t, "tt0111161", NormalizeCrossRefID("TT0111161"))
	assert.Equal(t, "", NormalizeCrossRefID("nope"))
}

func TestCandidate_Key(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want string
	}{
		{"cross ref id", Candidate{IMDbID: "TT0111161", ProviderID: 278, Title: "x"}, "tt0111161"},
		{"provider id", Candidate{ProviderID: 278, Title: "x"}, "tmdb:278"},
		{"title year", Candidate{Title: "The Heat", Year: 1995, Kind: KindMovie}, "movie:heat:1995"},
		{"series no year", Candidate{Title: "Dark", Kind: KindSeries}, "series:dark:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Key())
		})
	}
}

func TestCandidate_Titles(t *testing.T) {
	c := Candidate{Title: "The Raid", AltTitles: []string{"Raid", "", "Serbuan Maut"}}
	assert.Equal(t, []string{"The Raid", "Serbuan Maut"}, c.Titles())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.Nop()

	t.Run("json array", func(t *testing.T) {
		path := filepath.Join(dir, "array.json")
		require.NoError(t, os.WriteFile(path, []byte(`[
			{"imdb_id":"tt001","title":"X","year":2020,"kind":"movie","critic":0.8,"votes":500},
			{"title":"","kind":"movie"},
			{"title":"Dark","kind":"tvSeries","seasons":3}
		]`), 0o600))

		got, err := LoadFile(path, logger)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, KindMovie, got[0].Kind)
		require.NotNil(t, got[0].CriticScore)
		assert.InDelta(t, 0.8, *got[0].CriticScore, 1e-9)
		assert.Nil(t, got[0].AudienceScore)
		assert.Equal(t, KindSeries, got[1].Kind)
	})

	t.Run("json lines with bad line", func(t *testing.T) {
		path := filepath.Join(dir, "lines.jsonl")
		require.NoError(t, os.WriteFile(path, []byte("{\"title\":\"A\"}\nnot json\n\n{\"title\":\"B\",\"kind\":\"weird\"}\n"), 0o600))

		got, err := LoadFile(path, logger)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, KindMovie, got[1].Kind)
	})

	t.Run("empty", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(path, []byte("  "), 0o600))

		_, err := LoadFile(path, logger)
		assert.ErrorIs(t, err, ErrNoCandidates)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "nope.json"), logger)
		assert.Error(t, err)
	})
}

func TestDedupe(t *testing.T) {
	in := []Candidate{
		{IMDbID: "tt0000001", Title: "X", Year: 2020, Kind: KindMovie, VoteCount: 10},
		{IMDbID: "tt0000002", Title: "X", Year: 2020, Kind: KindMovie, VoteCount: 500},
		{IMDbID: "tt0000001", Title: "X (Remastered)", Year: 2020, Kind: KindMovie, VoteCount: 1},
		{Title: "X", Year: 2020, Kind: KindSeries},
		{Title: "X", Year: 2021, Kind: KindMovie},
	}

	got := Dedupe(in)
	require.Len(t, got, 3)
	assert.Equal(t, "tt0000002", got[0].IMDbID)
	assert.Equal(t, KindSeries, got[1].Kind)
	assert.Equal(t, 2021, got[2].Year)
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		input  string
		want   int
		wantOK bool
	}{
		{"2019", 2019, true},
		{" 1999 ", 1999, true},
		{"2019-2021", 2019, true},
		{"2019-05-01", 2019, true},
		{"", 0, false},
		{"19", 0, false},
		{"abcd", 0, false},
		{"20190", 0, false},
		{"1200", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseYear(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
