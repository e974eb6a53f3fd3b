package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelrank/reelrank/internal/testutil"
)

func item(title string, score float64, votes int, pop float64) Item {
	it := NewItem(testutil.NewCandidate(title, 2020, testutil.WithVotes(votes), testutil.WithPopularity(pop)))
	it.Score = score
	it.Prelim = 100 - score
	return it
}

func keys(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Candidate.Title)
	}
	return out
}

func TestSort(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
		want  []string
	}{
		{
			name:  "score descending",
			items: []Item{item("a", 50, 0, 0), item("b", 90, 0, 0), item("c", 70, 0, 0)},
			want:  []string{"b", "c", "a"},
		},
		{
			name:  "votes break score ties",
			items: []Item{item("few", 80, 10, 0), item("many", 80, 5000, 0)},
			want:  []string{"many", "few"},
		},
		{
			name:  "popularity breaks vote ties",
			items: []Item{item("cold", 80, 10, 1.5), item("hot", 80, 10, 99)},
			want:  []string{"hot", "cold"},
		},
		{
			name:  "key breaks full ties",
			items: []Item{item("zeta", 80, 10, 1), item("alpha", 80, 10, 1)},
			want:  []string{"alpha", "zeta"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Sort(tt.items)
			assert.Equal(t, tt.want, keys(tt.items))
		})
	}
}

func TestSort_Deterministic(t *testing.T) {
	build := func(reverse bool) []Item {
		items := []Item{
			item("a", 80, 10, 1), item("b", 80, 10, 1), item("c", 80, 20, 1),
			item("d", 60, 10, 5), item("e", 60, 10, 5), item("f", 99, 0, 0),
		}
		if reverse {
			for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
				items[i], items[j] = items[j], items[i]
			}
		}
		return items
	}

	first := build(false)
	second := build(true)
	Sort(first)
	Sort(second)
	assert.Equal(t, keys(first), keys(second))
	assert.Equal(t, []string{"f", "c", "a", "b", "d", "e"}, keys(first))
}

func TestShortlist(t *testing.T) {
	items := []Item{item("a", 10, 0, 0), item("b", 20, 0, 0), item("c", 30, 0, 0)}
	got := Shortlist(items, 2)
	assert.Equal(t, []string{"a", "b"}, keys(got), "prelim is 100-score in these fixtures")

	all := Shortlist([]Item{item("x", 1, 0, 0)}, 0)
	assert.Len(t, all, 1)
}

func TestRank(t *testing.T) {
	items := []Item{item("a", 10, 0, 0), item("b", 20, 0, 0), item("c", 30, 0, 0), item("d", 40, 0, 0)}

	short, shown := Rank(items, 3, 2)
	assert.Equal(t, []string{"d", "c", "b"}, keys(short))
	assert.Equal(t, []string{"d", "c"}, keys(shown))

	short, shown = Rank(items[:1], 3, 2)
	assert.Len(t, short, 1)
	assert.Len(t, shown, 1)
}

func TestSelectShown(t *testing.T) {
	ranked := []Item{item("a", 90, 0, 0), item("b", 80, 0, 0), item("c", 70, 0, 0), item("d", 60, 0, 0)}
	recent := map[string]bool{ranked[0].Key: true, ranked[2].Key: true}

	got := SelectShown(ranked, 2, recent)
	assert.Equal(t, []string{"b", "d"}, keys(got))

	got = SelectShown(ranked, 3, recent)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "d"}, keys(got), "shortlist ran dry so the best recent item fills in")

	got = SelectShown(ranked, 10, nil)
	assert.Len(t, got, 4)
}
