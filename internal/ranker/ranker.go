// Package ranker orders scored candidates deterministically and cuts the
// shortlist and shown lists.
package ranker

import (
	"sort"

	"github.com/reelrank/reelrank/internal/catalog"
	"github.com/reelrank/reelrank/internal/scoring"
)

// Item is a surviving candidate with its scores.
type Item struct {
	Candidate catalog.Candidate
	Key       string
	Prelim    float64
	Score     float64
	Why       string
	Parts     scoring.Parts
}

// NewItem wraps a candidate, caching its key.
func NewItem(c catalog.Candidate) Item {
	return Item{Candidate: c, Key: c.Key()}
}

func less(a, b *Item, score func(*Item) float64) bool {
	if sa, sb := score(a), score(b); sa != sb {
		return sa > sb
	}
	if a.Candidate.VoteCount != b.Candidate.VoteCount {
		return a.Candidate.VoteCount > b.Candidate.VoteCount
	}
	if a.Candidate.Popularity != b.Candidate.Popularity {
		return a.Candidate.Popularity > b.Candidate.Popularity
	}
	return a.Key < b.Key
}

func finalScore(it *Item) float64  { return it.Score }
func prelimScore(it *Item) float64 { return it.Prelim }

// Sort orders items by final score, then votes, then popularity, all
// descending, then key ascending so the order is total.
func Sort(items []Item) {
	sort.SliceStable(items, func(i, j int) bool { return less(&items[i], &items[j], finalScore) })
}

// SortPrelim is Sort keyed on the stage-1 score.
func SortPrelim(items []Item) {
	sort.SliceStable(items, func(i, j int) bool { return less(&items[i], &items[j], prelimScore) })
}

// Shortlist sorts by stage-1 score and keeps the top n. n <= 0 keeps all.
func Shortlist(items []Item, n int) []Item {
	SortPrelim(items)
	return truncate(items, n)
}

// Rank sorts by final score and returns the top shortlistSize items and the
// top shownSize of those.
func Rank(items []Item, shortlistSize, shownSize int) (shortlist, shown []Item) {
	Sort(items)
	shortlist = truncate(items, shortlistSize)
	shown = truncate(shortlist, shownSize)
	return shortlist, shown
}

// SelectShown picks n items from a ranked shortlist, skipping keys in recent.
// When too few fresh items remain, recently shown ones fill the gap. Rank
// order is preserved.
func SelectShown(ranked []Item, n int, recent map[string]bool) []Item {
	if n <= 0 || n > len(ranked) {
		n = len(ranked)
	}

	picked := make([]bool, len(ranked))
	count := 0
	for i := range ranked {
		if count == n {
			break
		}
		if !recent[ranked[i].Key] {
			picked[i] = true
			count++
		}
	}
	for i := range ranked {
		if count == n {
			break
		}
		if !picked[i] {
			picked[i] = true
			count++
		}
	}

	out := make([]Item, 0, n)
	for i := range ranked {
		if picked[i] {
			out = append(out, ranked[i])
		}
	}
	return out
}

func truncate(items []Item, n int) []Item {
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[:n]
}
