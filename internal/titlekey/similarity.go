package titlekey

import (
	"math"
	"sort"
	"strings"
)

// Similarity scores two titles on a 0-100 scale using token-set overlap:
// word order is ignored and a title whose words are a subset of the other's
// scores 100. Inputs are folded and normalized first, so raw titles can be
// passed directly. Either side empty scores 0.
func Similarity(a, b string) int {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var common, onlyA, onlyB []string
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			common = append(common, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range tb {
		if _, ok := ta[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	withA := joinNonEmpty(base, strings.Join(onlyA, " "))
	withB := joinNonEmpty(base, strings.Join(onlyB, " "))

	best := ratio(base, withA)
	if r := ratio(base, withB); r > best {
		best = r
	}
	if r := ratio(withA, withB); r > best {
		best = r
	}
	return best
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(Normalize(Fold(s)))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

// ratio is 2*LCS/(len(a)+len(b)) scaled to 0-100, the indel similarity of
// two strings.
func ratio(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	if a == b {
		return 100
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			switch {
			case ra[i-1] == rb[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(rb)]

	return int(math.Round(200 * float64(lcs) / float64(len(ra)+len(rb))))
}
