package titlekey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"The Godfather Part II", "godfather part 2"},
		{"Movie (Director's Cut (2019))", "movie"},
		{"Movie (Director's Cut (2019)) Returns", "movie returns"},
		{"Fast & Furious", "fast and furious"},
		{"Spider-Man: No Way Home", "spider man no way home"},
		{"Rocky IV", "rocky 4"},
		{"Star Wars: Episode V - The Empire Strikes Back", "star wars episode 5 the empire strikes back"},
		{"A Quiet Place", "quiet place"},
		{"An Officer and a Gentleman", "officer and a gentleman"},
		{"What's Up, Doc?", "what s up doc"},
		{"  Lots   of    space  ", "lots of space"},
		{"Alien (1979)", "alien"},
		{"Ocean's Eleven", "ocean s eleven"},
		{"The A Team", "team"},
		{"The An", "an"},
		{"The", "the"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"The Godfather Part II",
		"The A-Team",
		"A The Team",
		"Movie (Director's Cut (2019))",
		"Unbalanced ) paren ( text",
		"I, Robot",
		"Mission: Impossible – Dead Reckoning Part One",
		"The An",
		"X",
	}

	for _, input := range inputs {
		once := Normalize(input)
		assert.Equal(t, once, Normalize(once), "input %q", input)
	}
}

func TestNormalizeKeepArticle(t *testing.T) {
	assert.Equal(t, "the godfather part 2", NormalizeKeepArticle("The Godfather Part II"))
	assert.Equal(t, "a quiet place", NormalizeKeepArticle("A Quiet Place"))
}

func TestSeriesRoot(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Fargo", "fargo"},
		{"Fargo: Season 3", "fargo"},
		{"The Crown - Series 2", "crown"},
		{"Chernobyl (Limited Series)", "chernobyl"},
		{"Band of Brothers: The Complete Series", "band of brothers"},
		{"Dark S02", "dark"},
		{"Stranger Things Vol. 2", "stranger things"},
		{"Season 1", "season 1"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, SeriesRoot(tt.input))
		})
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "Amelie", Fold("Amélie"))
	assert.Equal(t, "Les Miserables", Fold("Les Misérables"))
	assert.Equal(t, "plain", Fold("plain"))
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  int
		max  int
	}{
		{"identical", "Heat", "Heat", 100, 100},
		{"word order", "Wars Star", "Star Wars", 100, 100},
		{"subset", "Alien", "Alien: Romulus", 100, 100},
		{"accents", "Amélie", "Amelie", 100, 100},
		{"article", "The Matrix", "Matrix", 100, 100},
		{"typo", "The Shawshank Redemption", "Shawshank Redemtion", 85, 99},
		{"unrelated", "Heat", "Paddington", 0, 40},
		{"empty", "", "Heat", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
			assert.Equal(t, got, Similarity(tt.b, tt.a), "symmetric")
		})
	}
}
