// Package catalog defines the normalized candidate records consumed by the
// ranking core.
package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/reelrank/reelrank/internal/titlekey"
)

// Kind is the media kind of a candidate.
type Kind string

const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
)

// ParseKind maps the many spellings used by exports and providers onto a
// Kind. ok is false for blank or unrecognized values.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "film", "feature", "video", "tvmovie", "tv movie":
		return KindMovie, true
	case "series", "tv", "show", "tvseries", "tv series", "tvminiseries", "tv mini series", "tv miniseries", "miniseries":
		return KindSeries, true
	default:
		return "", false
	}
}

// crossRefPattern matches industry identifiers such as tt0111161.
var crossRefPattern = regexp.MustCompile(`(?i)^tt\d{5,10}$`)

// CrossRefPattern finds cross-reference ids embedded in free text or URLs.
var CrossRefPattern = regexp.MustCompile(`(?i)\btt\d{5,10}\b`)

// IsCrossRefID reports whether s is exactly a cross-reference id.
func IsCrossRefID(s string) bool {
	return crossRefPattern.MatchString(strings.TrimSpace(s))
}

// NormalizeCrossRefID lowercases and trims an id, returning "" when s is
// not a cross-reference id.
func NormalizeCrossRefID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if !crossRefPattern.MatchString(s) {
		return ""
	}
	return s
}

// Candidate is a media item considered for recommendation this run.
// Critic and audience scores are on a 0-1 scale; nil means the signal is
// unavailable. Year 0 means unknown.
type Candidate struct {
	ProviderID int64    `json:"provider_id,omitempty"`
	IMDbID     string   `json:"imdb_id,omitempty"`
	Title      string   `json:"title"`
	AltTitles  []string `json:"alt_titles,omitempty"`
	Year       int      `json:"year,omitempty"`
	Kind       Kind     `json:"kind"`

	CriticScore   *float64 `json:"critic,omitempty"`
	AudienceScore *float64 `json:"audience,omitempty"`
	CriticLabel   string   `json:"critic_label,omitempty"`
	AudienceLabel string   `json:"audience_label,omitempty"`
	Popularity    float64  `json:"popularity,omitempty"`
	VoteCount     int      `json:"votes,omitempty"`

	Genres    []string `json:"genres,omitempty"`
	Directors []string `json:"directors,omitempty"`
	Cast      []string `json:"cast,omitempty"`
	Seasons   int      `json:"seasons,omitempty"`
	Providers []string `json:"providers,omitempty"`
}

// IsSeries reports whether the candidate is a TV series.
func (c *Candidate) IsSeries() bool {
	return c.Kind == KindSeries
}

// Titles returns the primary title followed by alternates, skipping blanks
// and variants that normalize to an already-listed title.
func (c *Candidate) Titles() []string {
	out := make([]string, 0, 1+len(c.AltTitles))
	seen := make(map[string]struct{}, 1+len(c.AltTitles))
	for _, t := range append([]string{c.Title}, c.AltTitles...) {
		n := titlekey.Normalize(t)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Key returns the stable identity used for feedback, rotation and output:
// the cross-reference id when present, else the provider id, else
// kind:normalized-title:year.
func (c *Candidate) Key() string {
	if id := NormalizeCrossRefID(c.IMDbID); id != "" {
		return id
	}
	if c.ProviderID > 0 {
		return "tmdb:" + strconv.FormatInt(c.ProviderID, 10)
	}
	return c.TitleKey()
}

// TitleKey is the (kind, normalized title, year) identity triple encoded as
// a string. A missing year encodes as an empty trailing field.
func (c *Candidate) TitleKey() string {
	year := ""
	if c.Year > 0 {
		year = strconv.Itoa(c.Year)
	}
	return string(c.kindOrMovie()) + ":" + titlekey.Normalize(c.Title) + ":" + year
}

func (c *Candidate) kindOrMovie() Kind {
	if c.Kind == KindSeries {
		return KindSeries
	}
	return KindMovie
}

// LowerGenres returns the candidate's genres lowercased and trimmed.
func (c *Candidate) LowerGenres() []string {
	out := make([]string, 0, len(c.Genres))
	for _, g := range c.Genres {
		g = strings.ToLower(strings.TrimSpace(g))
		if g != "" {
			out = append(out, g)
		}
	}
	return out
}

// Float returns a pointer to v, for building candidates in code.
func Float(v float64) *float64 {
	return &v
}

// ParseYear reads a four-digit year from the start of s, accepting values
// such as "2019", "2019-2021" or "2019-05-01". ok is false for blank or
// implausible values.
func ParseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return 0, false
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil || y < 1870 || y > 2200 {
		return 0, false
	}
	if len(s) > 4 && s[4] >= '0' && s[4] <= '9' {
		return 0, false
	}
	return y, true
}
