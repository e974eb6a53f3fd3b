package scoring

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/reelrank/reelrank/internal/seen"
)

// Profile holds learned affinities in [-1, 1], keyed by lowercased genre and
// director name.
type Profile struct {
	Genres     map[string]float64 `yaml:"genres"`
	Directors  map[string]float64 `yaml:"directors"`
	MeanRating float64            `yaml:"-"`
	Rated      int                `yaml:"-"`
}

// BuildProfile learns genre and director weights from rated history: each
// rating is z-scored against the user's mean, summed per attribute, then
// scaled by the largest magnitude.
func BuildProfile(rows []seen.HistoryRow) Profile {
	p := Profile{Genres: map[string]float64{}, Directors: map[string]float64{}}

	var ratings []float64
	for i := range rows {
		if rows[i].Rated() {
			ratings = append(ratings, rows[i].Rating)
		}
	}
	if len(ratings) == 0 {
		return p
	}

	mean, std := meanStd(ratings)
	p.MeanRating = mean
	p.Rated = len(ratings)

	for i := range rows {
		r := &rows[i]
		if !r.Rated() {
			continue
		}
		z := (r.Rating - mean) / std
		for _, g := range r.Genres {
			if g = normKey(g); g != "" {
				p.Genres[g] += z
			}
		}
		for _, d := range r.Directors {
			if d = normKey(d); d != "" {
				p.Directors[d] += z
			}
		}
	}

	normalizeByMax(p.Genres)
	normalizeByMax(p.Directors)
	return p
}

func meanStd(xs []float64) (float64, float64) {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if len(xs) < 2 {
		return mean, 1
	}
	ss := 0.0
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	std := math.Sqrt(ss / float64(len(xs)))
	if std == 0 {
		std = 1
	}
	return mean, std
}

func normalizeByMax(m map[string]float64) {
	maxAbs := 0.0
	for _, v := range m {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	for k, v := range m {
		if maxAbs == 0 {
			m[k] = 0
			continue
		}
		m[k] = clamp(v/maxAbs, -1, 1)
	}
}

func normKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// LoadProfile applies the YAML overrides at path on top of base. Keys are
// lowercased and values clamped to [-1, 1].
func LoadProfile(path string, base Profile) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read profile: %w", err)
	}

	var over Profile
	if err := yaml.Unmarshal(data, &over); err != nil {
		return base, fmt.Errorf("failed to parse profile: %w", err)
	}

	out := Profile{
		Genres:     make(map[string]float64, len(base.Genres)+len(over.Genres)),
		Directors:  make(map[string]float64, len(base.Directors)+len(over.Directors)),
		MeanRating: base.MeanRating,
		Rated:      base.Rated,
	}
	for k, v := range base.Genres {
		out.Genres[k] = v
	}
	for k, v := range base.Directors {
		out.Directors[k] = v
	}
	for k, v := range over.Genres {
		if k = normKey(k); k != "" {
			out.Genres[k] = clamp(v, -1, 1)
		}
	}
	for k, v := range over.Directors {
		if k = normKey(k); k != "" {
			out.Directors[k] = clamp(v, -1, 1)
		}
	}
	return out, nil
}
