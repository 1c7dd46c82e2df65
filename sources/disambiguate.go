package sources

import (
	"strings"
	"unicode"

	"github.com/aluiziolira/go-rate-signals/geo"
)

// Candidate is one search result for a located target.
type Candidate struct {
	Name         string
	URL          string
	LocationHint string
}

const metroPenalty = 0.5

var stopwords = map[string]bool{
	"hotel": true, "the": true, "el": true, "la": true, "los": true, "las": true,
	"de": true, "del": true, "and": true, "y": true, "by": true, "&": true,
}

func tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

// overlapScore is the share of expected tokens present in the candidate name.
func overlapScore(expected, candidate string) float64 {
	want := tokens(expected)
	if len(want) == 0 {
		return 0
	}
	have := make(map[string]bool)
	for _, t := range tokens(candidate) {
		have[t] = true
	}
	hits := 0
	for _, t := range want {
		if have[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(want))
}

// otherMetro reports whether hint names a known metro area other than city.
func otherMetro(hint, city string, areas []geo.MetroArea) bool {
	hint = strings.ToLower(hint + " ")
	city = strings.ToLower(strings.TrimSpace(city))
	if hint == " " || city == "" {
		return false
	}
	if strings.Contains(hint, city) {
		return false
	}
	for _, area := range areas {
		name := strings.ToLower(area.Name)
		if name == city {
			continue
		}
		if strings.Contains(hint, name) || strings.Contains(hint, area.Slug) {
			return true
		}
	}
	return false
}

// ScoreCandidate scores a candidate by token overlap with the expected
// name, minus a penalty when its location hint names a different metro.
func ScoreCandidate(expected, city string, c Candidate, areas []geo.MetroArea) float64 {
	score := overlapScore(expected, c.Name)
	if otherMetro(c.LocationHint+" "+c.URL, city, areas) {
		score -= metroPenalty
	}
	return score
}

// PickCandidate returns the highest-scoring candidate. Ties keep the
// first seen; a best score of zero or below means no match.
func PickCandidate(expected, city string, candidates []Candidate, areas []geo.MetroArea) (Candidate, bool) {
	var (
		best      Candidate
		bestScore float64
		found     bool
	)
	for _, c := range candidates {
		s := ScoreCandidate(expected, city, c, areas)
		if s > bestScore {
			best, bestScore, found = c, s, true
		}
	}
	return best, found
}
