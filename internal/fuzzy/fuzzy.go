// Package fuzzy resolves free-text queries to canonical keys using
// normalized edit-distance similarity.
package fuzzy

import (
	"sort"
	"strings"

	fuzzywuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// DefaultThreshold is the minimum similarity score a candidate must
// reach to count as a match.
const DefaultThreshold = 60

// Match is a candidate key with its similarity score (0-100).
type Match struct {
	Key   string `json:"key"`
	Score int    `json:"score"`
}

// Resolve scores query against every candidate (case-insensitive) and
// returns the candidates at or above threshold, best first. Ties keep
// the candidates' original order. An empty result means no match — a
// reportable condition, not an error. Threshold <= 0 falls back to
// DefaultThreshold.
func Resolve(query string, candidates []string, threshold int) []Match {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	q := strings.ToLower(query)
	var matches []Match
	for _, c := range candidates {
		score := fuzzywuzzy.Ratio(q, strings.ToLower(c))
		if score >= threshold {
			matches = append(matches, Match{Key: c, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}
