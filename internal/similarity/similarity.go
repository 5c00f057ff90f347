// Package similarity implements the pure vector math used by semantic
// search: cosine similarity and threshold/top-K ranking over candidate
// lists. It performs no I/O and holds no state.
package similarity

import (
	"math"
	"sort"
)

// Candidate pairs an entity id with its stored embedding.
type Candidate struct {
	ID     int64
	Vector []float32
}

// Match is a ranked result: the candidate id and its cosine similarity
// against the query vector.
type Match struct {
	ID    int64
	Score float64
}

// Cosine returns the cosine similarity of a and b in [-1, 1].
//
// Degenerate inputs — mismatched lengths or a zero-magnitude vector —
// return exactly 0.0 rather than an error. Callers treat such vectors
// as "no similarity", which keeps ranking total over dirty data.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, magA, magB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		magA += av * av
		magB += bv * bv
	}

	if magA == 0.0 || magB == 0.0 {
		return 0.0
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// Rank scores every candidate against query, keeps those with score >=
// threshold, sorts descending by score and truncates to limit.
//
// The sort is stable: equal-score candidates keep their input order, so
// the result is deterministic for any fixed input. limit <= 0 returns
// an empty slice.
func Rank(query []float32, candidates []Candidate, threshold float64, limit int) []Match {
	if limit <= 0 {
		return []Match{}
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		score := Cosine(query, c.Vector)
		if score >= threshold {
			matches = append(matches, Match{ID: c.ID, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
