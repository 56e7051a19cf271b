package search

import "sort"

// rrfK is the reciprocal-rank-fusion constant: score(id) = Σ 1/(k + rank).
const rrfK = 60

// Fused is one candidate after rank fusion.
type Fused struct {
	ID    string
	Score float64
}

// FuseRRF merges ranked candidate lists with reciprocal rank fusion. Ranks
// are 1-based per list. The output is sorted by score descending with
// ascending ID as the deterministic tiebreaker, truncated to max entries
// (max <= 0 keeps everything).
func FuseRRF(lists [][]string, max int) []Fused {
	scores := map[string]float64{}
	for _, list := range lists {
		for i, id := range list {
			scores[id] += 1.0 / float64(rrfK+i+1)
		}
	}

	fused := make([]Fused, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, Fused{ID: id, Score: score})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ID < fused[j].ID
	})

	if max > 0 && len(fused) > max {
		fused = fused[:max]
	}
	return fused
}
