package search

import (
	"cmp"
	"slices"
)

// Rerank stable-sorts by FinalScore descending, so equal scores keep retrieval
// order, and truncates to topK. topK < 1 keeps everything.
func Rerank(cands []Candidate, topK int) []Candidate {
	out := slices.Clone(cands)
	slices.SortStableFunc(out, func(a, b Candidate) int {
		return cmp.Compare(b.FinalScore, a.FinalScore)
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}
