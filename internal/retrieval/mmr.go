package retrieval

import "strings"

// applyMMR re-ranks candidates with Maximal Marginal Relevance: each
// round picks the candidate maximizing
//
//	lambda*relevance - (1-lambda)*max_similarity_to_selected
//
// where relevance is the combined score and pairwise similarity is
// word-set Jaccard over each episode's text surrogate. Candidates must
// arrive sorted by combined score; the first pick is the top candidate.
func applyMMR(candidates []ScoredEpisode, limit int, lambda float64) []ScoredEpisode {
	if len(candidates) == 0 || limit <= 0 {
		return nil
	}
	if len(candidates) <= 1 {
		return candidates[:1]
	}

	wordSets := make([]map[string]struct{}, len(candidates))
	for i, c := range candidates {
		wordSets[i] = wordSet(c.Episode.OverlapText())
	}

	selected := make([]ScoredEpisode, 0, limit)
	selectedSets := make([]map[string]struct{}, 0, limit)
	remaining := make([]int, 0, len(candidates)-1)

	selected = append(selected, candidates[0])
	selectedSets = append(selectedSets, wordSets[0])
	for i := 1; i < len(candidates); i++ {
		remaining = append(remaining, i)
	}

	for len(selected) < limit && len(remaining) > 0 {
		bestPos := -1
		bestScore := 0.0
		for pos, idx := range remaining {
			maxSim := 0.0
			for _, sel := range selectedSets {
				if sim := jaccard(wordSets[idx], sel); sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*candidates[idx].CombinedScore - (1-lambda)*maxSim
			if bestPos == -1 || score > bestScore {
				bestPos = pos
				bestScore = score
			}
		}

		idx := remaining[bestPos]
		selected = append(selected, candidates[idx])
		selectedSets = append(selectedSets, wordSets[idx])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}
	return selected
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// jaccard returns |a intersect b| / |a union b| for two word sets.
// Two empty sets are identical, not disjoint.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
