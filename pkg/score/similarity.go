package score

// JaccardSimilarity returns |A∩B| / |A∪B| over the token sets of a and b.
// Two empty sets are identical (1); one empty set against a non-empty one is 0.
func JaccardSimilarity(a, b []string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}

	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}

	unionSize := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(unionSize)
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// dedupe walks posts in order and accepts each one that is not a near
// duplicate of an already accepted post. It returns the acceptance mask.
func dedupe(tokens [][]string, threshold float64) []bool {
	accepted := make([]bool, len(tokens))
	var seen [][]string
	for i, tok := range tokens {
		if isNearDuplicate(tok, seen, threshold) {
			continue
		}
		accepted[i] = true
		seen = append(seen, tok)
	}
	return accepted
}

func isNearDuplicate(tokens []string, seen [][]string, threshold float64) bool {
	for _, prev := range seen {
		if JaccardSimilarity(tokens, prev) >= threshold {
			return true
		}
	}
	return false
}
