package mapper

import "strings"

// titleScore scores how well a candidate remote summary matches a
// local title: exact match is 1.0, a substring relationship is 0.8,
// otherwise word-level Jaccard similarity (spec.md §4.8).
func titleScore(localTitle, remoteSummary string) float64 {
	a := strings.ToLower(strings.TrimSpace(localTitle))
	b := strings.ToLower(strings.TrimSpace(remoteSummary))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}
	return jaccard(strings.Fields(a), strings.Fields(b))
}

func jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	union := len(setA)
	for w := range setB {
		if setA[w] {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// assigneeScore normalizes Levenshtein edit distance between a remote
// display name and a local assignee identifier (with any leading `@`
// stripped) into a 0-1 similarity score (spec.md §4.8).
func assigneeScore(localIdentifier, remoteDisplayName string) float64 {
	a := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(localIdentifier), "@"))
	b := strings.ToLower(strings.TrimSpace(remoteDisplayName))
	if a == "" || b == "" {
		return 0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	dist := levenshtein(a, b)
	score := 1 - float64(dist)/float64(maxLen)
	if score < 0 {
		return 0
	}
	return score
}

// levenshtein computes the classic two-row-DP edit distance between
// two strings. No example in the corpus implements fuzzy string
// distance, so this is a small, well-known stdlib-only routine rather
// than a borrowed one (see DESIGN.md).
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
