package IO

// mostFrequentPair counts adjacent id pairs. Ties go to the lowest
// (left, right) so training is deterministic.
func mostFrequentPair(seq []int) ([2]int, bool) {
	if len(seq) < 2 {
		return [2]int{}, false
	}
	counts := make(map[[2]int]int)
	for i := 0; i+1 < len(seq); i++ {
		counts[[2]int{seq[i], seq[i+1]}]++
	}
	var best [2]int
	bestN := 0
	for p, n := range counts {
		if n > bestN || (n == bestN && pairLess(p, best)) {
			best, bestN = p, n
		}
	}
	return best, true
}

func pairLess(a, b [2]int) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	return a[1] < b[1]
}

// applyMerge replaces every non-overlapping occurrence of the merge pair,
// scanning left to right.
func applyMerge(seq []int, m Merge) []int {
	out := make([]int, 0, len(seq))
	for i := 0; i < len(seq); i++ {
		if i+1 < len(seq) && seq[i] == m.Left && seq[i+1] == m.Right {
			out = append(out, m.ID)
			i++
			continue
		}
		out = append(out, seq[i])
	}
	return out
}
