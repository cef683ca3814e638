package grouping

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Strategy selects how values are partitioned into groups.
type Strategy string

const (
	// StrategyGreedySeed walks values in input order; each unassigned value seeds a
	// group made of itself and every unassigned value more similar to it than the threshold.
	// The result depends on input order.
	StrategyGreedySeed Strategy = "greedy"
	// StrategyConnectedComponents groups values by the transitive closure of
	// "more similar than the threshold".
	StrategyConnectedComponents Strategy = "components"
)

// ParseStrategy maps a name to a Strategy. The empty string is StrategyGreedySeed.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(name))) {
	case "", StrategyGreedySeed:
		return StrategyGreedySeed, nil
	case StrategyConnectedComponents:
		return StrategyConnectedComponents, nil
	default:
		return "", fmt.Errorf("unknown grouping strategy %q", name)
	}
}

// partitionFunc returns groups as index lists; each list is in ascending index order
// and the lists are ordered by their first index.
type partitionFunc func(sim [][]float64, threshold float64) [][]int

func (s Strategy) partition() partitionFunc {
	if s == StrategyConnectedComponents {
		return connectedComponents
	}
	return greedySeed
}

func greedySeed(sim [][]float64, threshold float64) [][]int {
	n := len(sim)
	assigned := make([]bool, n)
	var groups [][]int
	for i := 0; i < n; i++ {
		if assigned[i] {
			continue
		}
		// Every earlier index is already assigned, so only later ones can join.
		members := []int{i}
		assigned[i] = true
		for j := i + 1; j < n; j++ {
			if !assigned[j] && sim[i][j] > threshold {
				members = append(members, j)
				assigned[j] = true
			}
		}
		groups = append(groups, members)
	}
	return groups
}

func connectedComponents(sim [][]float64, threshold float64) [][]int {
	n := len(sim)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if sim[i][j] <= threshold {
				continue
			}
			ri, rj := find(i), find(j)
			if ri == rj {
				continue
			}
			// Keep the smallest index as root so component order follows input order.
			if ri < rj {
				parent[rj] = ri
			} else {
				parent[ri] = rj
			}
		}
	}

	byRoot := make(map[int][]int)
	roots := make([]int, 0)
	for i := 0; i < n; i++ {
		r := find(i)
		if _, ok := byRoot[r]; !ok {
			roots = append(roots, r)
		}
		byRoot[r] = append(byRoot[r], i)
	}
	sort.Ints(roots)
	groups := make([][]int, 0, len(roots))
	for _, r := range roots {
		groups = append(groups, byRoot[r])
	}
	return groups
}

// canonical returns the shortest value among members (by rune count); ties go to the
// first member.
func canonical(values []string, members []int) string {
	best := members[0]
	bestLen := utf8.RuneCountInString(values[best])
	for _, m := range members[1:] {
		if l := utf8.RuneCountInString(values[m]); l < bestLen {
			best, bestLen = m, l
		}
	}
	return values[best]
}
