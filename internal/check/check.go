// Package check verifies the structural invariants of a nested-sets
// forest. It is shared by tests, the e2e suite and the stream auditor.
package check

import (
	"fmt"
	"sort"
)

// Span is one attached row's boundary pair.
type Span struct {
	ID    string
	Left  int64
	Right int64
}

// Verify returns one message per invariant violation found in the forest:
// malformed pairs, duplicate boundary values, partially overlapping
// intervals, and interval widths that disagree with the contained node
// count. An empty result means the encoding is consistent.
func Verify(spans []Span) []string {
	var violations []string

	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Left < sorted[j].Left })

	seen := make(map[int64]string, len(sorted)*2)
	for _, s := range sorted {
		if s.Left < 1 || s.Right <= s.Left || (s.Right-s.Left)%2 == 0 {
			violations = append(violations,
				fmt.Sprintf("node %s: malformed span (%d, %d)", s.ID, s.Left, s.Right))
			continue
		}
		for _, b := range []int64{s.Left, s.Right} {
			if other, dup := seen[b]; dup {
				violations = append(violations,
					fmt.Sprintf("node %s: boundary %d already used by node %s", s.ID, b, other))
			}
			seen[b] = s.ID
		}
	}

	// Nesting: walking left to right, every interval must close before any
	// enclosing interval does.
	var stack []Span
	for _, s := range sorted {
		for len(stack) > 0 && stack[len(stack)-1].Right < s.Left {
			stack = stack[:len(stack)-1]
		}
		if len(stack) > 0 && s.Right > stack[len(stack)-1].Right {
			violations = append(violations,
				fmt.Sprintf("node %s (%d, %d) partially overlaps node %s (%d, %d)",
					s.ID, s.Left, s.Right,
					stack[len(stack)-1].ID, stack[len(stack)-1].Left, stack[len(stack)-1].Right))
		}
		stack = append(stack, s)
	}

	// Width: interval size must be twice the subtree node count.
	for _, s := range sorted {
		inside := int64(0)
		for _, other := range sorted {
			if other.Left > s.Left && other.Right < s.Right {
				inside++
			}
		}
		if s.Right-s.Left-1 != 2*inside {
			violations = append(violations,
				fmt.Sprintf("node %s (%d, %d): width implies %d descendants, found %d",
					s.ID, s.Left, s.Right, (s.Right-s.Left-1)/2, inside))
		}
	}

	return violations
}
