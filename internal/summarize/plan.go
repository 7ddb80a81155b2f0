package summarize

import (
	"fmt"
	"slices"
	"unicode/utf8"
)

// truncationMarker is appended to every shortened payload.
const truncationMarker = "\n\n[Diff truncated to %d characters for retry due to model limits.]"

// DefaultBounds are the character sizes tried after the full payload.
var DefaultBounds = []int{60000, 30000, 15000}

// Attempt is one payload to try. Bound is zero for the unmodified payload.
type Attempt struct {
	Payload string
	Bound   int
}

// Truncated reports whether the attempt carries a shortened payload.
func (a Attempt) Truncated() bool { return a.Bound > 0 }

// PlanAttempts returns the full payload followed by one truncated copy per
// bound smaller than the payload's length in characters. Bounds are applied
// largest first; non-positive and duplicate bounds are ignored.
func PlanAttempts(payload string, bounds []int) []Attempt {
	attempts := []Attempt{{Payload: payload}}

	length := utf8.RuneCountInString(payload)
	for _, bound := range normalizeBounds(bounds) {
		if bound >= length {
			continue
		}
		attempts = append(attempts, Attempt{
			Payload: truncateRunes(payload, bound) + fmt.Sprintf(truncationMarker, bound),
			Bound:   bound,
		})
	}
	return attempts
}

func normalizeBounds(bounds []int) []int {
	out := make([]int, 0, len(bounds))
	for _, b := range bounds {
		if b > 0 {
			out = append(out, b)
		}
	}
	slices.Sort(out)
	out = slices.Compact(out)
	slices.Reverse(out)
	return out
}

// truncateRunes returns the first n characters of s.
func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
