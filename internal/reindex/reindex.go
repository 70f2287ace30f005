// Package reindex computes position updates for ordered sibling collections
// (columns within a board, cards within a column). Positions are 0-based,
// dense, and strictly increasing; every plan restores that invariant while
// preserving the relative order of untouched siblings.
package reindex

// Clamp bounds a client-supplied target position to [0, count]. Client
// positions are never trusted as already valid.
func Clamp(target, count int) int {
	if target < 0 {
		return 0
	}
	if target > count {
		return count
	}
	return target
}

// ClampMove bounds a move target to [0, count-1], the valid range for an
// item that already occupies a slot in the collection.
func ClampMove(target, count int) int {
	if count == 0 {
		return 0
	}
	return Clamp(target, count-1)
}

// EndPosition resolves an omitted insert position to the end of the list.
func EndPosition(count int) int {
	return count
}

// Shift describes a half-open range update on sibling positions: every
// sibling with Lo <= position <= Hi moves by Delta.
type Shift struct {
	Lo    int
	Hi    int
	Delta int
}

// InsertShift returns the shift that opens a gap at position p: siblings at
// p and above move +1.
func InsertShift(p, count int) Shift {
	return Shift{Lo: p, Hi: count - 1, Delta: +1}
}

// DeleteShift returns the shift that closes the gap left at position p:
// siblings above p move -1.
func DeleteShift(p, count int) Shift {
	return Shift{Lo: p + 1, Hi: count - 1, Delta: -1}
}

// MoveShift returns the shift for a same-parent move from position o to n.
// Moving down pulls the span (o, n] back by one; moving up pushes [n, o)
// forward by one. The caller places the moved item at n afterwards.
// o == n is the caller's no-op case and must be filtered out before this.
func MoveShift(o, n int) Shift {
	if n > o {
		return Shift{Lo: o + 1, Hi: n, Delta: -1}
	}
	return Shift{Lo: n, Hi: o - 1, Delta: +1}
}

// Apply replays a shift over an in-memory position slice. The repositories
// apply shifts as single SQL range updates; this form exists for the
// reorder-normalization path and for verifying plans in tests.
func Apply(positions []int, s Shift) {
	for i, p := range positions {
		if p >= s.Lo && p <= s.Hi {
			positions[i] = p + s.Delta
		}
	}
}

// IsDense reports whether positions form the dense sequence 0..n-1.
func IsDense(positions []int) bool {
	seen := make([]bool, len(positions))
	for _, p := range positions {
		if p < 0 || p >= len(positions) || seen[p] {
			return false
		}
		seen[p] = true
	}
	return true
}
