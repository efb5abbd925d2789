package search

import "github.com/0xmhha/creation-finder/internal/constants"

// Bounds restricts the searched block window. Nil fields fall back to defaults.
type Bounds struct {
	Min *uint64
	Max *uint64
}

// NewBounds builds bounds from optional values; zero means unset.
func NewBounds(min, max uint64) Bounds {
	var b Bounds
	if min > 0 {
		b.Min = &min
	}
	if max > 0 {
		b.Max = &max
	}
	return b
}

// Range resolves the half-open search window [low, high) against the chain head.
// high is always clamped to latest so that no block beyond the head is queried.
// When the requested minimum lies above the clamped maximum, low is lowered to high
// and the search degenerates to returning high without querying.
func (b Bounds) Range(latest uint64) (low, high uint64) {
	low = constants.DefaultLowBlock
	if b.Min != nil {
		low = *b.Min
	}

	high = latest
	if b.Max != nil && *b.Max < latest {
		high = *b.Max
	}

	if low > high {
		low = high
	}
	return low, high
}
