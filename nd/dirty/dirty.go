// Package dirty tracks which byte ranges of a database image were modified
// since the last flush.
//
// The tracker only records ranges; it coalesces them into chunk-aligned,
// sorted, non-overlapping spans when asked, so that a store can write each
// modified chunk exactly once.
package dirty

import "sort"

const (
	// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
	defaultRangeCapacity = 64

	// compactThreshold bounds the raw range slice; beyond it ranges are
	// coalesced eagerly so long write bursts do not grow memory without bound.
	compactThreshold = 4096
)

// Tracker is the minimal interface for components that only report writes.
type Tracker interface {
	// Add marks a byte range as dirty.
	Add(off, length int)
}

// Range represents a dirty byte range (absolute offsets in the image).
type Range struct {
	Off int64 // Absolute offset
	Len int64 // Length in bytes
}

// End returns the first offset past the range.
func (r Range) End() int64 { return r.Off + r.Len }

// RangeTracker accumulates dirty ranges and coalesces them on demand.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type RangeTracker struct {
	ranges    []Range
	alignment int64
}

// NewTracker creates a tracker that aligns ranges to the given unit
// (the database chunk size).
func NewTracker(alignment int) *RangeTracker {
	if alignment <= 0 {
		alignment = 1
	}
	return &RangeTracker{
		ranges:    make([]Range, 0, defaultRangeCapacity),
		alignment: int64(alignment),
	}
}

// Add records a dirty range. Zero and negative lengths are ignored.
func (t *RangeTracker) Add(off, length int) {
	if length <= 0 {
		return
	}
	t.ranges = append(t.ranges, Range{Off: int64(off), Len: int64(length)})
	if len(t.ranges) >= compactThreshold {
		t.ranges = append(t.ranges[:0], t.coalesce()...)
	}
}

// Empty reports whether nothing was written since the last Reset.
func (t *RangeTracker) Empty() bool { return len(t.ranges) == 0 }

// Reset clears all tracked ranges.
func (t *RangeTracker) Reset() {
	t.ranges = t.ranges[:0]
}

// Ranges returns the coalesced dirty ranges: aligned, sorted and merged.
func (t *RangeTracker) Ranges() []Range {
	return t.coalesce()
}

// DebugRanges returns a copy of the raw, uncoalesced ranges.
func (t *RangeTracker) DebugRanges() []Range {
	result := make([]Range, len(t.ranges))
	copy(result, t.ranges)
	return result
}

// coalesce aligns all ranges, sorts them, and merges overlapping/adjacent ones.
func (t *RangeTracker) coalesce() []Range {
	if len(t.ranges) == 0 {
		return nil
	}

	aligned := make([]Range, len(t.ranges))
	for i, r := range t.ranges {
		start := (r.Off / t.alignment) * t.alignment
		end := r.End()
		if end%t.alignment != 0 {
			end = ((end / t.alignment) + 1) * t.alignment
		}
		aligned[i] = Range{Off: start, Len: end - start}
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].Off < aligned[j].Off
	})

	merged := make([]Range, 0, len(aligned))
	current := aligned[0]
	for _, next := range aligned[1:] {
		if next.Off <= current.End() {
			if next.End() > current.End() {
				current.Len = next.End() - current.Off
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}
