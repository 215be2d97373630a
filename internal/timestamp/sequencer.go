// Package timestamp enforces uniqueness of trace timestamps.
package timestamp

// MinGap is the minimum distance, in nanoseconds, between two emitted
// timestamps. Consumers convert timestamps to float64; with less than 2ns
// between neighbors, rounding can collapse two distinct integer timestamps
// into the same float64 value and break their use as a sort/join key.
const MinGap = 2

// Sequencer rewrites a non-decreasing timestamp sequence into a strictly
// increasing one with at least MinGap between consecutive outputs. The zero
// value is ready to use.
type Sequencer struct {
	prev uint64
}

// Next returns the adjusted timestamp for ts and advances the sequencer.
func (s *Sequencer) Next(ts uint64) uint64 {
	if next := s.prev + MinGap; ts < next {
		ts = next
	}
	s.prev = ts
	return ts
}

// Identity is the transform used when uniqueness is not requested.
func Identity(ts uint64) uint64 { return ts }
