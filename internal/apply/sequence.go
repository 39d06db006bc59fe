package apply

import "sync/atomic"

// Sequence is a monotonic logical counter for simulation ids.
//
// Every call to Next returns a strictly larger value than the previous one,
// so ids order simulations without consulting the wall clock. Evicting a
// record never frees its id.
//
// Thread-safety: Sequence is safe for concurrent use (atomic operations).
type Sequence struct {
	n atomic.Int64
}

// NewSequence creates a sequence whose first id is 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// NewSequenceAt creates a sequence that continues after start.
// Used to resume numbering past ids already present in an audit log.
func NewSequenceAt(start int64) *Sequence {
	s := &Sequence{}
	s.n.Store(start)
	return s
}

// Next returns the next id.
func (s *Sequence) Next() int64 {
	return s.n.Add(1)
}

// Current returns the last issued id without advancing.
func (s *Sequence) Current() int64 {
	return s.n.Load()
}
