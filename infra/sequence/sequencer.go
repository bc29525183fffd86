package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing journal sequence numbers.
type Sequencer struct {
	last atomic.Uint64
}

// New starts after start; the first Next returns start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued sequence.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Observe raises the sequencer to at least v. Replay calls it with every
// recovered sequence so new numbers never collide with journaled ones.
func (s *Sequencer) Observe(v uint64) {
	for {
		cur := s.last.Load()
		if v <= cur || s.last.CompareAndSwap(cur, v) {
			return
		}
	}
}
