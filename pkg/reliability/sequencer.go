package reliability

import "sync/atomic"

// Sequencer hands out node-wide sequence numbers for reliable DATA.
// Seq 0 is never issued; it marks legacy unsequenced messages.
type Sequencer struct {
	last atomic.Uint64
}

// NewSequencer creates a sequencer whose first number is 1
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Next returns the next sequence number
func (s *Sequencer) Next() uint64 {
	for {
		seq := s.last.Add(1)
		if seq != 0 {
			return seq
		}
	}
}

// Last returns the most recently issued number, 0 if none
func (s *Sequencer) Last() uint64 {
	return s.last.Load()
}
