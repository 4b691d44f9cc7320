// SPDX-License-Identifier: MIT
/*
Package capture implements the lock-free handoff between a free-running
capture engine and the processing job.

The engine fills one Region split into two halves, alternating, and signals
half-complete (lower half written) and full-complete (upper half written)
from its own context. Those handlers only flip bits in a Slot. The consumer
drains at most one half per Tick, copying it into a private working buffer.

No lock exists between the two sides. A consumer that falls behind loses
blocks (missed_audio) and a copy the producer overwrote mid-read is discarded
(late_audio_read); neither case blocks the producer.
*/
package capture

import (
	"fmt"
	"sync/atomic"

	"panadapter/internal/fault"
)

// Half identifies one half of the capture region. The values are the
// readiness bits of a Slot.
type Half uint32

const (
	Lower Half = 1 << 0
	Upper Half = 1 << 1

	both = Lower | Upper
)

// Other returns the opposite half.
func (h Half) Other() Half { return h ^ both }

func (h Half) String() string {
	switch h {
	case Lower:
		return "lower"
	case Upper:
		return "upper"
	case 0:
		return "none"
	default:
		return fmt.Sprintf("half(%#x)", uint32(h))
	}
}

// Slot is a single-producer single-consumer readiness word. Publish is
// called from the producer's context only, TryConsume from the consumer's.
type Slot struct {
	state    atomic.Uint32
	overruns *fault.Counter
	late     *fault.Counter
	reporter fault.Reporter
}

// NewSlot returns an empty slot counting into set and reporting invariant
// violations to r.
func NewSlot(set *fault.Set, r fault.Reporter) *Slot {
	return &Slot{
		overruns: set.Get(fault.MissedAudio),
		late:     set.Get(fault.LateAudioRead),
		reporter: r,
	}
}

// Publish marks h readable. If the other half was still unread the
// consumer has been starved and that block is lost.
//
// The clear and set happen in one atomic step: the state never reads zero
// between them, or a concurrent TryConsume could accept a torn copy.
func (s *Slot) Publish(h Half) {
	other := h.Other()
	for {
		old := s.state.Load()
		if s.state.CompareAndSwap(old, old&^uint32(other)|uint32(h)) {
			if Half(old)&other != 0 {
				s.overruns.Increment()
			}
			return
		}
	}
}

// TryConsume claims the readable half, if any, and passes it to read. It
// reports false when nothing was readable or when the producer published
// again while read was running, in which case whatever read copied may be
// torn and must be dropped.
func (s *Slot) TryConsume(read func(Half)) (Half, bool) {
	h := Half(s.state.Swap(0))
	switch h {
	case 0:
		return 0, false
	case Lower, Upper:
	default:
		// Publish clears the other bit before setting its own.
		s.reporter.Fatal("capture", fmt.Errorf("%w: both capture halves readable", fault.ErrInvariant))
		return 0, false
	}

	read(h)

	if s.state.Load() != 0 {
		s.late.Increment()
		return 0, false
	}
	return h, true
}

// Pending returns the readiness bits without claiming them.
func (s *Slot) Pending() Half { return Half(s.state.Load()) }
