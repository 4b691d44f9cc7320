// SPDX-License-Identifier: MIT
package capture

import (
	"fmt"

	"panadapter/internal/fault"
)

// Events are the capture engine's interrupt entry points. Implementations
// must not block or allocate.
type Events interface {
	HalfComplete()
	FullComplete()
	Error(err error)
}

// Handoff pairs a Region with its Slot and owns the consumer's working
// buffer.
type Handoff struct {
	region   *Region
	slot     *Slot
	reporter fault.Reporter
	notify   func()

	work   []complex128
	readFn func(Half)
}

// Option configures a Handoff.
type Option func(*Handoff)

// WithNotify sets a function called after every publish, typically the
// scheduler's process signal. It runs in the producer's context.
func WithNotify(fn func()) Option {
	return func(h *Handoff) { h.notify = fn }
}

// NewHandoff creates the handoff for region.
func NewHandoff(region *Region, set *fault.Set, r fault.Reporter, opts ...Option) *Handoff {
	h := &Handoff{
		region:   region,
		slot:     NewSlot(set, r),
		reporter: r,
		work:     make([]complex128, region.Len()),
	}
	h.readFn = h.read
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Region returns the producer's target memory.
func (h *Handoff) Region() *Region { return h.region }

// HalfComplete is raised when the lower half has been written.
func (h *Handoff) HalfComplete() { h.publish(Lower) }

// FullComplete is raised when the upper half has been written.
func (h *Handoff) FullComplete() { h.publish(Upper) }

// Error is raised when the capture engine fails. There is no recovery.
func (h *Handoff) Error(err error) {
	h.reporter.Fatal("capture", fmt.Errorf("capture engine error: %w", err))
}

func (h *Handoff) publish(half Half) {
	h.slot.Publish(half)
	if h.notify != nil {
		h.notify()
	}
}

// Tick returns the most recently completed block converted to complex
// samples, or nil when no block is ready or the copy was overtaken by the
// producer. The returned slice is reused by the next Tick and may be
// transformed in place by the caller.
func (h *Handoff) Tick() []complex128 {
	if _, ok := h.slot.TryConsume(h.readFn); !ok {
		return nil
	}
	return h.work
}

func (h *Handoff) read(half Half) {
	b := h.region.Block(half)
	for i := range h.work {
		re, im := b.Load(i)
		h.work[i] = complex(float64(re), float64(im))
	}
}

var _ Events = (*Handoff)(nil)
