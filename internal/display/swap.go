// SPDX-License-Identifier: MIT
/*
Package display presents composed frames without tearing.

Each of the two layers (the L8 waterfall background and the ARGB8888
overlay foreground) rotates three framebuffers. The worker composes into
Back and calls Flip, which hands Back to the controller as the address to
latch at the next vertical blanking. When the controller reports the reload,
HandleReload promotes the pending buffers to Front. The buffer being scanned
out is therefore never written.
*/
package display

import (
	"fmt"
	"sync/atomic"

	"panadapter/internal/fault"
)

// Layer indices.
const (
	Background = 0
	Foreground = 1
)

// Controller is the display hardware seen by the swap. Addresses set with
// SetAddress take effect at the first vertical blanking after
// RequestReload. While the reload interrupt is enabled the controller calls
// Events.HandleReload once it has latched them. AbortReload cancels an
// unlatched request and reports a latched one the interrupt has not
// delivered.
type Controller interface {
	SetAddress(layer int, b *Buffer)
	RequestReload()
	AbortReload() bool
	EnableReloadIRQ()
	DisableReloadIRQ()
}

// Events are raised by the controller from its own context.
type Events interface {
	HandleReload()
	HandleUnderrun()
}

// RebindFunc is called after every Flip with the new Back buffers, so
// drawing surfaces can follow them.
type RebindFunc func(background, foreground *Buffer)

// Swap owns both layers' triple buffers and the flip protocol.
type Swap struct {
	ctl       Controller
	layers    [2]*TripleBuffer
	pending   atomic.Bool
	underruns *fault.Counter
	rebind    RebindFunc
}

type SwapOption func(*Swap)

func WithRebind(fn RebindFunc) SwapOption {
	return func(s *Swap) { s.rebind = fn }
}

// NewSwap pairs an L8 background with an ARGB8888 foreground of the same
// pixel dimensions.
func NewSwap(ctl Controller, bg, fg *TripleBuffer, set *fault.Set, opts ...SwapOption) (*Swap, error) {
	if ctl == nil || bg == nil || fg == nil {
		return nil, fmt.Errorf("%w: nil controller or layer", ErrConfig)
	}
	if bg.Format() != L8 || fg.Format() != ARGB8888 {
		return nil, fmt.Errorf("%w: layers are %v and %v, want L8 and ARGB8888",
			ErrConfig, bg.Format(), fg.Format())
	}
	if bg.Size()*ARGB8888.BytesPerPixel() != fg.Size() {
		return nil, fmt.Errorf("%w: layer sizes %d and %d do not cover the same pixels",
			ErrConfig, bg.Size(), fg.Size())
	}
	s := &Swap{
		ctl:       ctl,
		layers:    [2]*TripleBuffer{bg, fg},
		underruns: set.Get(fault.DisplayUnderrun),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start points the controller at the initial Front buffers.
func (s *Swap) Start() {
	s.ctl.DisableReloadIRQ()
	for i, l := range s.layers {
		s.ctl.SetAddress(i, l.Front())
	}
	s.ctl.RequestReload()
	s.rebindBack()
}

// Background returns the L8 buffer to compose the waterfall into.
func (s *Swap) Background() *Buffer { return s.layers[Background].Back() }

// Foreground returns the ARGB8888 buffer to compose the overlay into.
func (s *Swap) Foreground() *Buffer { return s.layers[Foreground].Back() }

// Layer returns the triple buffer of layer i.
func (s *Swap) Layer(i int) *TripleBuffer { return s.layers[i] }

// Pending reports whether a flip is waiting for its reload.
func (s *Swap) Pending() bool { return s.pending.Load() }

// Flip queues the composed Back buffers for display. A Flip before the
// previous one was latched replaces it; the earlier frame is never shown.
// A previous flip the controller latched but did not report yet is promoted
// first, since NextFront is already on screen.
func (s *Swap) Flip() {
	s.ctl.DisableReloadIRQ()
	if s.ctl.AbortReload() {
		s.promote()
	}
	for _, l := range s.layers {
		l.FlipBack()
	}
	s.pending.Store(true)
	for i, l := range s.layers {
		s.ctl.SetAddress(i, l.NextFront())
	}
	s.ctl.RequestReload()
	s.ctl.EnableReloadIRQ()
	s.rebindBack()
}

// HandleReload promotes the latched buffers to Front. Reloads without a
// pending flip are ignored.
func (s *Swap) HandleReload() {
	if s.promote() {
		s.ctl.DisableReloadIRQ()
	}
}

func (s *Swap) promote() bool {
	if !s.pending.CompareAndSwap(true, false) {
		return false
	}
	for _, l := range s.layers {
		l.FlipFront()
	}
	return true
}

// HandleUnderrun counts a scan-out that could not keep up.
func (s *Swap) HandleUnderrun() {
	s.underruns.Increment()
}

func (s *Swap) rebindBack() {
	if s.rebind != nil {
		s.rebind(s.Background(), s.Foreground())
	}
}
