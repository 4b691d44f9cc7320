// SPDX-License-Identifier: MIT
package display

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"
)

// DefaultRefresh is the panel's frame rate.
const DefaultRefresh = 60

// Scanout receives the active buffers of both layers once per refresh. The
// buffers must not be retained after Scanout returns.
type Scanout interface {
	Scanout(background, foreground *Buffer)
}

// ScanoutFunc adapts a function to Scanout.
type ScanoutFunc func(background, foreground *Buffer)

func (f ScanoutFunc) Scanout(bg, fg *Buffer) { f(bg, fg) }

// Panel emulates an LCD controller with shadowed layer address registers.
// Register writes are atomic so the worker may program it while the refresh
// loop runs. Vertical blanking latches the shadow registers if a reload was
// requested, raises the reload interrupt and starts scanning out the active
// buffers. A scan-out still running at the next blanking is an underrun.
type Panel struct {
	refresh time.Duration
	events  Events
	sink    Scanout

	shadow [2]atomic.Pointer[Buffer]
	active [2]atomic.Pointer[Buffer]

	reload   atomic.Uint32 // reloadIdle .. reloadLatched
	irq      atomic.Uint32 // irqEnabled | irqRunning
	scanning atomic.Bool
	frames   atomic.Uint64

	scanq chan [2]*Buffer
}

// Reload register states. A requested reload moves through latching while
// the shadow registers are copied, and stays latched until the interrupt
// handler or AbortReload consumes it.
const (
	reloadIdle uint32 = iota
	reloadRequested
	reloadLatching
	reloadLatched
)

const (
	irqEnabled uint32 = 1 << iota
	irqRunning
)

// NewPanel creates a panel refreshing hz times per second. sink may be nil.
func NewPanel(hz int, sink Scanout) *Panel {
	if hz <= 0 {
		hz = DefaultRefresh
	}
	return &Panel{
		refresh: time.Second / time.Duration(hz),
		sink:    sink,
	}
}

// Attach sets the receiver of reload and underrun interrupts.
func (p *Panel) Attach(ev Events) { p.events = ev }

func (p *Panel) SetAddress(layer int, b *Buffer) { p.shadow[layer].Store(b) }

// RequestReload arms a latch at the next vertical blanking and clears a
// stale reload status.
func (p *Panel) RequestReload() {
	for {
		st := p.reload.Load()
		if st == reloadLatching {
			runtime.Gosched()
			continue
		}
		if p.reload.CompareAndSwap(st, reloadRequested) {
			return
		}
	}
}

// AbortReload cancels a reload that has not latched yet and waits for a
// running reload handler to return. It reports whether a reload had latched
// without being delivered, and clears it. Callers disable the interrupt
// first.
func (p *Panel) AbortReload() bool {
	for p.irq.Load()&irqRunning != 0 {
		runtime.Gosched()
	}
	for {
		switch st := p.reload.Load(); st {
		case reloadIdle:
			return false
		case reloadLatching:
			runtime.Gosched()
		default:
			if p.reload.CompareAndSwap(st, reloadIdle) {
				return st == reloadLatched
			}
		}
	}
}

// EnableReloadIRQ enables the reload interrupt. A reload that completed
// while it was disabled is delivered immediately.
func (p *Panel) EnableReloadIRQ() {
	p.irq.Or(irqEnabled)
	p.deliverReload()
}

// DisableReloadIRQ masks the reload interrupt. It does not wait for a
// running handler, which may call it.
func (p *Panel) DisableReloadIRQ() { p.irq.And(^irqEnabled) }

// Active returns the buffer layer is scanning out, nil before the first
// reload.
func (p *Panel) Active(layer int) *Buffer { return p.active[layer].Load() }

// Frames returns the number of vertical blankings so far.
func (p *Panel) Frames() uint64 { return p.frames.Load() }

// Vblank runs one vertical blanking interval.
func (p *Panel) Vblank() {
	p.frames.Add(1)
	if p.reload.CompareAndSwap(reloadRequested, reloadLatching) {
		for i := range p.active {
			p.active[i].Store(p.shadow[i].Load())
		}
		p.reload.Store(reloadLatched)
	}
	p.deliverReload()
	p.scan()
}

// deliverReload raises the reload interrupt for a latched reload. At most
// one handler runs at a time.
func (p *Panel) deliverReload() {
	if p.events == nil {
		return
	}
	for {
		st := p.irq.Load()
		if st&irqEnabled == 0 || st&irqRunning != 0 {
			return
		}
		if p.irq.CompareAndSwap(st, st|irqRunning) {
			break
		}
	}
	if p.reload.CompareAndSwap(reloadLatched, reloadIdle) {
		p.events.HandleReload()
	}
	p.irq.And(^irqRunning)
}

func (p *Panel) scan() {
	if p.sink == nil {
		return
	}
	if !p.scanning.CompareAndSwap(false, true) {
		if p.events != nil {
			p.events.HandleUnderrun()
		}
		return
	}
	frame := [2]*Buffer{p.active[0].Load(), p.active[1].Load()}
	if frame[0] == nil || frame[1] == nil {
		p.scanning.Store(false)
		return
	}
	if p.scanq != nil {
		// The scanning flag guarantees the worker has drained the queue.
		p.scanq <- frame
		return
	}
	p.sink.Scanout(frame[0], frame[1])
	p.scanning.Store(false)
}

// Run refreshes until ctx is done. Scan-out runs on its own goroutine so a
// slow sink shows up as underruns instead of delaying blanking.
func (p *Panel) Run(ctx context.Context) error {
	if p.sink != nil {
		p.scanq = make(chan [2]*Buffer, 1)
		done := make(chan struct{})
		defer func() {
			close(p.scanq)
			<-done
			p.scanq = nil
		}()
		go func() {
			defer close(done)
			for f := range p.scanq {
				p.sink.Scanout(f[0], f[1])
				p.scanning.Store(false)
			}
		}()
	}

	ticker := time.NewTicker(p.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Vblank()
		}
	}
}
