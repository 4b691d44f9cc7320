// SPDX-License-Identifier: MIT
/*
Package transfer implements blocking word-addressed bulk copy and fill on top
of a memory-to-memory transfer channel (the "DMA" primitive).

The channel accepts at most a fixed number of words per transfer. Engine hides
that ceiling: longer requests are split into sequential batches, each started
and polled to completion before the next, with source and destination
advanced by the batch size. The first failing batch aborts the request and the
destination must be treated as garbage afterwards.

An Engine owns a single Descriptor that it rewrites for every batch, so it is
meant for one context (the pipeline worker) and is not safe for concurrent use.
*/
package transfer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"panadapter/internal/fault"
	"panadapter/pkg/bitint"
)

const (
	// WordSize is the transfer unit in bytes.
	WordSize = 4

	// ControllerLimit is the transfer channel's item counter width (16 bit).
	ControllerLimit = 0xFFFF

	DefaultBurstWords  = 4  // Memory burst size in words
	DefaultAlignWords  = 16 // 64 byte display bus bursts may not straddle 1 kB
	DefaultPollTimeout = 250 * time.Millisecond
)

var (
	ErrConfig  = errors.New("transfer: invalid request")
	ErrStart   = errors.New("transfer: start failed")
	ErrTimeout = errors.New("transfer: completion poll timed out")
	ErrBusy    = errors.New("transfer: channel busy")
)

// Descriptor is the per-transfer channel configuration. Src is read with an
// incrementing address unless FixedSource is set, in which case Src holds a
// pattern that is repeated over the destination.
type Descriptor struct {
	Src         []byte
	Dst         []byte
	Words       int
	FixedSource bool
}

// Channel is the hardware transfer primitive. Start must not block; the
// transfer is finished only once PollUntilDone returns nil.
type Channel interface {
	Start(d *Descriptor) error
	PollUntilDone(timeout time.Duration) error
}

// MaxBatchWords returns the largest per-transfer word count not above limit
// that is a multiple of both the burst size and the address alignment, so
// every batch boundary keeps the next batch aligned.
func MaxBatchWords(burst, align, limit int) int {
	return bitint.AlignDown(limit, bitint.LCM(burst, align))
}

// Engine performs batched copies and fills.
type Engine struct {
	ch       Channel
	desc     Descriptor
	burst    int
	align    int
	maxBatch int
	timeout  time.Duration
	pattern  []byte
	orphaned bool // pattern may still be read by a timed out fill

	timeouts *fault.Counter
	failures *fault.Counter
}

// Option configures an Engine.
type Option func(*Engine)

// WithGeometry sets the burst size and alignment, both in words.
func WithGeometry(burst, align int) Option {
	return func(e *Engine) {
		e.burst = burst
		e.align = align
	}
}

// WithPollTimeout sets the hard timeout applied to every batch.
func WithPollTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithMaxBatch overrides the computed batch ceiling. It must still be a
// multiple of the burst size and alignment.
func WithMaxBatch(words int) Option {
	return func(e *Engine) { e.maxBatch = words }
}

// WithCounters wires the timeout and failure counters of set.
func WithCounters(set *fault.Set) Option {
	return func(e *Engine) {
		e.timeouts = set.Get(fault.TransferTimeout)
		e.failures = set.Get(fault.TransferFailure)
	}
}

// NewEngine creates an engine driving ch.
func NewEngine(ch Channel, opts ...Option) (*Engine, error) {
	if ch == nil {
		return nil, fmt.Errorf("%w: nil channel", ErrConfig)
	}
	e := &Engine{
		ch:       ch,
		burst:    DefaultBurstWords,
		align:    DefaultAlignWords,
		timeout:  DefaultPollTimeout,
		timeouts: fault.NewCounter(fault.TransferTimeout, ""),
		failures: fault.NewCounter(fault.TransferFailure, ""),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.burst <= 0 || e.align <= 0 {
		return nil, fmt.Errorf("%w: burst %d, align %d", ErrConfig, e.burst, e.align)
	}
	unit := bitint.LCM(e.burst, e.align)
	if e.maxBatch == 0 {
		e.maxBatch = MaxBatchWords(e.burst, e.align, ControllerLimit)
	}
	if e.maxBatch <= 0 || e.maxBatch > ControllerLimit || !bitint.IsAligned(e.maxBatch, unit) {
		return nil, fmt.Errorf("%w: batch ceiling %d not a positive multiple of %d below %#x",
			ErrConfig, e.maxBatch, unit, ControllerLimit)
	}
	if e.timeout <= 0 {
		return nil, fmt.Errorf("%w: poll timeout %s", ErrConfig, e.timeout)
	}

	// Fill source: one burst of the fill word.
	e.pattern = make([]byte, e.burst*WordSize)
	return e, nil
}

// MaxBatch returns the per-transfer ceiling in words.
func (e *Engine) MaxBatch() int { return e.maxBatch }

// Copy copies words 32-bit words from src to dst, blocking until done.
func (e *Engine) Copy(dst, src []byte, words int) error {
	if err := e.check(dst, words); err != nil {
		return err
	}
	if len(src) < words*WordSize {
		return fmt.Errorf("%w: source holds %d bytes, need %d", ErrConfig, len(src), words*WordSize)
	}
	return e.run(dst, src, words, false)
}

// Fill writes value to words consecutive words of dst, blocking until done.
func (e *Engine) Fill(dst []byte, value uint32, words int) error {
	if err := e.check(dst, words); err != nil {
		return err
	}
	if e.orphaned {
		e.pattern = make([]byte, len(e.pattern))
		e.orphaned = false
	}
	for off := 0; off < len(e.pattern); off += WordSize {
		binary.LittleEndian.PutUint32(e.pattern[off:], value)
	}
	err := e.run(dst, e.pattern, words, true)
	if errors.Is(err, ErrTimeout) {
		// The channel owns the pattern until the transfer really ends.
		e.orphaned = true
	}
	return err
}

func (e *Engine) check(dst []byte, words int) error {
	if words < 0 {
		return fmt.Errorf("%w: negative word count %d", ErrConfig, words)
	}
	if len(dst) < words*WordSize {
		return fmt.Errorf("%w: destination holds %d bytes, need %d", ErrConfig, len(dst), words*WordSize)
	}
	return nil
}

func (e *Engine) run(dst, src []byte, words int, fixed bool) error {
	for batch := 0; words > 0; batch++ {
		n := min(words, e.maxBatch)
		if err := e.transfer(dst, src, n, fixed); err != nil {
			e.failures.Increment()
			if errors.Is(err, ErrTimeout) {
				e.timeouts.Increment()
			}
			return fmt.Errorf("batch %d (%d words): %w", batch, n, err)
		}
		words -= n
		dst = dst[n*WordSize:]
		if !fixed {
			src = src[n*WordSize:]
		}
	}
	return nil
}

func (e *Engine) transfer(dst, src []byte, words int, fixed bool) error {
	e.desc = Descriptor{Src: src, Dst: dst, Words: words, FixedSource: fixed}
	if err := e.ch.Start(&e.desc); err != nil {
		if errors.Is(err, ErrStart) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrStart, err)
	}
	return e.ch.PollUntilDone(e.timeout)
}
