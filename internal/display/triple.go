// SPDX-License-Identifier: MIT
package display

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var ErrConfig = errors.New("display: invalid configuration")

// Format is a layer's pixel format.
type Format int

const (
	L8       Format = iota // 8 bit palette index
	ARGB8888               // 32 bit color, little-endian B, G, R, A bytes
)

// BytesPerPixel returns the pixel size of f.
func (f Format) BytesPerPixel() int {
	if f == ARGB8888 {
		return 4
	}
	return 1
}

func (f Format) String() string {
	if f == ARGB8888 {
		return "ARGB8888"
	}
	return "L8"
}

// Buffer is one physical framebuffer.
type Buffer struct {
	ID  int
	Pix []byte
}

// Role is what a buffer is used for at a given moment.
type Role int

const (
	Front     Role = iota // Scanned out by the panel
	NextFront             // Latched at the next reload
	Back                  // Written by the compositor
)

// perm[role] is the index of the buffer holding that role.
type perm [3]uint8

// The six role assignments. A TripleBuffer's state is an index into this
// table, so every state assigns each role exactly once.
var perms = [6]perm{
	{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
}

// Transition tables: flipBack exchanges Back and NextFront, flipFront
// exchanges Front and NextFront.
var flipBack, flipFront = transitions()

func transitions() (back, front [6]uint32) {
	index := func(p perm) uint32 {
		for i, q := range perms {
			if q == p {
				return uint32(i)
			}
		}
		panic("display: permutation table incomplete")
	}
	for i, p := range perms {
		back[i] = index(perm{p[Front], p[Back], p[NextFront]})
		front[i] = index(perm{p[NextFront], p[Front], p[Back]})
	}
	return back, front
}

// TripleBuffer rotates three equally sized buffers through the Front,
// NextFront and Back roles. Each flip is a single atomic update of the state
// word, so the worker and the refresh interrupt may flip concurrently.
type TripleBuffer struct {
	bufs   [3]*Buffer
	format Format
	state  atomic.Uint32
}

// NewTripleBuffer starts with a as Front, b as NextFront and c as Back.
func NewTripleBuffer(format Format, a, b, c *Buffer) (*TripleBuffer, error) {
	if a == nil || b == nil || c == nil {
		return nil, fmt.Errorf("%w: nil buffer", ErrConfig)
	}
	if len(a.Pix) == 0 || len(a.Pix) != len(b.Pix) || len(a.Pix) != len(c.Pix) {
		return nil, fmt.Errorf("%w: buffer sizes %d, %d, %d differ",
			ErrConfig, len(a.Pix), len(b.Pix), len(c.Pix))
	}
	return &TripleBuffer{bufs: [3]*Buffer{a, b, c}, format: format}, nil
}

// NewLayer allocates the three buffers of a w×h layer. Buffer IDs are
// base, base+1 and base+2.
func NewLayer(format Format, w, h, base int) (*TripleBuffer, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: layer size %dx%d", ErrConfig, w, h)
	}
	size := w * h * format.BytesPerPixel()
	var bufs [3]*Buffer
	for i := range bufs {
		bufs[i] = &Buffer{ID: base + i, Pix: make([]byte, size)}
	}
	return NewTripleBuffer(format, bufs[0], bufs[1], bufs[2])
}

func (t *TripleBuffer) Format() Format { return t.format }

// Size returns the size of each buffer in bytes.
func (t *TripleBuffer) Size() int { return len(t.bufs[0].Pix) }

// Buffers returns the three physical buffers in construction order.
func (t *TripleBuffer) Buffers() [3]*Buffer { return t.bufs }

func (t *TripleBuffer) Front() *Buffer     { return t.Get(Front) }
func (t *TripleBuffer) NextFront() *Buffer { return t.Get(NextFront) }
func (t *TripleBuffer) Back() *Buffer      { return t.Get(Back) }

// Get returns the buffer currently holding role r.
func (t *TripleBuffer) Get(r Role) *Buffer {
	return t.bufs[perms[t.state.Load()][r]]
}

// Roles returns Front, NextFront and Back from one consistent state.
func (t *TripleBuffer) Roles() (front, next, back *Buffer) {
	p := perms[t.state.Load()]
	return t.bufs[p[Front]], t.bufs[p[NextFront]], t.bufs[p[Back]]
}

// FlipBack makes the composed Back buffer pending and recycles the old
// NextFront as Back.
func (t *TripleBuffer) FlipBack() { t.apply(&flipBack) }

// FlipFront makes the pending buffer the scanned-out one.
func (t *TripleBuffer) FlipFront() { t.apply(&flipFront) }

func (t *TripleBuffer) apply(table *[6]uint32) {
	for {
		s := t.state.Load()
		if t.state.CompareAndSwap(s, table[s]) {
			return
		}
	}
}
