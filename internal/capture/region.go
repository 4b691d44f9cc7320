// SPDX-License-Identifier: MIT
package capture

import (
	"fmt"
	"sync/atomic"
)

// Region is the capture engine's target memory: 2×N samples, the lower N
// forming the first half. Each sample is one word holding int16 I in the
// low half and int16 Q in the high half, accessed atomically because the
// producer may be writing a half while the consumer copies it.
type Region struct {
	words []atomic.Uint32
	n     int
}

// NewRegion allocates a region of n samples per half.
func NewRegion(n int) (*Region, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid capture block size: %d", n)
	}
	return &Region{words: make([]atomic.Uint32, 2*n), n: n}, nil
}

// Len returns the number of samples per half.
func (r *Region) Len() int { return r.n }

func (r *Region) Lower() Block { return Block{r.words[:r.n]} }
func (r *Region) Upper() Block { return Block{r.words[r.n:]} }

// Block returns the view of half h.
func (r *Region) Block(h Half) Block {
	if h == Upper {
		return r.Upper()
	}
	return r.Lower()
}

// Clear zeroes both halves.
func (r *Region) Clear() {
	for i := range r.words {
		r.words[i].Store(0)
	}
}

// Block is one half of a Region.
type Block struct {
	words []atomic.Uint32
}

func (b Block) Len() int { return len(b.words) }

// Store writes sample i.
func (b Block) Store(i int, re, im int16) {
	b.words[i].Store(uint32(uint16(re)) | uint32(uint16(im))<<16)
}

// Load reads sample i.
func (b Block) Load(i int) (re, im int16) {
	w := b.words[i].Load()
	return int16(w), int16(w >> 16)
}
