// SPDX-License-Identifier: MIT
/*
Package spectrum turns one transformed sample block into a row of display
intensities.

Each of the W display columns shows one transform bin. The column to bin
mapping mirrors the index to cancel the transform's frequency inversion,
puts the zero-frequency bin at the middle column, then moves it Shift bins
to the left to compensate part of the receiver's IF offset:

	bin = (W - col + (N - W/2) - Shift) mod N

Per column the power log2(re² + im²) is smoothed exponentially against the
previous block and rescaled to 0..255.
*/
package spectrum

import (
	"errors"
	"fmt"
	"math"
)

var ErrConfig = errors.New("spectrum: invalid configuration")

// PowerFloor is the power of an empty bin: log2 of the smallest positive
// float32, so the smoothed average stays finite on silence.
const PowerFloor = -149

// Config holds the display geometry and intensity calibration.
type Config struct {
	Width  int     // Display columns, W
	Shift  int     // Bins the zero-frequency column is moved left
	Alpha  float32 // Smoothing weight of the newest block
	Offset float32 // Power mapped to intensity 0
	Scale  float32 // Intensity steps per power unit (octave)
	Window string  // Applied before the transform, see WindowHann
}

// DefaultConfig matches a 480 column display over a 512 point transform.
func DefaultConfig() Config {
	return Config{
		Width:  480,
		Shift:  16,
		Alpha:  0.33,
		Offset: 28,
		Scale:  22,
	}
}

// Processor holds the smoothing state. It is used from the worker context
// only.
type Processor struct {
	cfg    Config
	n      int
	tr     Transform
	win    []float64 // nil for rectangular
	bins   []int     // Column to bin
	powers []float32 // Smoothed power per column
}

// NewProcessor creates a processor for blocks of n samples transformed by tr.
func NewProcessor(tr Transform, n int, cfg Config) (*Processor, error) {
	if tr == nil || tr.Len() != n {
		return nil, fmt.Errorf("%w: transform length does not match block size %d", ErrConfig, n)
	}
	w := cfg.Width
	if w <= 0 || w%2 != 0 || w >= n {
		return nil, fmt.Errorf("%w: width %d must be even and below the block size %d", ErrConfig, w, n)
	}
	if cfg.Shift < 0 || cfg.Shift > n-w/2 {
		return nil, fmt.Errorf("%w: shift %d outside [0, %d]", ErrConfig, cfg.Shift, n-w/2)
	}
	if !(cfg.Alpha > 0 && cfg.Alpha <= 1) {
		return nil, fmt.Errorf("%w: alpha %v outside (0, 1]", ErrConfig, cfg.Alpha)
	}
	if !(cfg.Scale > 0) {
		return nil, fmt.Errorf("%w: scale %v must be positive", ErrConfig, cfg.Scale)
	}

	win, err := windowCoefficients(cfg.Window, n)
	if err != nil {
		return nil, err
	}

	p := &Processor{
		cfg:    cfg,
		win:    win,
		n:      n,
		tr:     tr,
		bins:   make([]int, w),
		powers: make([]float32, w),
	}
	for col := range w {
		p.bins[col] = columnBin(col, w, n, cfg.Shift)
	}
	return p, nil
}

func columnBin(col, w, n, shift int) int {
	return (w - col + (n - w/2) - shift) % n
}

// Width returns the number of output columns.
func (p *Processor) Width() int { return p.cfg.Width }

// ColumnBin returns the transform bin shown in column col.
func (p *Processor) ColumnBin(col int) int { return p.bins[col] }

// BinColumn returns the column showing bin, or false if it is off screen.
func (p *Processor) BinColumn(bin int) (int, bool) {
	w := p.cfg.Width
	col := ((w+(p.n-w/2)-p.cfg.Shift-bin)%p.n + p.n) % p.n
	return col, col < w
}

// ColumnFrequency returns the baseband frequency in Hz shown in column col.
func (p *Processor) ColumnFrequency(col int, sampleRate float64) float64 {
	bin := p.bins[col]
	if bin >= p.n/2 {
		bin -= p.n
	}
	return float64(bin) * sampleRate / float64(p.n)
}

// Transform applies the window and runs the forward transform over block in
// place.
func (p *Processor) Transform(block []complex128) error {
	if len(block) != p.n {
		return fmt.Errorf("%w: block of %d samples, want %d", ErrConfig, len(block), p.n)
	}
	for i, c := range p.win {
		block[i] *= complex(c, 0)
	}
	p.tr.Forward(block)
	return nil
}

// Process updates the smoothing state from bins and passes every column's
// intensity to emit.
func (p *Processor) Process(bins []complex128, emit func(col int, v uint8)) error {
	if len(bins) != p.n {
		return fmt.Errorf("%w: %d bins, want %d", ErrConfig, len(bins), p.n)
	}
	for col := range p.bins {
		emit(col, p.update(col, bins))
	}
	return nil
}

// ProcessInto is Process writing the intensities to row[0:W].
func (p *Processor) ProcessInto(bins []complex128, row []byte) error {
	if len(bins) != p.n {
		return fmt.Errorf("%w: %d bins, want %d", ErrConfig, len(bins), p.n)
	}
	if len(row) < p.cfg.Width {
		return fmt.Errorf("%w: row of %d bytes, want %d", ErrConfig, len(row), p.cfg.Width)
	}
	for col := range p.bins {
		row[col] = p.update(col, bins)
	}
	return nil
}

// Reset clears the smoothing state.
func (p *Processor) Reset() {
	clear(p.powers)
}

func (p *Processor) update(col int, bins []complex128) uint8 {
	c := bins[p.bins[col]]
	re, im := float32(real(c)), float32(imag(c))

	power := float32(PowerFloor)
	if mag2 := re*re + im*im; mag2 > 0 {
		power = FastLog2(mag2)
	}

	a := p.cfg.Alpha
	avg := power*a + p.powers[col]*(1-a)
	p.powers[col] = avg
	return Intensity(avg, p.cfg.Offset, p.cfg.Scale)
}

// Intensity maps a smoothed power to a display intensity.
func Intensity(avg, offset, scale float32) uint8 {
	v := math.Round(float64((avg - offset) * scale))
	return uint8(max(0, min(255, v)))
}
