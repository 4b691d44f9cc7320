// SPDX-License-Identifier: MIT
package capture

import (
	"context"
	"math"
)

// ToneSource synthesizes a complex exponential, optionally sweeping, at a
// fixed sample rate. Useful without audio hardware.
type ToneSource struct {
	SampleRate int
	Freq       float64 // Hz, negative frequencies are below the center
	Amplitude  float64 // Fraction of full scale
	Sweep      float64 // Hz added after every block

	phase float64
}

// NewToneSource returns a tone at freq Hz and half scale.
func NewToneSource(sampleRate int, freq float64) *ToneSource {
	return &ToneSource{SampleRate: sampleRate, Freq: freq, Amplitude: 0.5}
}

func (t *ToneSource) Run(ctx context.Context, region *Region, ev Events) error {
	return runPaced(ctx, region, ev, t.SampleRate, func(b Block) error {
		t.Fill(b)
		return nil
	})
}

// Fill writes the next len(b) samples of the tone, keeping phase across
// calls, then applies the sweep.
func (t *ToneSource) Fill(b Block) {
	step := 2 * math.Pi * t.Freq / float64(t.SampleRate)
	scale := t.Amplitude * math.MaxInt16
	for i := range b.Len() {
		sin, cos := math.Sincos(t.phase)
		b.Store(i, int16(math.Round(scale*cos)), int16(math.Round(scale*sin)))
		t.phase = math.Mod(t.phase+step, 2*math.Pi)
	}
	t.Freq += t.Sweep
	if nyquist := float64(t.SampleRate) / 2; t.Freq >= nyquist {
		t.Freq -= 2 * nyquist
	}
}

var _ Source = (*ToneSource)(nil)
