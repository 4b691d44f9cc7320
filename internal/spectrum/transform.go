// SPDX-License-Identifier: MIT
package spectrum

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"

	"panadapter/pkg/bitint"
)

// Transform is a fixed-size forward complex transform applied in place.
type Transform interface {
	Len() int
	Forward(buf []complex128)
}

// FourierTransform is the gonum mixed-radix complex FFT. Its working
// memory is allocated once, so Forward does not allocate.
type FourierTransform struct {
	fft *fourier.CmplxFFT
	n   int
}

// NewFourierTransform creates a transform of length n, which must be a power
// of two.
func NewFourierTransform(n int) (*FourierTransform, error) {
	if !bitint.IsPowerOfTwo(n) {
		return nil, fmt.Errorf("%w: transform length %d is not a power of two", ErrConfig, n)
	}
	return &FourierTransform{fft: fourier.NewCmplxFFT(n), n: n}, nil
}

func (t *FourierTransform) Len() int { return t.n }

// Forward replaces buf with its unnormalized spectrum. Bin k holds
// frequency k/n cycles per sample, bins above n/2 the negative frequencies.
func (t *FourierTransform) Forward(buf []complex128) {
	t.fft.Coefficients(buf, buf)
}

var _ Transform = (*FourierTransform)(nil)
