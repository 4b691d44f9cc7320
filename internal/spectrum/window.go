// SPDX-License-Identifier: MIT
package spectrum

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// Window names accepted in Config.Window. The empty string and "none" leave
// the block unwindowed.
const (
	WindowNone            = "none"
	WindowHann            = "hann"
	WindowHamming         = "hamming"
	WindowBlackman        = "blackman"
	WindowBlackmanNuttall = "blackman-nuttall"
	WindowNuttall         = "nuttall"
)

// windowCoefficients returns n coefficients of the named window, or nil for
// a rectangular window.
func windowCoefficients(name string, n int) ([]float64, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == WindowNone {
		return nil, nil
	}

	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1
	}
	switch name {
	case WindowHann:
		window.Hann(coeffs)
	case WindowHamming:
		window.Hamming(coeffs)
	case WindowBlackman:
		window.Blackman(coeffs)
	case WindowBlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case WindowNuttall:
		window.Nuttall(coeffs)
	default:
		return nil, fmt.Errorf("%w: unknown window %q", ErrConfig, name)
	}
	return coeffs, nil
}
