// SPDX-License-Identifier: MIT
package spectrum

import "math"

// fastLog2Basis is the smallest input handled by the approximation.
const fastLog2Basis = 2.0

// FastLog2 approximates log2(x) for normal positive x. The binary exponent
// comes straight from the IEEE754 bits and a quadratic fits the mantissa in
// [1, 2). Absolute error stays below 0.01, so relative error is under 0.1%
// from 2^10 up. Inputs below the basis use math.Log2.
func FastLog2(x float32) float32 {
	if x < fastLog2Basis {
		return float32(math.Log2(float64(x)))
	}

	bits := math.Float32bits(x)
	exp := int32((bits>>23)&255) - 128
	bits = bits&^(255<<23) | 127<<23
	m := math.Float32frombits(bits)
	m = ((-1.0/3)*m+2)*m - 2.0/3
	return float32(exp) + m
}
