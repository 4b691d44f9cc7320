/*
Package bitint provides the integer helpers used to size transform blocks and
hardware transfer batches. Everything here is allocation free and constant
time so it can be called from interrupt context.

Usage:

	// Verify the transform block is a power of 2
	ok := bitint.IsPowerOfTwo(512)

	// Largest transfer batch below the controller limit that keeps both the
	// burst size (4 words) and the address alignment (16 words)
	batch := bitint.AlignDown(0xFFFF, bitint.LCM(4, 16)) // 0xFFF0

----------------------------------------------------------------------

What this code does:

	NextPowerOfTwo returns the next power of 2 greater than or
	equal to size. The subtraction (size-1) keeps exact powers of
	2 unchanged:

	- For input 8: size-1 = 7 (0111), bits.Len(7) = 3, 1 << 3 = 8
	- Without it:  bits.Len(8) = 4, 1 << 4 = 16 (doubled)

	AlignDown clears the remainder of n modulo a multiple m. Batch
	ceilings are derived with it instead of being hard-coded so a
	different burst or alignment requirement only changes inputs.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
// Examples:
//
//	Input  Output  Explanation
//	4      4      Already power of 2 (preserved)
//	5      8      Next power after 5
//	0      1      Handle zero case
//	-1     1      Handle negative case
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2 using bit manipulation.
// The expression (n & (n-1)) == 0 works because:
//   - Powers of 2 have exactly one bit set
//   - Subtracting 1 from a power of 2 sets all lower bits
//   - AND operation will be 0 only for powers of 2
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// GCD returns the greatest common divisor of a and b (Euclid).
// GCD(0, 0) is 0.
func GCD(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// LCM returns the least common multiple of a and b, or 0 if either is 0.
func LCM(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	l := a / GCD(a, b) * b
	if l < 0 {
		return -l
	}
	return l
}

// AlignDown returns the largest multiple of m that is <= n.
// Non-positive m or n yields 0.
func AlignDown(n, m int) int {
	if m <= 0 || n <= 0 {
		return 0
	}
	return n - n%m
}

// IsAligned reports whether n is a non-negative multiple of m.
func IsAligned(n, m int) bool {
	return m > 0 && n >= 0 && n%m == 0
}
