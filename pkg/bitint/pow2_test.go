// SPDX-License-Identifier: MIT
package bitint

import (
	"fmt"
	"testing"
)

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{-10, 1},     // Negative number
		{0, 1},       // Zero
		{8, 8},       // Already power of two
		{10, 16},     // Not power of two
		{480, 512},   // Display width to block size
		{1000, 1024}, // Large number
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%d", tt.n, tt.expected), func(t *testing.T) {
			result := NextPowerOfTwo(tt.n)
			if result != tt.expected {
				t.Errorf("NextPowerOfTwo(%d) = %d, expected %d", tt.n, result, tt.expected)
			}
		})
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected bool
	}{
		{-2, false},     // Negative number
		{0, false},      // Zero
		{1, true},       // One
		{512, true},     // Block size
		{480, false},    // Display width
		{1 << 20, true}, // Large power of two
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%t", tt.n, tt.expected), func(t *testing.T) {
			result := IsPowerOfTwo(tt.n)
			if result != tt.expected {
				t.Errorf("IsPowerOfTwo(%d) = %v, expected %v", tt.n, result, tt.expected)
			}
		})
	}
}

func TestGCDAndLCM(t *testing.T) {
	tests := []struct {
		a, b     int
		gcd, lcm int
	}{
		{4, 16, 4, 16},
		{4, 6, 2, 12},
		{16, 64, 16, 64},
		{7, 0, 7, 0},
		{0, 0, 0, 0},
		{-4, 6, 2, 12},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d,%d", tt.a, tt.b), func(t *testing.T) {
			if got := GCD(tt.a, tt.b); got != tt.gcd {
				t.Errorf("GCD(%d, %d) = %d, expected %d", tt.a, tt.b, got, tt.gcd)
			}
			if got := LCM(tt.a, tt.b); got != tt.lcm {
				t.Errorf("LCM(%d, %d) = %d, expected %d", tt.a, tt.b, got, tt.lcm)
			}
		})
	}
}

func TestAlignDown(t *testing.T) {
	tests := []struct {
		n, m     int
		expected int
	}{
		{0xFFFF, 16, 0xFFF0}, // Burst 4, alignment 16
		{0xFFFF, 64, 0xFFC0}, // Alignment 64
		{0xFFFF, 4, 0xFFFC},  // Burst only
		{32, 16, 32},         // Already aligned
		{15, 16, 0},          // Below one unit
		{100, 0, 0},          // Invalid multiple
		{-8, 4, 0},           // Negative input
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%#x/%d", tt.n, tt.m), func(t *testing.T) {
			if got := AlignDown(tt.n, tt.m); got != tt.expected {
				t.Errorf("AlignDown(%#x, %d) = %#x, expected %#x", tt.n, tt.m, got, tt.expected)
			}
		})
	}
}

func TestIsAligned(t *testing.T) {
	if !IsAligned(480, 4) {
		t.Error("480 should be aligned to 4")
	}
	if IsAligned(482, 4) {
		t.Error("482 should not be aligned to 4")
	}
	if IsAligned(4, 0) {
		t.Error("zero multiple is never aligned")
	}
}

func BenchmarkAlignDown(b *testing.B) {
	var i int
	b.ReportAllocs()
	for b.Loop() {
		AlignDown(i%0x1FFFF, 16)
		i++
	}
}
