// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"sync"
)

// MockTransport records every packet it is sent.
type MockTransport struct {
	mu      sync.Mutex
	packets [][]byte
	closed  bool
	Err     error // Returned by Send when set
}

// Send stores a copy of packet instead of transmitting it.
func (m *MockTransport) Send(packet []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.packets = append(m.packets, append([]byte(nil), packet...))
	return nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Packets returns the packets sent so far.
func (m *MockTransport) Packets() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.packets...)
}

func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateIQTone returns size samples of a complex exponential that lands
// exactly on transform bin of a size-point transform. Negative bins rotate
// the other way. Components are rounded to int16 steps.
func GenerateIQTone(size, bin int, amplitude float64) []complex128 {
	buffer := make([]complex128, size)
	for i := range buffer {
		phase := 2 * math.Pi * float64(bin) * float64(i) / float64(size)
		s, c := math.Sincos(phase)
		buffer[i] = complex(math.Round(amplitude*c), math.Round(amplitude*s))
	}
	return buffer
}

// GenerateIQNoise returns size samples of deterministic pseudo-random noise
// with components in [-amplitude, amplitude].
func GenerateIQNoise(size int, amplitude float64, seed uint32) []complex128 {
	buffer := make([]complex128, size)
	x := seed | 1
	next := func() float64 {
		// xorshift32
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		return float64(x)/math.MaxUint32*2 - 1
	}
	for i := range buffer {
		buffer[i] = complex(math.Round(amplitude*next()), math.Round(amplitude*next()))
	}
	return buffer
}

// FindPeak returns the index of the largest value in values[start:end+1].
// The range is clipped to values; ties resolve to the lowest index.
func FindPeak(values []byte, start, end int) int {
	if len(values) == 0 {
		return 0
	}
	start = max(start, 0)
	end = min(end, len(values)-1)
	peak := start
	for i := start + 1; i <= end; i++ {
		if values[i] > values[peak] {
			peak = i
		}
	}
	return peak
}
