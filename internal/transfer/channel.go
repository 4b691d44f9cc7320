// SPDX-License-Identifier: MIT
package transfer

import (
	"fmt"
	"time"
)

// MemChannel is a software transfer channel: Start hands the descriptor to a
// goroutine that moves the bytes, PollUntilDone waits for it with a hard
// timeout. It has the hardware's calling discipline: one transfer in flight,
// driven from a single context.
type MemChannel struct {
	// Latency delays every transfer. Zero in production; tests use it to
	// force poll timeouts.
	Latency time.Duration

	busy bool
	done chan error
}

// NewMemChannel returns an idle channel.
func NewMemChannel() *MemChannel {
	return &MemChannel{done: make(chan error, 1)}
}

// Start begins moving d.Words words. The descriptor is copied, so the caller
// may reuse it immediately.
func (c *MemChannel) Start(d *Descriptor) error {
	if c.busy {
		// A transfer abandoned after a poll timeout keeps the channel busy
		// until it actually finishes.
		select {
		case <-c.done:
			c.busy = false
		default:
			return ErrBusy
		}
	}

	n := d.Words * WordSize
	if d.Words <= 0 || len(d.Dst) < n || len(d.Src) == 0 {
		return fmt.Errorf("%w: descriptor %d words, src %d bytes, dst %d bytes",
			ErrStart, d.Words, len(d.Src), len(d.Dst))
	}
	if !d.FixedSource && len(d.Src) < n {
		return fmt.Errorf("%w: source shorter than %d bytes", ErrStart, n)
	}

	src, dst, fixed, latency := d.Src, d.Dst[:n], d.FixedSource, c.Latency
	c.busy = true
	go func() {
		if latency > 0 {
			time.Sleep(latency)
		}
		if fixed {
			for off := 0; off < n; off += len(src) {
				copy(dst[off:], src)
			}
		} else {
			copy(dst, src[:n])
		}
		c.done <- nil
	}()
	return nil
}

// PollUntilDone blocks until the in-flight transfer completes or timeout
// elapses. A timeout is final for that transfer.
func (c *MemChannel) PollUntilDone(timeout time.Duration) error {
	if !c.busy {
		return fmt.Errorf("%w: no transfer in flight", ErrStart)
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-c.done:
		c.busy = false
		return err
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}

var _ Channel = (*MemChannel)(nil)
