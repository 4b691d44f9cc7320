// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	applog "panadapter/internal/log"
)

var log = applog.For("transport")

// DefaultDepth is the number of rows that may wait for the sender.
const DefaultDepth = 32

// Publisher fans finished rows out to its transports from a goroutine of
// its own. PublishRow never blocks and never allocates: when every packet
// is queued the row is dropped and counted.
type Publisher struct {
	transports []Transport
	now        func() time.Time

	free   chan []byte
	queued chan []byte

	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool

	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewPublisher creates a publisher for rows of width values.
func NewPublisher(width, depth int, transports ...Transport) (*Publisher, error) {
	if len(transports) == 0 {
		return nil, fmt.Errorf("publisher: at least one transport is required")
	}
	if width <= 0 || width > 0xFFFF {
		return nil, fmt.Errorf("publisher: row width %d out of range", width)
	}
	if depth <= 0 {
		depth = DefaultDepth
	}
	p := &Publisher{
		transports: transports,
		now:        time.Now,
		free:       make(chan []byte, depth),
		queued:     make(chan []byte, depth),
	}
	for range depth {
		p.free <- make([]byte, 0, RowHeaderSize+width)
	}
	log.Infof("publisher: %d transports, %d packets of %d bytes", len(transports), depth, RowHeaderSize+width)
	return p, nil
}

// PublishRow queues a copy of row.
func (p *Publisher) PublishRow(seq uint64, row []byte) error {
	select {
	case pkt := <-p.free:
		p.queued <- AppendRow(pkt[:0], uint32(seq), p.now().UnixNano(), row)
		return nil
	default:
		p.dropped.Add(1)
		return fmt.Errorf("publisher: row %d dropped, %d packets in flight", seq, cap(p.queued))
	}
}

// Start launches the sender goroutine. Calling Start on a running publisher
// does nothing.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		log.Warnf("publisher: Start called but already running")
		return
	}
	p.running = true
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}
	done := p.doneChan

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case pkt := <-p.queued:
				p.send(pkt)
			case <-done:
				p.drain()
				return
			}
		}
	}()
}

func (p *Publisher) send(pkt []byte) {
	for _, t := range p.transports {
		if err := t.Send(pkt); err != nil {
			p.failed.Add(1)
			log.Debugf("publisher: send failed: %v", err)
		}
	}
	p.sent.Add(1)
	p.free <- pkt
}

// drain sends whatever was queued before Stop.
func (p *Publisher) drain() {
	for {
		select {
		case pkt := <-p.queued:
			p.send(pkt)
		default:
			return
		}
	}
}

// Stop flushes queued rows and waits for the sender goroutine.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.running = false
	})
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}

// Close stops the publisher and closes every transport.
func (p *Publisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	var first error
	for _, t := range p.transports {
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	log.Infof("publisher: closed after %d rows (%d dropped, %d failed sends)",
		p.sent.Load(), p.dropped.Load(), p.failed.Load())
	return first
}

// Sent returns the number of rows handed to the transports.
func (p *Publisher) Sent() uint64 { return p.sent.Load() }

// Dropped returns the number of rows discarded because the queue was full.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }
