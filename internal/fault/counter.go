// SPDX-License-Identifier: MIT
package fault

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
)

// Counter names used across the pipeline.
const (
	MissedAudio     = "missed_audio"
	LateAudioRead   = "late_audio_read"
	DisplayUnderrun = "ltdc_underrun"
	TransferTimeout = "transfer_timeout"
	TransferFailure = "transfer_failure"
	ProcessCoalesce = "process_coalesced"
	RenderCoalesce  = "render_coalesced"
)

// Counter is a named monotonically increasing event count.
type Counter struct {
	name string
	help string
	n    atomic.Uint64
}

// NewCounter returns a standalone counter. Most callers get theirs from a Set.
func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Name() string { return c.name }

// Increment adds one. Safe from interrupt context.
func (c *Counter) Increment() { c.n.Add(1) }

// Value returns the current count.
func (c *Counter) Value() uint64 { return c.n.Load() }

// Set is the fixed collection of counters for one pipeline. Counters are
// registered during bring-up only; after that the set is read-only.
type Set struct {
	counters map[string]*Counter
	desc     map[string]*prometheus.Desc
}

// NewSet creates a set preloaded with the pipeline's standard counters.
func NewSet() *Set {
	s := &Set{
		counters: make(map[string]*Counter),
		desc:     make(map[string]*prometheus.Desc),
	}
	s.Register(MissedAudio, "Capture halves overwritten before the consumer drained them.")
	s.Register(LateAudioRead, "Capture reads discarded because the producer wrote during the copy.")
	s.Register(DisplayUnderrun, "Display refresh cycles starved of pixel data.")
	s.Register(TransferTimeout, "Bulk transfers that did not complete within the poll timeout.")
	s.Register(TransferFailure, "Bulk transfers that failed to start or complete.")
	s.Register(ProcessCoalesce, "Process readiness signals merged into an already pending run.")
	s.Register(RenderCoalesce, "Render readiness signals merged into an already pending run.")
	return s
}

// Register adds a counter, or returns the existing one with that name.
func (s *Set) Register(name, help string) *Counter {
	if c, ok := s.counters[name]; ok {
		return c
	}
	c := NewCounter(name, help)
	s.counters[name] = c
	s.desc[name] = prometheus.NewDesc("panadapter_"+name+"_total", help, nil, nil)
	return c
}

// Get returns the named counter. Unknown names are a bring-up bug and panic.
func (s *Set) Get(name string) *Counter {
	c, ok := s.counters[name]
	if !ok {
		panic(fmt.Sprintf("fault: unknown counter %q", name))
	}
	return c
}

// Snapshot returns the current values by name.
func (s *Set) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, len(s.counters))
	for name, c := range s.counters {
		out[name] = c.Value()
	}
	return out
}

// Summary formats all counters on one line, sorted by name.
func (s *Set) Summary() string {
	names := make([]string, 0, len(s.counters))
	for name := range s.counters {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+humanize.Comma(int64(s.counters[name].Value())))
	}
	return strings.Join(parts, " ")
}

// Describe implements prometheus.Collector.
func (s *Set) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range s.desc {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (s *Set) Collect(ch chan<- prometheus.Metric) {
	for name, c := range s.counters {
		ch <- prometheus.MustNewConstMetric(s.desc[name], prometheus.CounterValue, float64(c.Value()))
	}
}

var _ prometheus.Collector = (*Set)(nil)
