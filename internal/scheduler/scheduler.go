// SPDX-License-Identifier: MIT
/*
Package scheduler runs the pipeline's two jobs on a single worker.

Readiness is a one-slot channel per job. Signals are non-blocking sends, so
they are safe from interrupt context; a signal that finds its slot full is
merged into the pending run and counted. The worker always prefers the
process job, and a completed process run makes the render job ready. Jobs
never overlap and are never preempted by each other.
*/
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"panadapter/internal/fault"
)

var ErrConfig = errors.New("scheduler: invalid configuration")

// Job is one unit of worker-context work.
type Job func() error

// Scheduler owns the readiness flags and the worker loop.
type Scheduler struct {
	process Job
	render  Job

	processReady chan struct{}
	renderReady  chan struct{}

	processCoalesced *fault.Counter
	renderCoalesced  *fault.Counter
}

// New creates a scheduler for the two jobs. The render job starts ready so
// the first frame is shown without waiting for data.
func New(process, render Job, set *fault.Set) (*Scheduler, error) {
	if process == nil || render == nil {
		return nil, fmt.Errorf("%w: nil job", ErrConfig)
	}
	s := &Scheduler{
		process:          process,
		render:           render,
		processReady:     make(chan struct{}, 1),
		renderReady:      make(chan struct{}, 1),
		processCoalesced: set.Get(fault.ProcessCoalesce),
		renderCoalesced:  set.Get(fault.RenderCoalesce),
	}
	s.SignalRender()
	return s, nil
}

// SignalProcess marks the process job ready.
func (s *Scheduler) SignalProcess() {
	signal(s.processReady, s.processCoalesced)
}

// SignalRender marks the render job ready.
func (s *Scheduler) SignalRender() {
	signal(s.renderReady, s.renderCoalesced)
}

func signal(ch chan struct{}, coalesced *fault.Counter) {
	select {
	case ch <- struct{}{}:
	default:
		coalesced.Increment()
	}
}

// Run executes ready jobs until ctx is done or a job fails. A job that has
// started always runs to completion.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		// Drain pending processing before rendering.
		select {
		case <-s.processReady:
			if err := s.runProcess(); err != nil {
				return err
			}
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.processReady:
			if err := s.runProcess(); err != nil {
				return err
			}
		case <-s.renderReady:
			if err := s.render(); err != nil {
				return fmt.Errorf("render job: %w", err)
			}
		}
	}
}

func (s *Scheduler) runProcess() error {
	if err := s.process(); err != nil {
		return fmt.Errorf("process job: %w", err)
	}
	// A render already pending will show this row too.
	select {
	case s.renderReady <- struct{}{}:
	default:
	}
	return nil
}
