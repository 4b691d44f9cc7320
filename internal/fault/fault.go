// SPDX-License-Identifier: MIT
/*
Package fault holds the pipeline's failure plumbing: named event counters for
the faults that are absorbed (timing slips, lock-free races) and the Reporter
used for the ones that are not (invariant violations, capture errors).

Both are injected into every component at construction. Counters and
reporters are reachable from interrupt context: Increment is a single atomic
add and Reporter implementations must not allocate before deciding to halt.
*/
package fault

import (
	"errors"
	"fmt"
	"sync/atomic"

	applog "panadapter/internal/log"
)

// ErrInvariant marks a violated invariant reported through a Reporter.
var ErrInvariant = errors.New("invariant violated")

// Reporter receives unrecoverable faults. Fatal is expected not to return
// in production; callers still return immediately after calling it.
type Reporter interface {
	Fatal(where string, err error)
}

// Default logs the fault and exits the process.
var Default Reporter = exitReporter{}

type exitReporter struct{}

func (exitReporter) Fatal(where string, err error) {
	applog.For("fault").Fatalf("%s: %v", where, err)
}

// Recorder is a Reporter that keeps the first fault instead of halting. Tests
// use it to observe fatal paths.
type Recorder struct {
	count atomic.Uint32
	first atomic.Pointer[Fault]
}

// Fault is one recorded fatal report.
type Fault struct {
	Where string
	Err   error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %v", f.Where, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

func (r *Recorder) Fatal(where string, err error) {
	r.count.Add(1)
	r.first.CompareAndSwap(nil, &Fault{Where: where, Err: err})
}

// Count returns how many faults were reported.
func (r *Recorder) Count() int { return int(r.count.Load()) }

// First returns the first reported fault, or nil.
func (r *Recorder) First() *Fault { return r.first.Load() }

var _ Reporter = (*Recorder)(nil)
