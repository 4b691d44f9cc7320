// SPDX-License-Identifier: MIT
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Source is a capture engine. Run fills the region's halves alternately,
// raising the matching event after each, until ctx is done or the source is
// exhausted. A source failure is raised through ev.Error and returned.
type Source interface {
	Run(ctx context.Context, region *Region, ev Events) error
}

// SourceKind names the available capture engines.
const (
	SourcePortAudio = "portaudio"
	SourceWAV       = "wav"
	SourceTone      = "tone"
)

// fillFunc writes the next block of samples into b. io.EOF ends the source.
type fillFunc func(b Block) error

// runPaced drives fill at the rate a real engine clocked at sampleRate
// would complete halves.
func runPaced(ctx context.Context, region *Region, ev Events, sampleRate int, fill fillFunc) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	period := time.Duration(region.Len()) * time.Second / time.Duration(sampleRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	half := Lower
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := fill(region.Block(half)); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			ev.Error(err)
			return err
		}
		raise(ev, half)
		half = half.Other()
	}
}

func raise(ev Events, h Half) {
	if h == Lower {
		ev.HalfComplete()
	} else {
		ev.FullComplete()
	}
}
