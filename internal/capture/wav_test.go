// SPDX-License-Identifier: MIT
package capture

import (
	"context"
	"errors"
	"io"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSampleRate = 48000

func recordBlocks(t *testing.T, path string, blocks ...[]complex128) {
	t.Helper()
	rec := NewWAVRecorder(testSampleRate, testBlockSize)
	if err := rec.Start(path); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, b := range blocks {
		if err := rec.Write(b); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := rec.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func rampBlock(base float64) []complex128 {
	b := make([]complex128, testBlockSize)
	for i := range b {
		b[i] = complex(base+float64(i), -base-float64(i))
	}
	return b
}

func TestRecordThenReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iq.wav")
	recordBlocks(t, path, rampBlock(10), rampBlock(500))

	src := NewWAVSource(path, false)
	if err := src.open(testBlockSize); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.file.Close()

	region, _ := NewRegion(testBlockSize)
	for _, base := range []int16{10, 500} {
		if err := src.fill(region.Lower()); err != nil {
			t.Fatalf("fill: %v", err)
		}
		for i := range testBlockSize {
			re, im := region.Lower().Load(i)
			if re != base+int16(i) || im != -base-int16(i) {
				t.Fatalf("block %d sample %d = (%d, %d)", base, i, re, im)
			}
		}
	}
	if err := src.fill(region.Lower()); !errors.Is(err, io.EOF) {
		t.Errorf("fill past end = %v, want io.EOF", err)
	}
}

func TestReplayLoopsAndPadsShortBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.wav")
	recordBlocks(t, path, rampBlock(7)[:testBlockSize/2])

	src := NewWAVSource(path, true)
	if err := src.open(testBlockSize); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.file.Close()

	region, _ := NewRegion(testBlockSize)
	for pass := range 3 {
		if err := src.fill(region.Upper()); err != nil {
			t.Fatalf("pass %d: fill: %v", pass, err)
		}
		if re, _ := region.Upper().Load(0); re != 7 {
			t.Errorf("pass %d: first sample = %d, want 7", pass, re)
		}
		if re, im := region.Upper().Load(testBlockSize - 1); re != 0 || im != 0 {
			t.Errorf("pass %d: tail not silent: (%d, %d)", pass, re, im)
		}
	}
}

func TestRecorderClampsSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clamp.wav")
	block := make([]complex128, testBlockSize)
	block[0] = complex(1e9, -1e9)
	recordBlocks(t, path, block)

	src := NewWAVSource(path, false)
	if err := src.open(testBlockSize); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.file.Close()
	region, _ := NewRegion(testBlockSize)
	if err := src.fill(region.Lower()); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if re, im := region.Lower().Load(0); re != math.MaxInt16 || im != math.MinInt16 {
		t.Errorf("clamped sample = (%d, %d)", re, im)
	}
}

func TestRecorderErrorCases(t *testing.T) {
	dir := t.TempDir()

	t.Run("already recording", func(t *testing.T) {
		rec := NewWAVRecorder(testSampleRate, testBlockSize)
		if err := rec.Start(filepath.Join(dir, "a.wav")); err != nil {
			t.Fatalf("Start: %v", err)
		}
		defer rec.Stop()
		err := rec.Start(filepath.Join(dir, "b.wav"))
		if err == nil || !strings.Contains(err.Error(), "already recording") {
			t.Errorf("second Start = %v", err)
		}
	})

	t.Run("invalid path", func(t *testing.T) {
		rec := NewWAVRecorder(testSampleRate, testBlockSize)
		if err := rec.Start("/nonexistent/path/file.wav"); err == nil {
			t.Error("Start succeeded on invalid path")
		}
		if rec.Recording() {
			t.Error("recorder left in recording state")
		}
	})

	t.Run("oversized block", func(t *testing.T) {
		rec := NewWAVRecorder(testSampleRate, testBlockSize)
		if err := rec.Start(filepath.Join(dir, "c.wav")); err != nil {
			t.Fatalf("Start: %v", err)
		}
		defer rec.Stop()
		if err := rec.Write(make([]complex128, testBlockSize+1)); err == nil {
			t.Error("Write accepted oversized block")
		}
	})

	t.Run("idle", func(t *testing.T) {
		rec := NewWAVRecorder(testSampleRate, testBlockSize)
		if err := rec.Write(rampBlock(0)); err != nil {
			t.Errorf("Write while idle = %v", err)
		}
		if err := rec.Stop(); err != nil {
			t.Errorf("Stop while idle = %v", err)
		}
	})
}

func TestWAVSourceRejectsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.wav")
	if err := os.WriteFile(garbage, []byte("not a wav file at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{garbage, filepath.Join(dir, "missing.wav")} {
		src := NewWAVSource(path, false)
		if err := src.open(testBlockSize); err == nil {
			src.file.Close()
			t.Errorf("open(%s) succeeded", filepath.Base(path))
		}
	}
}

type eventLog struct {
	halves chan Half
	errs   chan error
}

func newEventLog() *eventLog {
	return &eventLog{halves: make(chan Half, 64), errs: make(chan error, 1)}
}

func (e *eventLog) HalfComplete()   { e.halves <- Lower }
func (e *eventLog) FullComplete()   { e.halves <- Upper }
func (e *eventLog) Error(err error) { e.errs <- err }

func TestWAVSourceRunAlternatesHalvesUntilEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.wav")
	recordBlocks(t, path, rampBlock(1), rampBlock(2), rampBlock(3))

	region, _ := NewRegion(testBlockSize)
	ev := newEventLog()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := NewWAVSource(path, false).Run(ctx, region, ev); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(ev.halves)

	var got []Half
	for h := range ev.halves {
		got = append(got, h)
	}
	want := []Half{Lower, Upper, Lower}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestToneFillKeepsPhaseAndAmplitude(t *testing.T) {
	const bin = 5
	tone := NewToneSource(testSampleRate, float64(bin*testSampleRate)/testBlockSize)
	region, _ := NewRegion(testBlockSize)

	tone.Fill(region.Lower())
	tone.Fill(region.Upper())

	want := 0.5 * math.MaxInt16
	lower, upper := region.Lower(), region.Upper()
	for i := range testBlockSize {
		lre, lim := lower.Load(i)
		ure, uim := upper.Load(i)
		for _, s := range []complex128{
			complex(float64(lre), float64(lim)),
			complex(float64(ure), float64(uim)),
		} {
			if math.Abs(cmplx.Abs(s)-want) > 1.5 {
				t.Fatalf("sample %d magnitude %.1f, want %.1f", i, cmplx.Abs(s), want)
			}
		}
		// Whole cycles per block: the second block repeats the first.
		if d := math.Hypot(float64(ure-lre), float64(uim-lim)); d > 2 {
			t.Fatalf("phase discontinuity at %d: %.1f", i, d)
		}
	}
}

func TestToneRunStopsWithContext(t *testing.T) {
	region, _ := NewRegion(testBlockSize)
	ev := newEventLog()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- NewToneSource(testSampleRate, 1000).Run(ctx, region, ev) }()

	<-ev.halves
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
