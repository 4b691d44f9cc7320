// SPDX-License-Identifier: MIT
package display

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"panadapter/internal/fault"
)

const (
	testW = 8
	testH = 4
)

func newTestSwap(t *testing.T, sink Scanout, opts ...SwapOption) (*Swap, *Panel, *fault.Set) {
	t.Helper()
	bg, err := NewLayer(L8, testW, testH, 0)
	if err != nil {
		t.Fatalf("NewLayer(L8): %v", err)
	}
	fg, err := NewLayer(ARGB8888, testW, testH, 3)
	if err != nil {
		t.Fatalf("NewLayer(ARGB8888): %v", err)
	}
	set := fault.NewSet()
	panel := NewPanel(DefaultRefresh, sink)
	s, err := NewSwap(panel, bg, fg, set, opts...)
	if err != nil {
		t.Fatalf("NewSwap: %v", err)
	}
	panel.Attach(s)
	s.Start()
	panel.Vblank()
	return s, panel, set
}

func checkDistinct(t *testing.T, tb *TripleBuffer) {
	t.Helper()
	f, n, b := tb.Roles()
	if f == n || f == b || n == b {
		t.Fatalf("roles share a buffer: front %d next %d back %d", f.ID, n.ID, b.ID)
	}
}

func TestTransitionsVisitEveryPermutation(t *testing.T) {
	a, b, c := &Buffer{ID: 0, Pix: make([]byte, 4)}, &Buffer{ID: 1, Pix: make([]byte, 4)}, &Buffer{ID: 2, Pix: make([]byte, 4)}
	tb, err := NewTripleBuffer(L8, a, b, c)
	if err != nil {
		t.Fatalf("NewTripleBuffer: %v", err)
	}
	seen := map[[3]int]bool{}
	for i := range 24 {
		checkDistinct(t, tb)
		seen[[3]int{tb.Front().ID, tb.NextFront().ID, tb.Back().ID}] = true
		if i%2 == 0 {
			tb.FlipBack()
		} else {
			tb.FlipFront()
		}
	}
	if len(seen) != 6 {
		t.Errorf("visited %d role assignments, want 6", len(seen))
	}
}

func TestFlipBackFlipFront(t *testing.T) {
	tb, _ := NewLayer(L8, testW, testH, 0)
	front, next, back := tb.Front(), tb.NextFront(), tb.Back()

	tb.FlipBack()
	if tb.NextFront() != back || tb.Back() != next || tb.Front() != front {
		t.Fatalf("FlipBack: got %d/%d/%d", tb.Front().ID, tb.NextFront().ID, tb.Back().ID)
	}
	tb.FlipFront()
	if tb.Front() != back || tb.NextFront() != front || tb.Back() != next {
		t.Fatalf("FlipFront: got %d/%d/%d", tb.Front().ID, tb.NextFront().ID, tb.Back().ID)
	}
}

func TestNewTripleBufferSizeMismatch(t *testing.T) {
	a := &Buffer{Pix: make([]byte, 8)}
	b := &Buffer{Pix: make([]byte, 8)}
	c := &Buffer{Pix: make([]byte, 4)}
	if _, err := NewTripleBuffer(L8, a, b, c); !errors.Is(err, ErrConfig) {
		t.Errorf("error = %v, want ErrConfig", err)
	}
	if _, err := NewTripleBuffer(L8, a, b, nil); !errors.Is(err, ErrConfig) {
		t.Errorf("nil buffer error = %v, want ErrConfig", err)
	}
	if _, err := NewLayer(L8, 0, 4, 0); !errors.Is(err, ErrConfig) {
		t.Errorf("empty layer error = %v, want ErrConfig", err)
	}
}

func TestNewSwapValidation(t *testing.T) {
	l8, _ := NewLayer(L8, testW, testH, 0)
	argb, _ := NewLayer(ARGB8888, testW, testH, 3)
	small, _ := NewLayer(ARGB8888, testW, testH/2, 6)
	panel := NewPanel(0, nil)
	set := fault.NewSet()

	tests := []struct {
		name   string
		bg, fg *TripleBuffer
	}{
		{"swapped formats", argb, l8},
		{"size mismatch", l8, small},
		{"nil layer", l8, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSwap(panel, tt.bg, tt.fg, set); !errors.Is(err, ErrConfig) {
				t.Errorf("error = %v, want ErrConfig", err)
			}
		})
	}
}

func TestStartShowsInitialFront(t *testing.T) {
	s, panel, _ := newTestSwap(t, nil)
	for layer := range 2 {
		if got, want := panel.Active(layer), s.Layer(layer).Front(); got != want {
			t.Errorf("layer %d active %d, want front %d", layer, got.ID, want.ID)
		}
	}
	if s.Pending() {
		t.Error("pending after Start")
	}
}

func TestFlipThenReloadShowsComposedBuffer(t *testing.T) {
	s, panel, set := newTestSwap(t, nil)

	var composed [2]*Buffer
	for layer := range 2 {
		composed[layer] = s.Layer(layer).Back()
		checkDistinct(t, s.Layer(layer))
	}
	composed[Background].Pix[0] = 0x42

	s.Flip()
	if !s.Pending() {
		t.Fatal("not pending after Flip")
	}
	for layer := range 2 {
		if s.Layer(layer).NextFront() != composed[layer] {
			t.Fatalf("layer %d composed buffer is not NextFront", layer)
		}
		if s.Layer(layer).Front() == composed[layer] {
			t.Fatalf("layer %d composed buffer promoted before reload", layer)
		}
	}

	panel.Vblank()
	if s.Pending() {
		t.Fatal("still pending after reload")
	}
	for layer := range 2 {
		tb := s.Layer(layer)
		checkDistinct(t, tb)
		if tb.Front() != composed[layer] {
			t.Errorf("layer %d front %d, want composed %d", layer, tb.Front().ID, composed[layer].ID)
		}
		if panel.Active(layer) != composed[layer] {
			t.Errorf("layer %d scanning %d, want composed %d", layer, panel.Active(layer).ID, composed[layer].ID)
		}
		if tb.Back() == tb.Front() {
			t.Errorf("layer %d back aliases front", layer)
		}
	}
	if panel.Active(Background).Pix[0] != 0x42 {
		t.Error("scanned out buffer lost the composed pixel")
	}

	// A reload without a pending flip changes nothing.
	before := [3]*Buffer{s.Layer(0).Front(), s.Layer(0).NextFront(), s.Layer(0).Back()}
	s.HandleReload()
	panel.Vblank()
	after := [3]*Buffer{s.Layer(0).Front(), s.Layer(0).NextFront(), s.Layer(0).Back()}
	if before != after {
		t.Error("reload without pending flip changed roles")
	}
	if n := set.Get(fault.DisplayUnderrun).Value(); n != 0 {
		t.Errorf("underruns = %d", n)
	}
}

func TestFlipBeforeReloadReplacesPendingFrame(t *testing.T) {
	s, panel, _ := newTestSwap(t, nil)
	front := s.Layer(0).Front()

	s.Flip()
	second := s.Layer(0).Back()
	s.Flip()
	if s.Layer(0).NextFront() != second {
		t.Fatal("second flip did not replace the pending frame")
	}
	if s.Layer(0).Front() != front {
		t.Fatal("front changed before reload")
	}
	panel.Vblank()
	if s.Layer(0).Front() != second || panel.Active(0) != second {
		t.Errorf("front %d active %d, want %d", s.Layer(0).Front().ID, panel.Active(0).ID, second.ID)
	}
}

// A reload that completes between RequestReload and EnableReloadIRQ is
// delivered when the interrupt is enabled.
type racingPanel struct{ *Panel }

func (r racingPanel) EnableReloadIRQ() {
	r.Vblank()
	r.Panel.EnableReloadIRQ()
}

func TestReloadDuringFlipIsDelivered(t *testing.T) {
	bg, _ := NewLayer(L8, testW, testH, 0)
	fg, _ := NewLayer(ARGB8888, testW, testH, 3)
	panel := NewPanel(0, nil)
	s, err := NewSwap(racingPanel{panel}, bg, fg, fault.NewSet())
	if err != nil {
		t.Fatalf("NewSwap: %v", err)
	}
	panel.Attach(s)
	s.Start()

	composed := bg.Back()
	s.Flip()
	if s.Pending() {
		t.Fatal("reload latched during Flip was not delivered")
	}
	if bg.Front() != composed || panel.Active(0) != composed {
		t.Errorf("front %d active %d, want %d", bg.Front().ID, panel.Active(0).ID, composed.ID)
	}
}

// interruptedPanel runs one vertical blanking inside the next call to the
// armed register write.
type interruptedPanel struct {
	*Panel
	onDisable, onSetAddress bool
}

func (r *interruptedPanel) DisableReloadIRQ() {
	r.Panel.DisableReloadIRQ()
	if r.onDisable {
		r.onDisable = false
		r.Vblank()
	}
}

func (r *interruptedPanel) SetAddress(layer int, b *Buffer) {
	if r.onSetAddress {
		r.onSetAddress = false
		r.Vblank()
	}
	r.Panel.SetAddress(layer, b)
}

func TestVblankDuringFlipNeverScansBack(t *testing.T) {
	tests := []struct {
		name string
		arm  func(*interruptedPanel)
	}{
		{"after interrupt disabled", func(r *interruptedPanel) { r.onDisable = true }},
		{"during address write", func(r *interruptedPanel) { r.onSetAddress = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bg, _ := NewLayer(L8, testW, testH, 0)
			fg, _ := NewLayer(ARGB8888, testW, testH, 3)
			panel := NewPanel(0, nil)
			ctl := &interruptedPanel{Panel: panel}
			s, err := NewSwap(ctl, bg, fg, fault.NewSet())
			if err != nil {
				t.Fatalf("NewSwap: %v", err)
			}
			panel.Attach(s)
			s.Start()
			panel.Vblank()

			s.Flip()
			tt.arm(ctl)
			s.Flip()
			for layer := range 2 {
				tb := s.Layer(layer)
				checkDistinct(t, tb)
				if panel.Active(layer) == tb.Back() {
					t.Fatalf("layer %d scanning out Back %d", layer, tb.Back().ID)
				}
				if panel.Active(layer) != tb.Front() {
					t.Errorf("layer %d scanning %d, front %d", layer, panel.Active(layer).ID, tb.Front().ID)
				}
			}
			if !s.Pending() {
				t.Fatal("second flip not pending")
			}

			next := bg.NextFront()
			panel.Vblank()
			if s.Pending() {
				t.Fatal("reload after the second flip was not delivered")
			}
			for layer := range 2 {
				tb := s.Layer(layer)
				checkDistinct(t, tb)
				if panel.Active(layer) != tb.Front() {
					t.Errorf("layer %d scanning %d, front %d", layer, panel.Active(layer).ID, tb.Front().ID)
				}
			}
			if bg.Front() != next {
				t.Errorf("front %d, want second frame %d", bg.Front().ID, next.ID)
			}
		})
	}
}

func TestRebindFollowsBack(t *testing.T) {
	var got [2]*Buffer
	s, _, _ := newTestSwap(t, nil, WithRebind(func(bg, fg *Buffer) {
		got = [2]*Buffer{bg, fg}
	}))
	for range 3 {
		s.Flip()
		if got[0] != s.Background() || got[1] != s.Foreground() {
			t.Fatal("rebind did not receive the new Back buffers")
		}
	}
}

func TestScanoutReceivesFront(t *testing.T) {
	var frames int
	var last *Buffer
	sink := ScanoutFunc(func(bg, fg *Buffer) {
		frames++
		last = bg
	})
	s, panel, _ := newTestSwap(t, sink)
	s.Flip()
	panel.Vblank()
	if frames != 2 {
		t.Errorf("frames = %d, want 2", frames)
	}
	if last != s.Layer(0).Front() {
		t.Error("scanout did not receive the front buffer")
	}
}

func TestSlowScanoutCountsUnderrun(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	started := make(chan struct{})
	sink := ScanoutFunc(func(bg, fg *Buffer) {
		once.Do(func() { close(started) })
		<-release
	})
	_, panel, set := newTestSwap(t, nil)
	panel.sink = sink

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- panel.Run(ctx) }()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("scanout never started")
	}
	deadline := time.Now().Add(time.Second)
	for set.Get(fault.DisplayUnderrun).Value() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	close(release)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if set.Get(fault.DisplayUnderrun).Value() == 0 {
		t.Error("no underrun counted for a stalled scanout")
	}
}

func TestConcurrentFlipAndReload(t *testing.T) {
	s, panel, _ := newTestSwap(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ctx.Err() == nil {
			panel.Vblank()
		}
	}()
	for range 2000 {
		for layer := range 2 {
			checkDistinct(t, s.Layer(layer))
		}
		s.Flip()
	}
	cancel()
	<-done
}

func TestFlatten(t *testing.T) {
	bg := &Buffer{Pix: []byte{0, 255, 10}}
	fg := &Buffer{Pix: make([]byte, 12)}
	PutPixel(fg.Pix, 1, 0xFF102030) // opaque
	PutPixel(fg.Pix, 2, 0x00FFFFFF) // transparent
	dst := make([]byte, 12)
	if err := Flatten(dst, bg, fg, Grayscale()); err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	want := []byte{
		0, 0, 0, 0xFF,
		0x10, 0x20, 0x30, 0xFF,
		10, 10, 10, 0xFF,
	}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst = %v, want %v", dst, want)
		}
	}
	if err := Flatten(dst[:4], bg, fg, Grayscale()); !errors.Is(err, ErrConfig) {
		t.Errorf("short dst error = %v, want ErrConfig", err)
	}
}

func TestHeatEndpoints(t *testing.T) {
	p := Heat()
	if p[0] != 0xFF000000 || p[255] != 0xFFFFFFFF {
		t.Errorf("heat ends %08x %08x", p[0], p[255])
	}
	for i, c := range p {
		if c>>24 != 0xFF {
			t.Fatalf("entry %d not opaque: %08x", i, c)
		}
	}
}

func BenchmarkFlipReload(b *testing.B) {
	bg, _ := NewLayer(L8, 480, 272, 0)
	fg, _ := NewLayer(ARGB8888, 480, 272, 3)
	panel := NewPanel(0, nil)
	s, _ := NewSwap(panel, bg, fg, fault.NewSet())
	panel.Attach(s)
	s.Start()
	b.ReportAllocs()
	for b.Loop() {
		s.Flip()
		panel.Vblank()
	}
}
