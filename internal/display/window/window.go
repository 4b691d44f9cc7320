// SPDX-License-Identifier: MIT
//go:build gui

// Package window shows the panel in a desktop window. Each ebiten tick is
// one vertical blanking, and the scanned-out layers are blended into the
// window image.
package window

import (
	"context"

	"github.com/hajimehoshi/ebiten/v2"

	"panadapter/internal/display"
	"panadapter/pkg/build"
)

// Window drives a Panel from the ebiten game loop. Run must be called from
// the main goroutine.
type Window struct {
	panel  *display.Panel
	pal    *display.Palette
	width  int
	height int
	scale  int
	ctx    context.Context

	rgba []byte
	img  *ebiten.Image
}

// New creates a window for a w×h panel. The panel must have been created
// with the window as its sink, see Sink.
func New(w, h, scale int, pal *display.Palette) *Window {
	if scale <= 0 {
		scale = 2
	}
	if pal == nil {
		pal = display.Heat()
	}
	return &Window{
		pal:    pal,
		width:  w,
		height: h,
		scale:  scale,
		rgba:   make([]byte, w*h*4),
	}
}

// Sink returns the scan-out target to pass to display.NewPanel.
func (w *Window) Sink() display.Scanout {
	return display.ScanoutFunc(w.scanout)
}

// Run opens the window and refreshes panel until ctx is done or the window
// is closed.
func (w *Window) Run(ctx context.Context, panel *display.Panel, hz int) error {
	w.panel = panel
	w.ctx = ctx
	if hz <= 0 {
		hz = display.DefaultRefresh
	}
	ebiten.SetWindowTitle("panadapter (" + build.Short() + ")")
	ebiten.SetWindowSize(w.width*w.scale, w.height*w.scale)
	ebiten.SetTPS(hz)
	return ebiten.RunGame(w)
}

func (w *Window) scanout(bg, fg *display.Buffer) {
	// Sizes were checked when the swap was built.
	_ = display.Flatten(w.rgba, bg, fg, w.pal)
}

func (w *Window) Update() error {
	if w.ctx.Err() != nil {
		return ebiten.Termination
	}
	w.panel.Vblank()
	return nil
}

func (w *Window) Draw(screen *ebiten.Image) {
	if w.img == nil {
		w.img = ebiten.NewImage(w.width, w.height)
	}
	w.img.WritePixels(w.rgba)
	screen.DrawImage(w.img, nil)
}

func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	return w.width, w.height
}
