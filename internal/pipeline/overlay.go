// SPDX-License-Identifier: MIT
package pipeline

import "panadapter/internal/display"

// Overlay draws the foreground layer of a w×h frame into fg. It runs on the
// worker before every flip and must redraw everything it wants shown, since
// fg is one of three rotating buffers.
type Overlay func(fg *display.Buffer, w, h int)

// Frequency grid columns at 5 kHz spacing for 48 kHz capture, centered on
// the tuned frequency before the UI shift is applied.
var DefaultGridColumns = []int{27, 80, 133, 187, 239, 240, 293, 347}

// DefaultUIShift moves the grid onto the tuned frequency, which sits this
// many columns right of the waterfall's zero-frequency column offset.
const DefaultUIShift = 69

const (
	gridColor    = 0xFF333333
	keyWidth     = 8
	menuBarRows  = 14
	menuBarColor = 0xFF000000
)

// GridOverlay draws dashed frequency grid lines at cols+uiShift, a color key
// of pal along the left edge and an empty menu bar along the bottom.
func GridOverlay(cols []int, uiShift int, pal *display.Palette) Overlay {
	return func(fg *display.Buffer, w, h int) {
		pix := fg.Pix
		clear(pix)
		for y := range h {
			if y%6 < 3 {
				continue
			}
			for _, c := range cols {
				if x := c + uiShift; x >= 0 && x < w {
					display.PutPixel(pix, y*w+x, gridColor)
				}
			}
		}
		if pal != nil {
			for y := range h {
				color := uint32(menuBarColor)
				if y < len(pal) {
					color = pal[len(pal)-1-y]
				}
				for x := range min(keyWidth, w) {
					display.PutPixel(pix, y*w+x, color)
				}
			}
		}
		for y := max(0, h-menuBarRows); y < h; y++ {
			for x := range w {
				display.PutPixel(pix, y*w+x, menuBarColor)
			}
		}
	}
}
