// SPDX-License-Identifier: MIT
package display

import (
	"encoding/binary"
	"fmt"
)

// Palette maps L8 indices to ARGB8888 colors, like the controller's color
// lookup table.
type Palette [256]uint32

// Grayscale returns an opaque black to white ramp.
func Grayscale() *Palette {
	var p Palette
	for i := range p {
		v := uint32(i)
		p[i] = 0xFF000000 | v<<16 | v<<8 | v
	}
	return &p
}

// Heat returns an opaque ramp through black, blue, red, yellow and white.
func Heat() *Palette {
	stops := [...]uint32{0x000000, 0x0000C0, 0xC00000, 0xFFE000, 0xFFFFFF}
	var p Palette
	seg := 255.0 / float64(len(stops)-1)
	for i := range p {
		k := min(int(float64(i)/seg), len(stops)-2)
		t := (float64(i) - float64(k)*seg) / seg
		p[i] = 0xFF000000 | lerpRGB(stops[k], stops[k+1], t)
	}
	return &p
}

func lerpRGB(a, b uint32, t float64) uint32 {
	var out uint32
	for shift := 0; shift <= 16; shift += 8 {
		ca := float64(a >> shift & 0xFF)
		cb := float64(b >> shift & 0xFF)
		out |= uint32(ca+(cb-ca)*t+0.5) << shift
	}
	return out
}

// PutPixel stores an ARGB8888 color at pixel index i of an ARGB8888 buffer.
func PutPixel(pix []byte, i int, argb uint32) {
	binary.LittleEndian.PutUint32(pix[i*4:], argb)
}

// Pixel loads the ARGB8888 color at pixel index i.
func Pixel(pix []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(pix[i*4:])
}

// Flatten blends the foreground over the palette-expanded background into
// dst as RGBA bytes, the layout image.RGBA uses.
func Flatten(dst []byte, bg, fg *Buffer, pal *Palette) error {
	n := len(bg.Pix)
	if len(fg.Pix) != n*4 || len(dst) != n*4 {
		return fmt.Errorf("%w: flatten %d pixels into %d bytes with a %d byte foreground",
			ErrConfig, n, len(dst), len(fg.Pix))
	}
	for i, idx := range bg.Pix {
		base := pal[idx]
		over := Pixel(fg.Pix, i)
		a := over >> 24
		o := dst[i*4 : i*4+4 : i*4+4]
		for c, shift := range [3]uint{16, 8, 0} {
			b := base >> shift & 0xFF
			f := over >> shift & 0xFF
			o[c] = byte((f*a + b*(255-a) + 127) / 255)
		}
		o[3] = 0xFF
	}
	return nil
}
