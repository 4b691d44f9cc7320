// SPDX-License-Identifier: MIT
/*
Package waterfall keeps the scrolling history of spectrum rows.

The W×H byte grid is a ring of H rows. Shift moves the cursor up one row
(wrapping from the first row to the last) and the row under the cursor is
the one being written. Render reproduces the history newest-first in a
same-sized target with two bulk copies; rows never move inside the ring.
*/
package waterfall

import (
	"errors"
	"fmt"

	"panadapter/internal/transfer"
)

var ErrConfig = errors.New("waterfall: invalid configuration")

// Mover is the bulk transfer primitive rows are copied with.
type Mover interface {
	Copy(dst, src []byte, words int) error
	Fill(dst []byte, value uint32, words int) error
}

// Buffer is the ring. It is owned by the worker context.
type Buffer struct {
	mv     Mover
	width  int
	height int
	pix    []byte
	cursor int
}

// New allocates a zeroed w×h ring. Rows are moved as whole words, so w must
// be a multiple of the word size.
func New(mv Mover, w, h int) (*Buffer, error) {
	if mv == nil {
		return nil, fmt.Errorf("%w: nil mover", ErrConfig)
	}
	if w <= 0 || h <= 0 || w%transfer.WordSize != 0 {
		return nil, fmt.Errorf("%w: %dx%d, width must be a positive multiple of %d",
			ErrConfig, w, h, transfer.WordSize)
	}
	return &Buffer{
		mv:     mv,
		width:  w,
		height: h,
		pix:    make([]byte, w*h),
	}, nil
}

func (b *Buffer) Width() int  { return b.width }
func (b *Buffer) Height() int { return b.height }

// Cursor returns the index of the row being written, always in [0, H).
func (b *Buffer) Cursor() int { return b.cursor }

// Shift exposes a fresh row above the previous one.
func (b *Buffer) Shift() {
	if b.cursor <= 0 {
		b.cursor = b.height
	}
	b.cursor--
}

// Set writes one pixel of the current row.
func (b *Buffer) Set(col int, v uint8) {
	b.pix[b.cursor*b.width+col] = v
}

// Row returns the current row for bulk writes.
func (b *Buffer) Row() []byte {
	off := b.cursor * b.width
	return b.pix[off : off+b.width]
}

// Render copies rows [cursor, H) to the top of target and rows [0, cursor)
// beneath them, so target row 0 is the newest.
func (b *Buffer) Render(target []byte) error {
	if len(target) != len(b.pix) {
		return fmt.Errorf("%w: target of %d bytes, want %d", ErrConfig, len(target), len(b.pix))
	}
	if err := b.copyLines(target, b.cursor, 0, b.height-b.cursor); err != nil {
		return err
	}
	return b.copyLines(target, 0, b.height-b.cursor, b.cursor)
}

func (b *Buffer) copyLines(target []byte, srcLine, dstLine, lines int) error {
	if lines <= 0 {
		return nil
	}
	src := b.pix[srcLine*b.width:]
	dst := target[dstLine*b.width:]
	words := lines * b.width / transfer.WordSize
	if err := b.mv.Copy(dst, src, words); err != nil {
		return fmt.Errorf("failed to copy waterfall rows %d..%d: %w", srcLine, srcLine+lines-1, err)
	}
	return nil
}

// Clear zeroes the whole ring and resets the cursor.
func (b *Buffer) Clear() error {
	if err := b.mv.Fill(b.pix, 0, len(b.pix)/transfer.WordSize); err != nil {
		return fmt.Errorf("failed to clear waterfall: %w", err)
	}
	b.cursor = 0
	return nil
}
