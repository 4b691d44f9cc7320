// SPDX-License-Identifier: MIT
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// IQ files are stereo 16 bit PCM, I on the left channel and Q on the right.
const (
	iqChannels = 2
	iqBitDepth = 16
)

// WAVSource replays an IQ recording at its own sample rate.
type WAVSource struct {
	Path string
	Loop bool

	file *os.File
	dec  *wav.Decoder
	buf  *audio.IntBuffer
}

// NewWAVSource returns a source for path. The file is opened by Run.
func NewWAVSource(path string, loop bool) *WAVSource {
	return &WAVSource{Path: path, Loop: loop}
}

func (s *WAVSource) Run(ctx context.Context, region *Region, ev Events) error {
	if err := s.open(region.Len()); err != nil {
		return err
	}
	defer s.file.Close()

	return runPaced(ctx, region, ev, int(s.dec.SampleRate), s.fill)
}

// open validates the file and sizes the decode buffer for blocks of n samples.
func (s *WAVSource) open(n int) error {
	file, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("failed to open IQ recording: %w", err)
	}
	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		file.Close()
		return fmt.Errorf("%s: not a valid WAV file", s.Path)
	}
	if dec.NumChans != iqChannels || dec.BitDepth != iqBitDepth {
		file.Close()
		return fmt.Errorf("%s: need %d channel %d bit PCM, got %d channel %d bit",
			s.Path, iqChannels, iqBitDepth, dec.NumChans, dec.BitDepth)
	}
	s.file = file
	s.dec = dec
	s.buf = &audio.IntBuffer{
		Format: dec.Format(),
		Data:   make([]int, n*iqChannels),
	}
	return nil
}

func (s *WAVSource) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind IQ recording: %w", err)
	}
	s.dec = wav.NewDecoder(s.file)
	if !s.dec.IsValidFile() {
		return fmt.Errorf("%s: not a valid WAV file", s.Path)
	}
	return nil
}

func (s *WAVSource) fill(b Block) error {
	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode IQ recording: %w", err)
	}
	if n == 0 {
		if !s.Loop {
			return io.EOF
		}
		if err := s.rewind(); err != nil {
			return err
		}
		if n, err = s.dec.PCMBuffer(s.buf); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to decode IQ recording: %w", err)
		}
		if n == 0 {
			return io.EOF
		}
	}

	// A short final read leaves the tail of the block silent.
	frames := n / iqChannels
	for i := range b.Len() {
		if i < frames {
			b.Store(i, int16(s.buf.Data[2*i]), int16(s.buf.Data[2*i+1]))
		} else {
			b.Store(i, 0, 0)
		}
	}
	return nil
}

// WAVRecorder writes consumed blocks to an IQ WAV file. Write is called from
// the worker context, Start and Stop from control code.
type WAVRecorder struct {
	sampleRate int
	blockSize  int

	recording  atomic.Bool
	outputFile *os.File
	encoder    *wav.Encoder
	sampleBuf  *audio.IntBuffer
}

func NewWAVRecorder(sampleRate, blockSize int) *WAVRecorder {
	return &WAVRecorder{sampleRate: sampleRate, blockSize: blockSize}
}

// Start creates filename and begins recording.
func (r *WAVRecorder) Start(filename string) error {
	if r.recording.Load() {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	r.outputFile = file
	r.encoder = wav.NewEncoder(file, r.sampleRate, iqBitDepth, iqChannels, 1)
	r.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: iqChannels,
			SampleRate:  r.sampleRate,
		},
		Data:           make([]int, r.blockSize*iqChannels),
		SourceBitDepth: iqBitDepth,
	}

	r.recording.Store(true)
	return nil
}

// Recording reports whether Start has been called without a matching Stop.
func (r *WAVRecorder) Recording() bool { return r.recording.Load() }

// Write appends one block. Samples are clamped to the 16 bit range.
func (r *WAVRecorder) Write(block []complex128) error {
	if !r.recording.Load() {
		return nil
	}
	if len(block) > r.blockSize {
		return fmt.Errorf("block of %d samples exceeds recorder size %d", len(block), r.blockSize)
	}

	r.sampleBuf.Data = r.sampleBuf.Data[:len(block)*iqChannels]
	for i, s := range block {
		r.sampleBuf.Data[2*i] = clamp16(real(s))
		r.sampleBuf.Data[2*i+1] = clamp16(imag(s))
	}
	if err := r.encoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}
	return nil
}

// Stop finalizes the WAV header and closes the file.
func (r *WAVRecorder) Stop() error {
	if !r.recording.Load() {
		return nil
	}
	r.recording.Store(false)

	if r.encoder != nil {
		if err := r.encoder.Close(); err != nil {
			return fmt.Errorf("failed to finalize recording: %w", err)
		}
		r.encoder = nil
	}
	if r.outputFile != nil {
		if err := r.outputFile.Close(); err != nil {
			return err
		}
		r.outputFile = nil
	}
	return nil
}

func clamp16(v float64) int {
	return int(max(math.MinInt16, min(math.MaxInt16, math.Round(v))))
}

var _ Source = (*WAVSource)(nil)
