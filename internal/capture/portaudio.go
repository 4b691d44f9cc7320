// SPDX-License-Identifier: MIT
package capture

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/gordonklaus/portaudio"
)

// PortAudioSource captures a stereo line input as I/Q, left channel I and
// right channel Q. Every PortAudio buffer is exactly one region half, so the
// stream callback plays the role of the DMA half/full interrupt.
//
// Initialize must have been called before Run.
type PortAudioSource struct {
	DeviceID   int
	SampleRate float64
	LowLatency bool

	region *Region
	ev     Events
	half   Half
}

func NewPortAudioSource(deviceID int, sampleRate float64, lowLatency bool) *PortAudioSource {
	return &PortAudioSource{DeviceID: deviceID, SampleRate: sampleRate, LowLatency: lowLatency}
}

func (s *PortAudioSource) Run(ctx context.Context, region *Region, ev Events) error {
	device, err := InputDevice(s.DeviceID)
	if err != nil {
		return err
	}
	if device.MaxInputChannels < iqChannels {
		return fmt.Errorf("device %q has %d input channels, need %d",
			device.Name, device.MaxInputChannels, iqChannels)
	}

	s.region, s.ev, s.half = region, ev, Lower
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: iqChannels,
			Latency:  s.Latency(device),
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		SampleRate:      s.SampleRate,
		FramesPerBuffer: region.Len(),
	}

	stream, err := portaudio.OpenStream(params, s.process)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	<-ctx.Done()

	if err := stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop input stream: %w", err)
	}
	return nil
}

// process is the stream callback. It runs on PortAudio's thread and only
// stores samples and raises events.
func (s *PortAudioSource) process(in []int16) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	b := s.region.Block(s.half)
	for i := range min(b.Len(), len(in)/iqChannels) {
		b.Store(i, in[2*i], in[2*i+1])
	}
	raise(s.ev, s.half)
	s.half = s.half.Other()
}

// Latency returns the input latency Run would request for device.
func (s *PortAudioSource) Latency(device *portaudio.DeviceInfo) time.Duration {
	if s.LowLatency {
		return device.DefaultLowInputLatency
	}
	return device.DefaultHighInputLatency
}

var _ Source = (*PortAudioSource)(nil)
