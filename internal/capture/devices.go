// SPDX-License-Identifier: MIT
package capture

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/gordonklaus/portaudio"
)

// DefaultDevice selects the system default input device.
const DefaultDevice = -1

// Device describes a host audio device.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
}

// IQCapable reports whether the device can deliver a stereo I/Q pair.
func (d Device) IQCapable() bool { return d.MaxInputChannels >= iqChannels }

// paDevicesFunc is swapped by tests.
var paDevicesFunc = portaudio.Devices

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// InputDevice retrieves the input device for deviceID, or the system
// default input device for DefaultDevice.
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID == DefaultDevice {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	devices, err := paDevicesFunc()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	return devices[deviceID], nil
}

// HostDevices returns all devices known to PortAudio, indexed by ID.
func HostDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
		}
	}
	return devices, nil
}

// ListDevices writes a description of every device to w, marking those that
// can capture I/Q.
func ListDevices(w io.Writer) error {
	devices, err := HostDevices()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Audio Devices\n\n")
	for _, d := range devices {
		kind := ""
		switch {
		case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
			kind = "Input/Output"
		case d.MaxInputChannels > 0:
			kind = "Input"
		case d.MaxOutputChannels > 0:
			kind = "Output"
		}
		iq := ""
		if d.IQCapable() {
			iq = " [I/Q]"
		}

		fmt.Fprintf(w, "[%d] %s (%s)%s\n", d.ID, d.Name, kind, iq)
		fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n", d.MaxInputChannels, d.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %s Hz\n", humanize.Comma(int64(d.DefaultSampleRate)))
		fmt.Fprintln(w)
	}
	return nil
}
