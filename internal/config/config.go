// SPDX-License-Identifier: MIT
package config

import (
	"time"

	"panadapter/internal/display"
	"panadapter/internal/pipeline"
	"panadapter/internal/spectrum"
	"panadapter/internal/transfer"
)

// Capture sources.
const (
	SourcePortAudio = "portaudio"
	SourceWAV       = "wav"
	SourceTone      = "tone"
)

// Palettes for the waterfall layer.
const (
	PaletteGray = "gray"
	PaletteHeat = "heat"
)

const (
	MinDeviceID   = -1     // -1 represents the system default device
	MinSampleRate = 8000   // Hz
	MaxSampleRate = 192000 // Hz
	MaxBlockSize  = 8192   // Samples per capture half
)

// Config represents the application configuration, loaded from YAML.
type Config struct {
	Debug    bool           `yaml:"debug"`     // Also sends every row to the logging transport.
	LogLevel string         `yaml:"log_level"` // debug, info, warn, error or fatal.
	Capture  CaptureConfig  `yaml:"capture"`
	Display  DisplayConfig  `yaml:"display"`
	Spectrum SpectrumConfig `yaml:"spectrum"`
	Transfer TransferConfig `yaml:"transfer"`
	Output   OutputConfig   `yaml:"output"`
}

// CaptureConfig selects where I/Q blocks come from.
type CaptureConfig struct {
	Source     string  `yaml:"source"`      // portaudio, wav or tone.
	Device     int     `yaml:"device"`      // PortAudio device index (-1 for default).
	SampleRate float64 `yaml:"sample_rate"` // Complex samples per second.
	BlockSize  int     `yaml:"block_size"`  // Samples per capture half, a power of two.
	LowLatency bool    `yaml:"low_latency"` // Request the device's low input latency.
	WAVPath    string  `yaml:"wav_path"`    // Stereo I/Q recording replayed by the wav source.
	Loop       bool    `yaml:"loop"`        // Rewind the recording when it ends.
	ToneFreq   float64 `yaml:"tone_hz"`     // Offset of the tone source from the centre, may be negative.
	RecordPath string  `yaml:"record_path"` // Record every consumed block to this WAV file.
}

// DisplayConfig is the panel geometry.
type DisplayConfig struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	RefreshHz int    `yaml:"refresh_hz"`
	UIShift   int    `yaml:"ui_shift"` // Columns the grid is moved right to line up with the receiver.
	Palette   string `yaml:"palette"`  // gray or heat.
	Scale     int    `yaml:"scale"`    // Window pixels per panel pixel.
}

// SpectrumConfig is the intensity calibration.
type SpectrumConfig struct {
	Alpha    float32 `yaml:"alpha"`
	Offset   float32 `yaml:"offset"`
	Scale    float32 `yaml:"scale"`
	BinShift int     `yaml:"bin_shift"`
	Window   string  `yaml:"window"`
}

// TransferConfig tunes the transfer engine.
type TransferConfig struct {
	BurstWords  int           `yaml:"burst_words"`
	AlignWords  int           `yaml:"align_words"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

// OutputConfig selects where frames and rows go besides the panel.
type OutputConfig struct {
	HTTPAddr  string `yaml:"http_addr"`  // Serves /ws and /metrics when set.
	UDPTarget string `yaml:"udp_target"` // Sends every row when set.
	TUI       bool   `yaml:"tui"`        // Terminal monitor.
	Window    bool   `yaml:"window"`     // Desktop window, needs the gui build tag.
}

// Default returns the built-in configuration.
func Default() Config {
	sc := spectrum.DefaultConfig()
	return Config{
		LogLevel: "info",
		Capture: CaptureConfig{
			Source:     SourceTone,
			Device:     MinDeviceID,
			SampleRate: 48000,
			BlockSize:  512,
			ToneFreq:   3000,
		},
		Display: DisplayConfig{
			Width:     480,
			Height:    272,
			RefreshHz: display.DefaultRefresh,
			UIShift:   pipeline.DefaultUIShift,
			Palette:   PaletteHeat,
			Scale:     2,
		},
		Spectrum: SpectrumConfig{
			Alpha:    sc.Alpha,
			Offset:   sc.Offset,
			Scale:    sc.Scale,
			BinShift: sc.Shift,
			Window:   spectrum.WindowNone,
		},
		Transfer: TransferConfig{
			BurstWords:  transfer.DefaultBurstWords,
			AlignWords:  transfer.DefaultAlignWords,
			PollTimeout: transfer.DefaultPollTimeout,
		},
	}
}

// Pipeline returns the pipeline geometry and calibration.
func (c *Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		BlockSize: c.Capture.BlockSize,
		Width:     c.Display.Width,
		Height:    c.Display.Height,
		Refresh:   c.Display.RefreshHz,
		Spectrum: spectrum.Config{
			Width:  c.Display.Width,
			Shift:  c.Spectrum.BinShift,
			Alpha:  c.Spectrum.Alpha,
			Offset: c.Spectrum.Offset,
			Scale:  c.Spectrum.Scale,
			Window: c.Spectrum.Window,
		},
	}
}

// TransferOptions returns the transfer engine options.
func (c *Config) TransferOptions() []transfer.Option {
	return []transfer.Option{
		transfer.WithGeometry(c.Transfer.BurstWords, c.Transfer.AlignWords),
		transfer.WithPollTimeout(c.Transfer.PollTimeout),
	}
}

// Palette returns the configured waterfall palette.
func (c *Config) Palette() *display.Palette {
	if c.Display.Palette == PaletteGray {
		return display.Grayscale()
	}
	return display.Heat()
}
