// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	applog "panadapter/internal/log"
	"panadapter/internal/spectrum"
	"panadapter/pkg/bitint"
)

var log = applog.For("config")

var windows = []string{
	"", spectrum.WindowNone, spectrum.WindowHann, spectrum.WindowHamming,
	spectrum.WindowBlackman, spectrum.WindowBlackmanNuttall, spectrum.WindowNuttall,
}

// LoadConfig loads configuration from the YAML file at path. If path is
// empty, it looks for "panadapter.yaml" and then "config.yaml" in the
// working directory and falls back to the built-in defaults. Environment
// overrides are applied after the file, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"panadapter.yaml", "config.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		if path == "" {
			return nil, fmt.Errorf("invalid default configuration: %w", err)
		}
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values the pipeline cannot check itself.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level %q is not a level", c.LogLevel)
	}

	cc := &c.Capture
	switch cc.Source {
	case SourcePortAudio, SourceTone:
	case SourceWAV:
		if cc.WAVPath == "" {
			return fmt.Errorf("capture.wav_path must be set for the wav source")
		}
	default:
		return fmt.Errorf("capture.source %q must be portaudio, wav or tone", cc.Source)
	}
	if cc.Device < MinDeviceID {
		return fmt.Errorf("capture.device %d is below %d", cc.Device, MinDeviceID)
	}
	if cc.SampleRate < MinSampleRate || cc.SampleRate > MaxSampleRate {
		return fmt.Errorf("capture.sample_rate %.0f outside %d..%d Hz", cc.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if cc.BlockSize <= 0 || cc.BlockSize > MaxBlockSize {
		return fmt.Errorf("capture.block_size %d outside 1..%d", cc.BlockSize, MaxBlockSize)
	}
	if !bitint.IsPowerOfTwo(cc.BlockSize) {
		return fmt.Errorf("capture.block_size %d must be a power of two, try %d",
			cc.BlockSize, min(bitint.NextPowerOfTwo(cc.BlockSize), MaxBlockSize))
	}
	if cc.Source == SourceTone && 2*abs(cc.ToneFreq) >= cc.SampleRate {
		return fmt.Errorf("capture.tone_hz %.0f is beyond the ±%.0f Hz band", cc.ToneFreq, cc.SampleRate/2)
	}

	dc := &c.Display
	if dc.Width <= 0 || dc.Height <= 0 || dc.Width > cc.BlockSize {
		return fmt.Errorf("display %dx%d does not fit %d bins", dc.Width, dc.Height, cc.BlockSize)
	}
	if dc.RefreshHz <= 0 {
		return fmt.Errorf("display.refresh_hz must be positive")
	}
	if dc.Palette != PaletteGray && dc.Palette != PaletteHeat {
		return fmt.Errorf("display.palette %q must be gray or heat", dc.Palette)
	}

	sc := &c.Spectrum
	if sc.Alpha <= 0 || sc.Alpha > 1 {
		return fmt.Errorf("spectrum.alpha %v outside (0, 1]", sc.Alpha)
	}
	if sc.Scale <= 0 {
		return fmt.Errorf("spectrum.scale must be positive")
	}
	if !slices.Contains(windows, strings.ToLower(sc.Window)) {
		return fmt.Errorf("spectrum.window %q is not supported", sc.Window)
	}
	sc.Window = strings.ToLower(sc.Window)

	if c.Transfer.BurstWords <= 0 || c.Transfer.AlignWords <= 0 || c.Transfer.PollTimeout <= 0 {
		return fmt.Errorf("transfer burst, alignment and poll timeout must be positive")
	}

	if t := c.Output.UDPTarget; t != "" && !strings.Contains(t, ":") {
		return fmt.Errorf("output.udp_target %q appears invalid (missing port?)", t)
	}
	if c.Output.TUI && c.Output.Window {
		return fmt.Errorf("output.tui and output.window are exclusive")
	}
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// applyEnvOverrides applies the ENV_* variables on top of the file.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			log.Infof("overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		log.Infof("overriding log_level from env: %s", val)
	}

	// ENV_CAPTURE_{...}

	// ENV_CAPTURE_SOURCE
	if val, ok := os.LookupEnv("ENV_CAPTURE_SOURCE"); ok {
		cfg.Capture.Source = val
		log.Infof("overriding capture.source from env: %s", val)
	}
	// ENV_CAPTURE_DEVICE
	if val, ok := os.LookupEnv("ENV_CAPTURE_DEVICE"); ok {
		if id, err := strconv.Atoi(val); err == nil {
			cfg.Capture.Device = id
			log.Infof("overriding capture.device from env: %d", id)
		}
	}
	// ENV_CAPTURE_WAV_PATH
	if val, ok := os.LookupEnv("ENV_CAPTURE_WAV_PATH"); ok {
		cfg.Capture.WAVPath = val
		log.Infof("overriding capture.wav_path from env: %s", val)
	}

	// ENV_OUTPUT_{...}

	// ENV_OUTPUT_UDP_TARGET
	if val, ok := os.LookupEnv("ENV_OUTPUT_UDP_TARGET"); ok {
		cfg.Output.UDPTarget = val
		log.Infof("overriding output.udp_target from env: %s", val)
	}
	// ENV_OUTPUT_HTTP_ADDR
	if val, ok := os.LookupEnv("ENV_OUTPUT_HTTP_ADDR"); ok {
		cfg.Output.HTTPAddr = val
		log.Infof("overriding output.http_addr from env: %s", val)
	}
}
