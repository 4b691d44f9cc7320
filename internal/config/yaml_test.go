// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"panadapter/internal/transfer"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Capture.Source != SourceTone || cfg.Display.Width != 480 || cfg.Capture.BlockSize != 512 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected unmarshal error, got %v", err)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeTempConfig(t, `
log_level: debug
capture:
  source: wav
  wav_path: /tmp/iq.wav
  sample_rate: 96000
  loop: true
spectrum:
  alpha: 0.5
  window: Hann
transfer:
  poll_timeout: 50ms
output:
  udp_target: 127.0.0.1:9090
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Capture.Source != SourceWAV || cfg.Capture.WAVPath != "/tmp/iq.wav" || !cfg.Capture.Loop {
		t.Errorf("capture = %+v", cfg.Capture)
	}
	if cfg.Capture.BlockSize != 512 {
		t.Errorf("block size default lost: %d", cfg.Capture.BlockSize)
	}
	if cfg.Transfer.PollTimeout != 50*time.Millisecond {
		t.Errorf("poll timeout = %s", cfg.Transfer.PollTimeout)
	}
	if cfg.Spectrum.Window != "hann" {
		t.Errorf("window = %q, want normalised", cfg.Spectrum.Window)
	}

	pc := cfg.Pipeline()
	if pc.Spectrum.Alpha != 0.5 || pc.Spectrum.Width != pc.Width || pc.Spectrum.Shift != 16 {
		t.Errorf("pipeline config = %+v", pc)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENV_DEBUG", "true")
	t.Setenv("ENV_CAPTURE_SOURCE", "portaudio")
	t.Setenv("ENV_CAPTURE_DEVICE", "3")
	t.Setenv("ENV_OUTPUT_UDP_TARGET", "10.0.0.2:7000")

	path := writeTempConfig(t, "capture:\n  source: tone\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.Debug || cfg.Capture.Source != SourcePortAudio || cfg.Capture.Device != 3 {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.Output.UDPTarget != "10.0.0.2:7000" {
		t.Errorf("udp target = %q", cfg.Output.UDPTarget)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"defaults", func(*Config) {}, ""},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"source", func(c *Config) { c.Capture.Source = "sdr" }, "capture.source"},
		{"wav without path", func(c *Config) { c.Capture.Source = SourceWAV }, "wav_path"},
		{"sample rate", func(c *Config) { c.Capture.SampleRate = 4000 }, "sample_rate"},
		{"block size", func(c *Config) { c.Capture.BlockSize = 500 }, "block_size 500 must be a power of two, try 512"},
		{"block size too large", func(c *Config) { c.Capture.BlockSize = 2 * MaxBlockSize }, "block_size"},
		{"block size zero", func(c *Config) { c.Capture.BlockSize = 0 }, "block_size"},
		{"tone beyond band", func(c *Config) { c.Capture.ToneFreq = -30000 }, "tone_hz"},
		{"display wider than bins", func(c *Config) { c.Display.Width = 1024 }, "display"},
		{"palette", func(c *Config) { c.Display.Palette = "rainbow" }, "palette"},
		{"alpha", func(c *Config) { c.Spectrum.Alpha = 0 }, "alpha"},
		{"window", func(c *Config) { c.Spectrum.Window = "kaiser" }, "window"},
		{"transfer", func(c *Config) { c.Transfer.PollTimeout = 0 }, "transfer"},
		{"udp target", func(c *Config) { c.Output.UDPTarget = "localhost" }, "udp_target"},
		{"two frontends", func(c *Config) { c.Output.TUI, c.Output.Window = true, true }, "exclusive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestTransferOptionsBuildEngine(t *testing.T) {
	cfg := Default()
	cfg.Transfer.BurstWords = 8
	e, err := transfer.NewEngine(transfer.NewMemChannel(), cfg.TransferOptions()...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if want := transfer.MaxBatchWords(8, cfg.Transfer.AlignWords, transfer.ControllerLimit); e.MaxBatch() != want {
		t.Errorf("max batch = %d, want %d", e.MaxBatch(), want)
	}
}
