// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"panadapter/internal/config"
)

func TestParseArgsDefaults(t *testing.T) {
	opts, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if opts.Command != "" || opts.Config == nil {
		t.Fatalf("options = %+v", opts)
	}
	if opts.Config.Capture.Source != config.SourceTone {
		t.Errorf("source = %q", opts.Config.Capture.Source)
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panadapter.yaml")
	content := "capture:\n  source: tone\n  sample_rate: 96000\noutput:\n  udp_target: 10.0.0.1:9000\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	opts, err := ParseArgs([]string{"-c", path, "--wav", "iq.wav", "--tui", "-v"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	cfg := opts.Config
	if cfg.Capture.Source != config.SourceWAV || cfg.Capture.WAVPath != "iq.wav" {
		t.Errorf("capture = %+v", cfg.Capture)
	}
	if cfg.Capture.SampleRate != 96000 {
		t.Errorf("sample rate from file lost: %v", cfg.Capture.SampleRate)
	}
	if cfg.Output.UDPTarget != "10.0.0.1:9000" || !cfg.Output.TUI {
		t.Errorf("output = %+v", cfg.Output)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestListCommand(t *testing.T) {
	opts, err := ParseArgs([]string{"list", "--pick"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if opts.Command != CommandList || !opts.Pick {
		t.Errorf("options = %+v", opts)
	}
}

func TestInvalidFlagValue(t *testing.T) {
	if _, err := ParseArgs([]string{"--source", "sdr"}); err == nil {
		t.Error("unknown source accepted")
	}
}
