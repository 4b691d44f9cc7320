// SPDX-License-Identifier: MIT
package cmd

import (
	"github.com/spf13/cobra"

	"panadapter/internal/config"
	"panadapter/pkg/build"
)

// CommandList lists the host's capture devices instead of running.
const CommandList = "list"

// Options is the parsed command line.
type Options struct {
	Config  *config.Config // nil when only help or the version was printed
	Command string         // A one-off command, or empty to run the waterfall
	Pick    bool           // Choose the device interactively (list only)
}

// flags are the values that override the configuration file.
type flags struct {
	configPath string
	source     string
	device     int
	sampleRate float64
	wavPath    string
	loop       bool
	toneFreq   float64
	record     string
	udpTarget  string
	httpAddr   string
	tui        bool
	window     bool
	verbose    bool
}

// ParseArgs parses args and loads the configuration they name.
func ParseArgs(args []string) (*Options, error) {
	info := build.Current()
	opts := &Options{}
	var f flags

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         "Real-time I/Q spectrum waterfall",
		Version:       build.Short(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd, &f)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   CommandList,
		Short: "List capture devices; only stereo inputs can carry I/Q",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandList
			return opts.load(cmd, &f)
		},
	}
	listCmd.Flags().BoolVarP(&opts.Pick, "pick", "p", false,
		"Choose a device and sample rate interactively")
	rootCmd.AddCommand(listCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "",
		"Configuration file. Default is ./panadapter.yaml or ./config.yaml if present")

	// Capture Configuration
	pf.StringVarP(&f.source, "source", "s", config.SourceTone,
		"Capture source: portaudio, wav or tone")
	pf.IntVarP(&f.device, "device", "d", config.MinDeviceID,
		"Input device ID. Use the 'list' command to see available devices")
	pf.Float64VarP(&f.sampleRate, "sample-rate", "R", 48000,
		"Complex sample rate, measured in Hertz (Hz)")
	pf.StringVarP(&f.wavPath, "wav", "w", "",
		"Stereo I/Q WAV file replayed by the wav source")
	pf.BoolVar(&f.loop, "loop", false,
		"Rewind the WAV file when it ends")
	pf.Float64Var(&f.toneFreq, "tone", 3000,
		"Tone source offset from the centre frequency in Hz")
	pf.StringVarP(&f.record, "record", "r", "",
		"Record the captured I/Q blocks to this WAV file")

	// Output Configuration
	pf.StringVar(&f.udpTarget, "udp", "",
		"Send waterfall rows to this UDP address")
	pf.StringVar(&f.httpAddr, "http", "",
		"Serve /ws and /metrics on this address")
	pf.BoolVarP(&f.tui, "tui", "t", false,
		"Show the waterfall in the terminal")
	pf.BoolVarP(&f.window, "window", "g", false,
		"Show the waterfall in a window (gui builds)")

	// Debug Configuration
	pf.BoolVarP(&f.verbose, "verbose", "v", false,
		"Show verbose output")

	if args == nil {
		// cobra falls back to os.Args for a nil slice.
		args = []string{}
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return opts, nil
}

func (o *Options) load(cmd *cobra.Command, f *flags) error {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return err
	}
	f.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.Config = cfg
	return nil
}

// apply copies the flags given on the command line over cfg.
func (f *flags) apply(cmd *cobra.Command, cfg *config.Config) {
	set := cmd.Flags().Changed
	if set("source") {
		cfg.Capture.Source = f.source
	}
	if set("device") {
		cfg.Capture.Device = f.device
	}
	if set("sample-rate") {
		cfg.Capture.SampleRate = f.sampleRate
	}
	if set("wav") {
		cfg.Capture.WAVPath = f.wavPath
		if !set("source") {
			cfg.Capture.Source = config.SourceWAV
		}
	}
	if set("loop") {
		cfg.Capture.Loop = f.loop
	}
	if set("tone") {
		cfg.Capture.ToneFreq = f.toneFreq
	}
	if set("record") {
		cfg.Capture.RecordPath = f.record
	}
	if set("udp") {
		cfg.Output.UDPTarget = f.udpTarget
	}
	if set("http") {
		cfg.Output.HTTPAddr = f.httpAddr
	}
	if set("tui") {
		cfg.Output.TUI = f.tui
	}
	if set("window") {
		cfg.Output.Window = f.window
	}
	if f.verbose {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
}
