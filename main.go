// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"panadapter/cmd"
	"panadapter/internal/capture"
	"panadapter/internal/config"
	"panadapter/internal/display"
	"panadapter/internal/fault"
	"panadapter/internal/log"
	"panadapter/internal/pipeline"
	"panadapter/internal/transport"
	"panadapter/internal/transport/udp"
	"panadapter/internal/tui"
	"panadapter/pkg/build"
)

// frontend shows the panel on the main goroutine. The gui build provides a
// desktop window.
type frontend interface {
	Sink() display.Scanout
	Run(ctx context.Context, panel *display.Panel, hz int) error
}

// main is the entry point for the waterfall.
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load the configuration
//   - Execute one-off commands if requested
//   - Assemble the pipeline and its outputs
//
// 2. Concurrent Phase (Hot Path):
//   - Capture source, panel refresh and the worker run until a signal
//
// 3. Shutdown Phase (Cold Path):
//   - Stop outputs and recording, print the fault counters
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		log.Debugf("%v", err)
	}

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if opts.Config == nil {
		// Help or version only.
		return
	}
	cfg := opts.Config
	if level, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	}

	if opts.Command != "" {
		if err := executeCommand(opts); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	if err := run(cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

// executeCommand handles one-off commands that don't need the pipeline.
func executeCommand(opts *cmd.Options) error {
	switch opts.Command {
	case cmd.CommandList:
		if err := capture.Initialize(); err != nil {
			return err
		}
		defer capture.Terminate()

		if !opts.Pick {
			return capture.ListDevices(os.Stdout)
		}
		sel, err := tui.PickDevice(capture.HostDevices)
		if err != nil || sel == nil {
			return err
		}
		fmt.Printf("%s --source portaudio --device %d --sample-rate %.0f\n",
			build.Current().Name, sel.DeviceID, sel.SampleRate)
		return nil
	default:
		return fmt.Errorf("unknown command %q", opts.Command)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	counters := fault.NewSet()
	registry := prometheus.NewRegistry()
	registry.MustRegister(counters, prometheus.NewGoCollector())

	pcfg := cfg.Pipeline()
	pal := cfg.Palette()
	popts := []pipeline.Option{
		pipeline.WithCounters(counters),
		pipeline.WithTransferOptions(cfg.TransferOptions()...),
		pipeline.WithOverlay(pipeline.GridOverlay(pipeline.DefaultGridColumns, cfg.Display.UIShift, pal)),
	}

	src, err := newSource(cfg)
	if err != nil {
		return err
	}
	if cfg.Capture.Source == config.SourcePortAudio {
		if err := capture.Initialize(); err != nil {
			return err
		}
		defer capture.Terminate()
	}

	// Frontends.
	var term *tui.Terminal
	var win frontend
	switch {
	case cfg.Output.TUI:
		term = tui.NewTerminal(pcfg.Width, pcfg.Height, pcfg.Width/5, pcfg.Height/11, pcfg.Refresh/10)
		popts = append(popts, pipeline.WithScanout(term))
	case cfg.Output.Window:
		if win, err = openWindow(cfg, pal); err != nil {
			return err
		}
		popts = append(popts, pipeline.WithScanout(win.Sink()), pipeline.WithExternalRefresh())
	}

	// Recording.
	if path := cfg.Capture.RecordPath; path != "" {
		rec := capture.NewWAVRecorder(int(cfg.Capture.SampleRate), pcfg.BlockSize)
		if err := rec.Start(path); err != nil {
			return err
		}
		defer func() {
			if err := rec.Stop(); err != nil {
				log.Errorf("Error stopping recording: %v", err)
				return
			}
			fmt.Printf("\nRecording saved to: %s\n", path)
		}()
		popts = append(popts, pipeline.WithRecorder(rec))
	}

	// Row outputs.
	var transports []transport.Transport
	var ws *transport.WebSocketTransport
	if cfg.Debug {
		transports = append(transports, transport.NewLoggingTransport())
	}
	if cfg.Output.UDPTarget != "" {
		sender, err := udp.NewSender(cfg.Output.UDPTarget)
		if err != nil {
			return err
		}
		transports = append(transports, sender)
	}
	if cfg.Output.HTTPAddr != "" {
		ws = transport.NewWebSocketTransport(transport.Hello{
			Width:      pcfg.Width,
			Height:     pcfg.Height,
			SampleRate: int(cfg.Capture.SampleRate),
		})
		transports = append(transports, ws)
	}
	var pub *transport.Publisher
	if len(transports) > 0 {
		if pub, err = transport.NewPublisher(pcfg.Width, transport.DefaultDepth, transports...); err != nil {
			return err
		}
		popts = append(popts, pipeline.WithRowPublisher(pub))
	}

	p, err := pipeline.New(pcfg, popts...)
	if err != nil {
		return err
	}
	if ws != nil {
		// Column frequencies are only known once the processor exists.
		hello := ws.Hello()
		hello.Columns = make([]float64, pcfg.Width)
		for col := range hello.Columns {
			hello.Columns[col] = p.Processor().ColumnFrequency(col, cfg.Capture.SampleRate)
		}
		ws.SetHello(hello)
	}
	if err := p.Start(); err != nil {
		return err
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	if pub != nil {
		pub.Start()
		defer func() {
			if err := pub.Close(); err != nil {
				log.Warnf("closing row outputs: %v", err)
			}
		}()
	}

	g, ctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Output.HTTPAddr != "" {
		srv := newHTTPServer(cfg.Output.HTTPAddr, ws, registry)
		g.Go(func() error {
			log.Infof("serving /ws and /metrics on %s", srv.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		err := p.Run(runCtx, src)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	start := time.Now()
	switch {
	case term != nil:
		// The monitor owns the terminal.
		log.SetOutput(io.Discard)
		status := func() string {
			return fmt.Sprintf("rows %s  frames %s  up %s\n%s",
				humanize.Comma(int64(p.Processed())), humanize.Comma(int64(p.Panel().Frames())),
				time.Since(start).Round(time.Second), counters.Summary())
		}
		title := fmt.Sprintf("%s %s  %s Hz", build.Current().Name, build.Short(),
			humanize.Comma(int64(cfg.Capture.SampleRate)))
		err := tui.RunMonitor(runCtx, tui.NewMonitor(term, title, status, 0))
		log.SetOutput(os.Stderr)
		if err != nil {
			log.Errorf("monitor: %v", err)
		}
		cancel()
	case win != nil:
		if err := win.Run(runCtx, p.Panel(), pcfg.Refresh); err != nil {
			log.Errorf("window: %v", err)
		}
		cancel()
	}

	err = g.Wait()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	fmt.Printf("%s rows in %s\nfaults: %s\n",
		humanize.Comma(int64(p.Processed())), time.Since(start).Round(time.Millisecond), counters.Summary())
	return err
}

func newSource(cfg *config.Config) (capture.Source, error) {
	cc := cfg.Capture
	switch cc.Source {
	case config.SourceTone:
		return capture.NewToneSource(int(cc.SampleRate), cc.ToneFreq), nil
	case config.SourceWAV:
		return capture.NewWAVSource(cc.WAVPath, cc.Loop), nil
	case config.SourcePortAudio:
		return capture.NewPortAudioSource(cc.Device, cc.SampleRate, cc.LowLatency), nil
	}
	return nil, fmt.Errorf("unknown capture source %q", cc.Source)
}

func newHTTPServer(addr string, ws http.Handler, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", ws)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
