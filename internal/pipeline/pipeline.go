// SPDX-License-Identifier: MIT
/*
Package pipeline wires capture, spectrum, waterfall and display together.

	capture events ─► Handoff ─► process job ─► Processor ─► waterfall row
	                                  │
	                                  ▼
	panel vblank ◄─ Swap.Flip ◄─ render job ◄─ waterfall.Render + overlay

The capture source and the panel run on their own goroutines and only touch
the handoff slot, the swap and the scheduler's signals. Everything else is
owned by the scheduler's worker.
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"panadapter/internal/capture"
	"panadapter/internal/display"
	"panadapter/internal/fault"
	applog "panadapter/internal/log"
	"panadapter/internal/scheduler"
	"panadapter/internal/spectrum"
	"panadapter/internal/transfer"
	"panadapter/internal/waterfall"
)

var ErrConfig = errors.New("pipeline: invalid configuration")

var log = applog.For("pipeline")

// Config is the pipeline geometry.
type Config struct {
	BlockSize int // Samples per capture half, N
	Width     int // Display columns, W
	Height    int // Display rows, H
	Refresh   int // Panel refresh rate in Hz
	Spectrum  spectrum.Config
}

// DefaultConfig is a 480×272 panel over 512 sample blocks.
func DefaultConfig() Config {
	return Config{
		BlockSize: 512,
		Width:     480,
		Height:    272,
		Refresh:   display.DefaultRefresh,
		Spectrum:  spectrum.DefaultConfig(),
	}
}

// BlockWriter receives every consumed block before it is transformed.
type BlockWriter interface {
	Write(block []complex128) error
}

// RowPublisher receives every finished waterfall row.
type RowPublisher interface {
	PublishRow(seq uint64, row []byte) error
}

// Pipeline is one assembled waterfall.
type Pipeline struct {
	cfg      Config
	counters *fault.Set
	reporter fault.Reporter

	channel transfer.Channel
	engine  *transfer.Engine
	region  *capture.Region
	handoff *capture.Handoff
	proc    *spectrum.Processor
	wf      *waterfall.Buffer
	swap    *display.Swap
	panel   *display.Panel
	sched   *scheduler.Scheduler

	sink            display.Scanout
	externalRefresh bool
	overlay         Overlay
	recorder        BlockWriter
	rows            RowPublisher
	rebind          display.RebindFunc
	engineOpts      []transfer.Option

	processed atomic.Uint64
	rendered  atomic.Uint64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCounters shares a counter set, e.g. one already registered for
// metrics.
func WithCounters(set *fault.Set) Option { return func(p *Pipeline) { p.counters = set } }

// WithReporter replaces fault.Default.
func WithReporter(r fault.Reporter) Option { return func(p *Pipeline) { p.reporter = r } }

// WithChannel replaces the in-memory transfer channel.
func WithChannel(ch transfer.Channel) Option { return func(p *Pipeline) { p.channel = ch } }

// WithTransferOptions passes options to the transfer engine.
func WithTransferOptions(opts ...transfer.Option) Option {
	return func(p *Pipeline) { p.engineOpts = append(p.engineOpts, opts...) }
}

// WithScanout sets where the panel sends each refreshed frame.
func WithScanout(s display.Scanout) Option { return func(p *Pipeline) { p.sink = s } }

// WithExternalRefresh leaves calling Panel().Vblank to the caller, for
// example a window's frame loop. Run then does not start the panel.
func WithExternalRefresh() Option { return func(p *Pipeline) { p.externalRefresh = true } }

// WithOverlay draws the foreground layer on every frame.
func WithOverlay(o Overlay) Option { return func(p *Pipeline) { p.overlay = o } }

// WithRecorder records consumed blocks.
func WithRecorder(w BlockWriter) Option { return func(p *Pipeline) { p.recorder = w } }

// WithRowPublisher publishes finished rows.
func WithRowPublisher(r RowPublisher) Option { return func(p *Pipeline) { p.rows = r } }

// WithRebind observes the compositor's surfaces after every flip.
func WithRebind(fn display.RebindFunc) Option { return func(p *Pipeline) { p.rebind = fn } }

// New assembles the pipeline. Nothing runs until Start and Run.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if cfg.Spectrum.Width == 0 {
		cfg.Spectrum.Width = cfg.Width
	}
	if cfg.Spectrum.Width != cfg.Width {
		return nil, fmt.Errorf("%w: spectrum width %d differs from display width %d",
			ErrConfig, cfg.Spectrum.Width, cfg.Width)
	}

	p := &Pipeline{cfg: cfg, reporter: fault.Default}
	for _, opt := range opts {
		opt(p)
	}
	if p.counters == nil {
		p.counters = fault.NewSet()
	}
	if p.channel == nil {
		p.channel = transfer.NewMemChannel()
	}

	var err error
	engineOpts := append([]transfer.Option{transfer.WithCounters(p.counters)}, p.engineOpts...)
	if p.engine, err = transfer.NewEngine(p.channel, engineOpts...); err != nil {
		return nil, err
	}
	if p.sched, err = scheduler.New(p.process, p.render, p.counters); err != nil {
		return nil, err
	}
	if p.region, err = capture.NewRegion(cfg.BlockSize); err != nil {
		return nil, err
	}
	p.handoff = capture.NewHandoff(p.region, p.counters, p.reporter,
		capture.WithNotify(p.sched.SignalProcess))

	tr, err := spectrum.NewFourierTransform(cfg.BlockSize)
	if err != nil {
		return nil, err
	}
	if p.proc, err = spectrum.NewProcessor(tr, cfg.BlockSize, cfg.Spectrum); err != nil {
		return nil, err
	}
	if p.wf, err = waterfall.New(p.engine, cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	bg, err := display.NewLayer(display.L8, cfg.Width, cfg.Height, 0)
	if err != nil {
		return nil, err
	}
	fg, err := display.NewLayer(display.ARGB8888, cfg.Width, cfg.Height, 3)
	if err != nil {
		return nil, err
	}
	p.panel = display.NewPanel(cfg.Refresh, p.sink)
	var swapOpts []display.SwapOption
	if p.rebind != nil {
		swapOpts = append(swapOpts, display.WithRebind(p.rebind))
	}
	if p.swap, err = display.NewSwap(p.panel, bg, fg, p.counters, swapOpts...); err != nil {
		return nil, err
	}
	p.panel.Attach(p.swap)
	return p, nil
}

// Start zeroes every buffer and points the panel at the initial frame.
func (p *Pipeline) Start() error {
	for i := range 2 {
		for _, b := range p.swap.Layer(i).Buffers() {
			if err := p.engine.Fill(b.Pix, 0, len(b.Pix)/transfer.WordSize); err != nil {
				return fmt.Errorf("failed to clear frame buffer %d: %w", b.ID, err)
			}
		}
	}
	if err := p.wf.Clear(); err != nil {
		return err
	}
	p.region.Clear()
	p.proc.Reset()
	p.swap.Start()
	log.Infof("started: %d sample blocks, %dx%d display, max batch %d words",
		p.cfg.BlockSize, p.cfg.Width, p.cfg.Height, p.engine.MaxBatch())
	return nil
}

// Run drives src, the panel and the worker until ctx is done or one of
// them fails. A source that runs out of data stops capture only.
func (p *Pipeline) Run(ctx context.Context, src capture.Source) error {
	g, ctx := errgroup.WithContext(ctx)
	if src != nil {
		g.Go(func() error {
			if err := src.Run(ctx, p.region, p.handoff); err != nil {
				return fmt.Errorf("capture: %w", err)
			}
			log.Infof("capture source finished")
			return nil
		})
	}
	if !p.externalRefresh {
		g.Go(func() error { return p.panel.Run(ctx) })
	}
	g.Go(func() error { return p.sched.Run(ctx) })
	return g.Wait()
}

func (p *Pipeline) process() error {
	block := p.handoff.Tick()
	if block == nil {
		return nil
	}
	if p.recorder != nil {
		if err := p.recorder.Write(block); err != nil {
			log.Warnf("recording block: %v", err)
		}
	}
	if err := p.proc.Transform(block); err != nil {
		return err
	}
	p.wf.Shift()
	if err := p.proc.ProcessInto(block, p.wf.Row()); err != nil {
		return err
	}
	seq := p.processed.Add(1)
	if p.rows != nil {
		if err := p.rows.PublishRow(seq, p.wf.Row()); err != nil {
			log.Debugf("publishing row %d: %v", seq, err)
		}
	}
	return nil
}

// render composes and flips one frame. A poll timeout skips the flip for
// this frame only: the engine has counted it and the next render rewrites
// Back.
func (p *Pipeline) render() error {
	if err := p.wf.Render(p.swap.Background().Pix); err != nil {
		if errors.Is(err, transfer.ErrTimeout) {
			log.Warnf("frame dropped: %v", err)
			return nil
		}
		return err
	}
	if p.overlay != nil {
		p.overlay(p.swap.Foreground(), p.cfg.Width, p.cfg.Height)
	}
	p.swap.Flip()
	p.rendered.Add(1)
	return nil
}

func (p *Pipeline) Config() Config                 { return p.cfg }
func (p *Pipeline) Counters() *fault.Set           { return p.counters }
func (p *Pipeline) Handoff() *capture.Handoff      { return p.handoff }
func (p *Pipeline) Panel() *display.Panel          { return p.panel }
func (p *Pipeline) Swap() *display.Swap            { return p.swap }
func (p *Pipeline) Processor() *spectrum.Processor { return p.proc }
func (p *Pipeline) Waterfall() *waterfall.Buffer   { return p.wf }

// Processed returns the number of blocks turned into rows.
func (p *Pipeline) Processed() uint64 { return p.processed.Load() }

// Rendered returns the number of frames flipped.
func (p *Pipeline) Rendered() uint64 { return p.rendered.Load() }
