// Package spc mirrors a live simulation to remote viewers.
//
// An App wires the frame pipeline, the state mirror, the viewer websocket
// and input replay around one host. The host calls Tick once per frame on
// its own turn and Notify from its edit hooks; everything that touches host
// state runs inside those calls.
//
//	app, err := spc.New(spc.DefaultConfig(), host)
//	go app.Run(ctx)
//	http.ListenAndServe(":6671", app.Handler())
//
//	// host loop
//	for frame := range frames {
//	    app.Tick(frame.Time)
//	}
package spc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spc-dev/spc/pkg/api"
	"github.com/spc-dev/spc/pkg/assets"
	"github.com/spc-dev/spc/pkg/capture"
	"github.com/spc-dev/spc/pkg/input"
	"github.com/spc-dev/spc/pkg/level"
	"github.com/spc-dev/spc/pkg/mainloop"
	"github.com/spc-dev/spc/pkg/middleware"
	"github.com/spc-dev/spc/pkg/server"
	"github.com/spc-dev/spc/pkg/state"
)

// Host is everything the mirror needs from the simulation.
type Host interface {
	state.Host
	input.Host
	capture.Device
}

// App is the composition root. One App serves one host.
type App struct {
	config Config

	queue    *mainloop.Queue
	server   *server.Server
	stats    *server.MetricsCollector
	capturer *capture.Capturer
	relay    *capture.Relay
	syncer   *state.Syncer
	replayer *input.Replayer

	metrics  *middleware.Metrics
	registry *prometheus.Registry
	handler  http.Handler

	// ctx ends on Shutdown so a blocked Submit releases the host.
	ctx    context.Context
	cancel context.CancelFunc

	lastTick time.Time
	interval time.Duration

	shutdownOnce sync.Once
	shutdownErr  error

	logger *slog.Logger
}

// New creates an App for host. The capture target is allocated here, so New
// must be called on the host's turn.
func New(cfg Config, host Host) (*App, error) {
	if host == nil {
		return nil, errors.New("spc: nil host")
	}
	cfg.fillDefaults()
	logger := cfg.Logger

	a := &App{
		config:   cfg,
		queue:    mainloop.New(logger),
		stats:    server.NewMetricsCollector(),
		interval: cfg.interval(),
		logger:   logger.With("component", "app"),
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.replayer = input.NewReplayer(host)
	a.replayer.SetLogger(logger)

	var controls server.ControlHandler = a.replayer
	if cfg.Tracing {
		controls = middleware.TraceControls(controls, a.otelOptions()...)
	}

	a.server = server.New(cfg.Server, controls, a.queue)
	a.server.SetLogger(logger)

	observers := []server.Observer{a.stats}
	if cfg.Metrics {
		a.registry = cfg.Registry
		if a.registry == nil {
			a.registry = prometheus.NewRegistry()
		}
		a.metrics = middleware.NewMetrics(middleware.WithRegistry(a.registry))
		observers = append(observers, a.metrics)
	}
	a.server.SetObserver(server.Observers(observers...))

	a.syncer = state.NewSyncer(host, a.server)
	a.syncer.SetDispatcher(a.queue)
	a.syncer.SetLogger(logger)

	a.relay = capture.NewRelay(a.server)
	a.relay.SetLogger(logger)
	if !cfg.DisableCapture {
		c, err := capture.NewCapturer(host, cfg.Width, cfg.Height)
		if err != nil {
			return nil, fmt.Errorf("spc: %w", err)
		}
		a.capturer = c
	}

	a.handler = a.buildHandler()
	return a, nil
}

func (a *App) otelOptions() []middleware.OTelOption {
	if a.config.TracerProvider == nil {
		return nil
	}
	return []middleware.OTelOption{middleware.WithTracerProvider(a.config.TracerProvider)}
}

func (a *App) buildHandler() http.Handler {
	opts := api.Options{
		WebSocket: a.server,
		Logger:    a.config.Logger,
	}
	if a.metrics != nil {
		opts.Metrics = promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
		opts.Middleware = append(opts.Middleware, a.metrics.Handler)
	}
	if a.config.Tracing {
		opts.Middleware = append(opts.Middleware, middleware.Tracing(a.otelOptions()...))
	}
	if a.config.Assets != nil {
		opts.Static = assets.Handler(a.config.Assets)
	}
	return api.NewRouter(levelStore{a}, opts)
}

// Handler returns the HTTP surface: level data API, /ws, /metrics and the
// viewer's static files.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Tick runs one host turn: queued callbacks first, then, at most FPS times
// a second, a frame capture and a state push. Tick blocks while the previous
// frame is still unsent.
func (a *App) Tick(now time.Time) {
	a.queue.Drain()

	if !a.lastTick.IsZero() && now.Sub(a.lastTick) < a.interval {
		return
	}
	a.lastTick = now

	a.captureFrame()
	a.syncer.Tick()
}

func (a *App) captureFrame() {
	if a.capturer == nil {
		return
	}
	f, err := a.capturer.Capture()
	if err != nil {
		if a.metrics != nil {
			a.metrics.CaptureSkipped()
		}
		a.logger.Debug("capture skipped", "error", err)
		return
	}
	if err := a.relay.Submit(a.ctx, f); err != nil {
		return
	}
	if a.metrics != nil {
		a.metrics.FrameCaptured()
	}
}

// Notify forwards a host edit event. Call it on the host's turn.
func (a *App) Notify(ev state.HostEvent) {
	a.syncer.Notify(ev)
}

// Post schedules fn on the host's next Tick.
func (a *App) Post(fn func()) bool {
	return a.queue.Post(fn)
}

// ConnectionCount returns the number of connected viewers.
func (a *App) ConnectionCount() int {
	return a.server.ConnectionCount()
}

// Stats returns transport counters.
func (a *App) Stats() *server.Stats {
	return a.stats.Snapshot()
}

// Server returns the viewer transport.
func (a *App) Server() *server.Server {
	return a.server
}

// Syncer returns the state mirror. Use it only on the host's turn.
func (a *App) Syncer() *state.Syncer {
	return a.syncer
}

// Config returns the app configuration.
func (a *App) Config() Config {
	return a.config
}

// Run starts the transport worker and the frame sender and blocks until ctx
// ends, then shuts down.
func (a *App) Run(ctx context.Context) error {
	a.server.Start()
	a.logger.Info("mirror running",
		"frame", fmt.Sprintf("%dx%d", a.config.Width, a.config.Height),
		"fps", a.config.FPS,
		"capture", a.capturer != nil)

	runCtx, stop := context.WithCancel(ctx)
	go func() {
		select {
		case <-a.ctx.Done():
			stop()
		case <-runCtx.Done():
		}
	}()
	err := a.relay.Run(runCtx)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()
	return errors.Join(err, a.Shutdown(shutdownCtx))
}

// Shutdown closes every viewer, stops the main queue and releases a host
// blocked in Tick. It is safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		a.cancel()
		a.queue.Close()
		a.shutdownErr = a.server.Shutdown(ctx)
	})
	return a.shutdownErr
}

// Close releases the capture target. Call it on the host's turn after
// Shutdown.
func (a *App) Close() {
	if a.capturer != nil {
		a.capturer.Release()
	}
}

// levelStore runs level reads and writes on the host's turn.
type levelStore struct {
	app *App
}

func (s levelStore) LevelLoaded(ctx context.Context) (bool, error) {
	var loaded bool
	err := s.app.queue.Call(ctx, func() error {
		loaded = s.app.syncer.LevelLoaded()
		return nil
	})
	return loaded, err
}

func (s levelStore) ReadLevelData(ctx context.Context) (*level.Data, error) {
	var d *level.Data
	err := s.app.queue.Call(ctx, func() error {
		var err error
		d, err = s.app.syncer.ReadLevelData()
		return err
	})
	return d, err
}

func (s levelStore) WriteLevelData(ctx context.Context, d *level.Data) error {
	return s.app.queue.Call(ctx, func() error {
		return s.app.syncer.WriteLevelData(d)
	})
}
