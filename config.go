package spc

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/spc-dev/spc/pkg/assets"
	"github.com/spc-dev/spc/pkg/server"
)

// Config configures an App.
type Config struct {
	// Server configures the viewer websocket transport.
	// If nil, server.DefaultConfig() is used.
	Server *server.Config

	// Width and Height are the captured frame size in pixels.
	Width  int
	Height int

	// FPS caps how often Tick captures a frame and pushes state.
	FPS int

	// DisableCapture turns the frame pipeline off; state is still mirrored.
	DisableCapture bool

	// Assets serves the viewer's static files. Nil disables static routes.
	Assets assets.Source

	// Metrics enables Prometheus collectors and the /metrics route.
	Metrics bool

	// Registry receives the collectors. If nil, a fresh registry is created.
	Registry *prometheus.Registry

	// Tracing enables OpenTelemetry spans for HTTP routes and control dispatch.
	Tracing bool

	// TracerProvider overrides the global provider when Tracing is set.
	TracerProvider trace.TracerProvider

	// Logger is the structured logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// DefaultConfig returns the default configuration: 440x240 frames at 30 fps
// with metrics enabled.
func DefaultConfig() Config {
	return Config{
		Width:   440,
		Height:  240,
		FPS:     30,
		Metrics: true,
	}
}

func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.Width <= 0 {
		c.Width = d.Width
	}
	if c.Height <= 0 {
		c.Height = d.Height
	}
	if c.FPS <= 0 {
		c.FPS = d.FPS
	}
	if c.Server == nil {
		c.Server = server.DefaultConfig()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// interval is the minimum time between two capture and push cycles.
func (c *Config) interval() time.Duration {
	return time.Second / time.Duration(c.FPS)
}
