package server

import (
	"net/http"
	"net/url"
	"time"
)

// Config holds configuration for the broadcast server.
type Config struct {
	// WebSocket buffer sizes

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin is called to validate the request origin.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// Limits

	// MaxMessageSize is the maximum size of an inbound control message.
	// Default: 64KB.
	MaxMessageSize int64

	// SendQueueSize is the number of text messages buffered per viewer.
	// Frames are not counted; each viewer holds only the latest one. A viewer
	// whose text backlog reaches the limit is disconnected.
	// Default: 256.
	SendQueueSize int

	// Timeouts

	// WriteTimeout bounds a single write to one viewer. Zero disables the
	// deadline; a stalled viewer then only stalls its own queue.
	// Default: 0.
	WriteTimeout time.Duration

	// ShutdownTimeout is the maximum time Shutdown waits for the worker.
	// Default: 5 seconds.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     SameOriginCheck,
		MaxMessageSize:  64 * 1024, // 64KB
		SendQueueSize:   256,
		ShutdownTimeout: 5 * time.Second,
	}
}

// fillDefaults replaces zero fields with their defaults.
func (c *Config) fillDefaults() {
	defaults := DefaultConfig()
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = defaults.ReadBufferSize
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = defaults.WriteBufferSize
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = defaults.CheckOrigin
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = defaults.MaxMessageSize
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = defaults.SendQueueSize
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
}

// SameOriginCheck validates that the WebSocket request origin matches the host.
// Requests without an Origin header are accepted.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := r.Host
	if host == "" {
		return false
	}
	return originURL.Host == host
}

// AllowAnyOrigin accepts every origin. Use it when viewers are served from a
// different host than the server, as with an S3-hosted viewer.
func AllowAnyOrigin(*http.Request) bool { return true }

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// WithSendQueueSize sets the per-viewer text backlog limit and returns the config for chaining.
func (c *Config) WithSendQueueSize(n int) *Config {
	c.SendQueueSize = n
	return c
}

// WithWriteTimeout sets the per-write deadline and returns the config for chaining.
func (c *Config) WithWriteTimeout(d time.Duration) *Config {
	c.WriteTimeout = d
	return c
}

// WithCheckOrigin sets the origin check and returns the config for chaining.
func (c *Config) WithCheckOrigin(fn func(r *http.Request) bool) *Config {
	c.CheckOrigin = fn
	return c
}
