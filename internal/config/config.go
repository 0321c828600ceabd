package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ghodss/yaml"

	"github.com/spc-dev/spc"
	"github.com/spc-dev/spc/internal/errors"
	"github.com/spc-dev/spc/pkg/assets"
	"github.com/spc-dev/spc/pkg/server"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "spc.yaml"

	// DefaultAddress is the default HTTP listen address.
	DefaultAddress = ":6671"

	// DefaultWidth and DefaultHeight are the default capture size.
	DefaultWidth  = 440
	DefaultHeight = 240

	// DefaultFPS is the default capture rate.
	DefaultFPS = 30

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	maxDimension = 4096
	maxFPS       = 240
)

// Config represents the spc.yaml configuration.
type Config struct {
	// Address is the HTTP listen address (e.g. ":6671").
	Address string `json:"address,omitempty"`

	// StaticDir is the directory holding the viewer files.
	StaticDir string `json:"static_dir,omitempty"`

	// Assets configures a remote viewer file source. It takes precedence
	// over StaticDir when set.
	Assets AssetsConfig `json:"assets,omitempty"`

	Capture CaptureConfig `json:"capture,omitempty"`

	WebSocket WebSocketConfig `json:"websocket,omitempty"`

	// Metrics enables the /metrics route.
	Metrics bool `json:"metrics"`

	// Tracing enables OpenTelemetry spans.
	Tracing bool `json:"tracing,omitempty"`

	// OpenBrowser opens the viewer on start when nobody is connected.
	OpenBrowser bool `json:"open_browser,omitempty"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `json:"log_level,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// AssetsConfig selects where viewer files come from.
type AssetsConfig struct {
	S3 *S3Config `json:"s3,omitempty"`
}

// S3Config locates viewer files in a bucket.
type S3Config struct {
	Bucket string `json:"bucket"`
	Region string `json:"region"`

	// Endpoint overrides the service endpoint (e.g. a MinIO URL).
	Endpoint string `json:"endpoint,omitempty"`

	// Prefix is prepended to every object key.
	Prefix string `json:"prefix,omitempty"`
}

// CaptureConfig sizes the frame pipeline.
type CaptureConfig struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
	FPS    int `json:"fps,omitempty"`

	// Disabled turns frame capture off.
	Disabled bool `json:"disabled,omitempty"`
}

// WebSocketConfig tunes the viewer transport.
type WebSocketConfig struct {
	// WriteTimeout is a duration string such as "5s". Empty means no deadline.
	WriteTimeout string `json:"write_timeout,omitempty"`

	MaxMessageSize int64 `json:"max_message_size,omitempty"`

	// SendQueue is the per-viewer outbound queue length.
	SendQueue int `json:"send_queue,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Address: DefaultAddress,
		Capture: CaptureConfig{
			Width:  DefaultWidth,
			Height: DefaultHeight,
			FPS:    DefaultFPS,
		},
		Metrics:  true,
		LogLevel: DefaultLogLevel,
	}
}

// Load reads spc.yaml from the specified directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from a YAML or JSON file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No config file at " + path).
				WithSuggestion("Create " + ConfigFileName + " or run without --config to use defaults")
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E101").
			WithLocationFromYAML(path, err).
			WithSuggestion("Check that " + filepath.Base(path) + " is valid YAML or JSON").
			Wrap(err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// LoadOptional loads path if it is set, otherwise spc.yaml in dir if it
// exists, otherwise the defaults.
func LoadOptional(path, dir string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	if Exists(dir) {
		return Load(dir)
	}
	return New(), nil
}

// SaveTo writes the configuration as YAML.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.New("E101").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E101").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return "."
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills zero values left by a partial file.
func (c *Config) applyDefaults() {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.Capture.Width == 0 {
		c.Capture.Width = DefaultWidth
	}
	if c.Capture.Height == 0 {
		c.Capture.Height = DefaultHeight
	}
	if c.Capture.FPS == 0 {
		c.Capture.FPS = DefaultFPS
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate checks the configuration and returns the first coded error.
func (c *Config) Validate() error {
	if _, port, err := net.SplitHostPort(c.Address); err != nil || port == "" {
		e := errors.New("E102").
			WithSuggestion(fmt.Sprintf("Use a host:port address such as %q", DefaultAddress))
		if err != nil {
			e.Wrap(err)
		}
		return c.locate(e)
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 ||
		c.Capture.Width > maxDimension || c.Capture.Height > maxDimension {
		return c.locate(errors.New("E103").
			WithSuggestion(fmt.Sprintf("Got %dx%d; the default is %dx%d",
				c.Capture.Width, c.Capture.Height, DefaultWidth, DefaultHeight)))
	}
	if c.Capture.FPS <= 0 || c.Capture.FPS > maxFPS {
		return c.locate(errors.New("E104").
			WithSuggestion(fmt.Sprintf("Got %d; the default is %d", c.Capture.FPS, DefaultFPS)))
	}
	if c.StaticDir != "" && c.Assets.S3 == nil {
		if info, err := os.Stat(c.StaticPath()); err != nil || !info.IsDir() {
			return c.locate(errors.New("E105").
				WithSuggestion("Check static_dir: " + c.StaticPath()))
		}
	}
	if s3 := c.Assets.S3; s3 != nil && (s3.Bucket == "" || s3.Region == "") {
		return c.locate(errors.New("E106").
			WithExample("assets:\n  s3:\n    bucket: spc-viewer\n    region: us-east-1"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return c.locate(errors.New("E107").
			WithSuggestion(fmt.Sprintf("Got %q", c.LogLevel)))
	}
	if _, err := c.writeTimeout(); err != nil {
		return c.locate(errors.New("E108").
			WithDetail("websocket.write_timeout must be a duration such as \"5s\".").
			Wrap(err))
	}
	if c.WebSocket.MaxMessageSize < 0 || c.WebSocket.SendQueue < 0 {
		return c.locate(errors.New("E108"))
	}
	return nil
}

func (c *Config) locate(e *errors.Error) *errors.Error {
	if c.configPath != "" {
		e.Location = &errors.Location{File: c.configPath}
	}
	return e
}

// StaticPath resolves StaticDir against the config file's directory.
func (c *Config) StaticPath() string {
	if c.StaticDir == "" || filepath.IsAbs(c.StaticDir) {
		return c.StaticDir
	}
	return filepath.Join(c.Dir(), c.StaticDir)
}

// URL returns the viewer URL for the listen address.
func (c *Config) URL() string {
	host, port, err := net.SplitHostPort(c.Address)
	if err != nil {
		return "http://" + c.Address + "/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

func (c *Config) writeTimeout() (time.Duration, error) {
	if c.WebSocket.WriteTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.WebSocket.WriteTimeout)
}

// ServerConfig builds the transport configuration.
func (c *Config) ServerConfig() *server.Config {
	cfg := server.DefaultConfig()
	if d, err := c.writeTimeout(); err == nil {
		cfg.WriteTimeout = d
	}
	if c.WebSocket.MaxMessageSize > 0 {
		cfg.MaxMessageSize = c.WebSocket.MaxMessageSize
	}
	if c.WebSocket.SendQueue > 0 {
		cfg.SendQueueSize = c.WebSocket.SendQueue
	}
	return cfg
}

// AppConfig builds the App configuration around an asset source.
func (c *Config) AppConfig(src assets.Source, logger *slog.Logger) spc.Config {
	return spc.Config{
		Server:         c.ServerConfig(),
		Width:          c.Capture.Width,
		Height:         c.Capture.Height,
		FPS:            c.Capture.FPS,
		DisableCapture: c.Capture.Disabled,
		Assets:         src,
		Metrics:        c.Metrics,
		Tracing:        c.Tracing,
		Logger:         logger,
	}
}

// ParseLevel maps a log_level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(strings.ToUpper(s)))
	return l, err
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}
