package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/spc-dev/spc"
	"github.com/spc-dev/spc/internal/config"
	"github.com/spc-dev/spc/internal/errors"
	"github.com/spc-dev/spc/internal/sim"
	"github.com/spc-dev/spc/pkg/assets"
)

// hostRate is how often the demo host steps its simulation.
const hostRate = 60

type serveOptions struct {
	configPath  string
	addr        string
	staticDir   string
	fps         int
	logLevel    string
	openBrowser bool
	noCapture   bool
	tracing     bool
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo host and serve viewers",
		Long: `Run the built-in demo host and mirror it to browser viewers.

The HTTP server exposes:
  /ws                    viewer websocket (frames, state, input)
  /api/leveldata/get     level data of the loaded level
  /api/leveldata/load    replace the loaded level's data
  /metrics               Prometheus metrics (if enabled)
  /                      viewer files (static_dir or S3)

Settings come from spc.yaml in the working directory, or the file given
with --config. Flags override file values.

Examples:
  spc serve
  spc serve --addr=127.0.0.1:8080 --open
  spc serve --config=deploy/spc.yaml --log-level=debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Config file (default ./spc.yaml if present)")
	f.StringVarP(&opts.addr, "addr", "a", "", "HTTP listen address (default :6671)")
	f.StringVar(&opts.staticDir, "static", "", "Directory holding the viewer files")
	f.IntVar(&opts.fps, "fps", 0, "Capture and push rate (default 30)")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	f.BoolVarP(&opts.openBrowser, "open", "o", false, "Open the viewer in a browser when nobody is connected")
	f.BoolVar(&opts.noCapture, "no-capture", false, "Mirror state only, without frames")
	f.BoolVar(&opts.tracing, "tracing", false, "Enable OpenTelemetry spans")

	return cmd
}

// loadServeConfig reads the config file and applies flag overrides.
func loadServeConfig(cmd *cobra.Command, opts serveOptions) (*config.Config, error) {
	cfg, err := config.LoadOptional(opts.configPath, ".")
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("addr") {
		cfg.Address = opts.addr
	}
	if f.Changed("static") {
		cfg.StaticDir = opts.staticDir
	}
	if f.Changed("fps") {
		cfg.Capture.FPS = opts.fps
	}
	if f.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if opts.openBrowser {
		cfg.OpenBrowser = true
	}
	if opts.noCapture {
		cfg.Capture.Disabled = true
	}
	if opts.tracing {
		cfg.Tracing = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := config.ParseLevel(cfg.LogLevel)
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("instance", uuid.NewString())
}

// assetSource picks where viewer files come from: S3 when configured,
// otherwise the static directory, otherwise none.
func assetSource(cfg *config.Config) assets.Source {
	if s := cfg.Assets.S3; s != nil {
		awsCfg := aws.Config{Region: s.Region}
		if s.Endpoint != "" {
			awsCfg.BaseEndpoint = aws.String(s.Endpoint)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = s.Endpoint != ""
		})
		return assets.NewS3Source(client, s.Bucket, s.Prefix)
	}
	if cfg.StaticDir != "" {
		return assets.NewDirSource(cfg.StaticPath())
	}
	return nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	world, err := sim.New(float64(cfg.Capture.Width), float64(cfg.Capture.Height))
	if err != nil {
		return err
	}

	// The app allocates its capture target here, before the host goroutine
	// takes over the world.
	app, err := spc.New(cfg.AppConfig(assetSource(cfg), logger), world)
	if err != nil {
		return err
	}
	world.SetNotifier(app.Notify)

	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return errors.New("E140").Wrap(err).
			WithSuggestion(fmt.Sprintf("Pick another address with --addr (tried %s)", cfg.Address))
	}
	httpSrv := &http.Server{
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	success("Serving on %s", cfg.URL())
	if cfg.StaticDir != "" || cfg.Assets.S3 != nil {
		info("Viewer files from %s", describeAssets(cfg))
	} else {
		warn("No static_dir or assets.s3 configured; only the API and /ws are served")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpSrv.Serve(ln); !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return app.Run(gctx)
	})

	g.Go(func() error {
		runHost(gctx, app, world)
		app.Close()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if cfg.OpenBrowser && app.ConnectionCount() == 0 {
		if err := openURL(cfg.URL()); err != nil {
			logger.Warn("open browser", "error", errors.New("E144").Wrap(err))
		}
	}

	err = g.Wait()
	info("Stopped")
	return err
}

// runHost is the demo host's frame loop. It owns the world: every call into
// the world and every Tick happens on this goroutine.
func runHost(ctx context.Context, app *spc.App, world *sim.World) {
	ticker := time.NewTicker(time.Second / hostRate)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			world.Step(now.Sub(last).Seconds())
			last = now
			app.Tick(now)
		}
	}
}

func describeAssets(cfg *config.Config) string {
	if s := cfg.Assets.S3; s != nil {
		return fmt.Sprintf("s3://%s/%s", s.Bucket, s.Prefix)
	}
	return cfg.StaticPath()
}

// openURL opens a URL in the default browser.
func openURL(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
