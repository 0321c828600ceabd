package middleware

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/spc-dev/spc/pkg/protocol"
	"github.com/spc-dev/spc/pkg/server"
)

const defaultTracerName = "spc"

// OTelConfig configures OpenTelemetry tracing.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "spc").
	TracerName string

	// TracerProvider resolves the tracer. Default: the global provider.
	TracerProvider trace.TracerProvider

	// Filter determines which requests to trace.
	// Return true to trace the request, false to skip.
	// If nil, all requests are traced.
	Filter func(r *http.Request) bool

	// AttributeExtractor adds custom attributes to request spans.
	AttributeExtractor func(r *http.Request) []attribute.KeyValue
}

// OTelOption configures OpenTelemetry tracing.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithRequestFilter sets a filter function for requests.
func WithRequestFilter(filter func(r *http.Request) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(r *http.Request) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func newOTelConfig(opts []OTelOption) OTelConfig {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

func (c OTelConfig) tracer() trace.Tracer {
	if c.TracerProvider != nil {
		return c.TracerProvider.Tracer(c.TracerName)
	}
	return otel.Tracer(c.TracerName)
}

// Tracing returns an HTTP middleware that starts a server span per request.
// The span is renamed to the matched chi route once the handler returns, and
// 5xx responses mark it as failed. Handlers reach the span through
// trace.SpanFromContext(r.Context()).
//
// The tracer uses the global OpenTelemetry tracer provider unless
// WithTracerProvider is given. Configure it in main() before serving:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func Tracing(opts ...OTelOption) func(http.Handler) http.Handler {
	config := newOTelConfig(opts)
	tracer := config.tracer()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.Filter != nil && !config.Filter(r) {
				next.ServeHTTP(w, r)
				return
			}

			attrs := []attribute.KeyValue{
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			}
			if config.AttributeExtractor != nil {
				attrs = append(attrs, config.AttributeExtractor(r)...)
			}

			ctx, span := tracer.Start(r.Context(),
				fmt.Sprintf("%s %s", r.Method, r.URL.Path),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			r = r.WithContext(ctx)
			next.ServeHTTP(rec, r)

			route := routePattern(r)
			span.SetName(fmt.Sprintf("%s %s", r.Method, route))
			span.SetAttributes(
				attribute.String("http.route", route),
				attribute.Int("http.status_code", rec.status),
			)
			if rec.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.status))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}

// statusRecorder captures the response status for the span. It forwards
// Hijack so websocket upgrades still work behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("middleware: response writer does not support hijacking")
	}
	return h.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// TraceControls wraps h so each control message runs inside an internal
// span named after its type.
func TraceControls(h server.ControlHandler, opts ...OTelOption) server.ControlHandler {
	tracer := newOTelConfig(opts).tracer()
	return server.ControlHandlerFunc(func(c protocol.Control) {
		attrs := []attribute.KeyValue{
			attribute.String("spc.control_type", string(c.Type)),
		}
		if c.Type.IsKey() {
			attrs = append(attrs, attribute.Int("spc.key", c.Key))
		}
		_, span := tracer.Start(context.Background(),
			"spc.control."+string(c.Type),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		defer span.End()
		h.HandleControl(c)
	})
}
