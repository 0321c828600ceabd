// Package middleware provides the observability layer for the mirror.
//
// # Prometheus Metrics
//
// Metrics implements server.Observer, so the broadcast server reports
// connection, delivery and dispatch counts straight into Prometheus. Its
// Handler method instruments chi routes.
//
//	m := middleware.NewMetrics(middleware.WithRegistry(reg))
//	srv.SetObserver(m)
//	r.Use(m.Handler)
//	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// Metrics collected:
//   - spc_connections_active: Current number of viewers
//   - spc_messages_sent_total: Messages delivered by kind
//   - spc_controls_total: Control messages dispatched by type
//   - spc_http_requests_total: API requests by route and status
//
// # OpenTelemetry
//
// Tracing starts a server span per HTTP request; TraceControls wraps the
// control handler so each replayed input gets its own span.
//
//	r.Use(middleware.Tracing())
//	handler := middleware.TraceControls(replayer)
//
// Both resolve their tracer from the global provider unless
// WithTracerProvider is given.
package middleware
