package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/tipjar/service/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is reported by /health and set at build time.
var Version = "dev"

// Server is the tip jar page and JSON API server.
type Server struct {
	addr     string
	tipjar   TipJar
	events   EventSource
	renderer *TemplateRenderer
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	server   *http.Server
}

// New creates a new HTTP server.
// events is optional; without it the stream endpoint is not registered.
// m is optional; without it /metrics is not registered.
func New(addr string, tj TipJar, events EventSource, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:     addr,
		tipjar:   tj,
		events:   events,
		metrics:  m,
		gatherer: prometheus.DefaultGatherer,
		logger:   logger,
	}
}

// WithGatherer serves /metrics from g instead of the default registry.
func (s *Server) WithGatherer(g prometheus.Gatherer) *Server {
	s.gatherer = g
	return s
}

// WithTemplates adds template rendering support to the server using embedded files
func (s *Server) WithTemplates() error {
	renderer, err := NewTemplateRenderer(s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}
	s.renderer = renderer
	s.logger.Info("HTML templates loaded from embedded files")
	return nil
}

// Handler builds the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, pattern)(h))
	}

	handle("GET /api/v1/tipjar", handleGetTipJar(s.tipjar, s.logger))
	handle("POST /api/v1/tips", handleSendTip(s.tipjar, s.logger))
	handle("POST /api/v1/withdrawals", handleWithdraw(s.tipjar, s.logger))
	handle("POST /api/v1/wallet/connect", handleConnect(s.tipjar, s.logger))
	handle("POST /api/v1/wallet/disconnect", handleDisconnect(s.tipjar))
	handle("GET /api/v1/pay-uri", handleGetPayURI(s.tipjar, s.logger))
	handle("GET /qr.png", handleQRCode(s.tipjar, s.logger))

	if s.events != nil {
		handle("GET /api/v1/stream/events", handleStreamEvents(s.events, s.tipjar.Address().String(), s.metrics, s.logger))
		s.logger.Info("SSE streaming endpoint enabled")
	} else {
		s.logger.Warn("NATS not configured, streaming endpoint disabled")
	}

	if s.renderer != nil {
		handle("GET /{$}", handleIndex(s.tipjar, s.renderer, s.events != nil))
		handle("POST /tip", handleTipForm(s.tipjar, s.logger))
		handle("POST /withdraw", handleWithdrawForm(s.tipjar, s.logger))
		handle("POST /wallet/connect", handleConnectForm(s.tipjar, s.logger))
		handle("POST /wallet/disconnect", handleDisconnectForm(s.tipjar))
		mux.HandleFunc("GET /favicon.svg", handleFavicon())
		mux.HandleFunc("GET /favicon.ico", handleFavicon())
		s.logger.Info("HTML page endpoints enabled")
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok", "version": Version}, http.StatusOK)
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No write timeout: SSE streams and confirmation waits are bounded
		// by the request context instead.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
