// Package httpcontroller serves the dashboard JSON API: live status, the
// overlay snapshot, train and vehicle history and Prometheus metrics.
package httpcontroller

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/datastore"
	"github.com/tphakala/train-spotter/internal/events"
	"github.com/tphakala/train-spotter/internal/logger"
	"github.com/tphakala/train-spotter/internal/observability"
	"github.com/tphakala/train-spotter/internal/overlay"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// OverlaySource provides the live display state.
type OverlaySource interface {
	Snapshot() overlay.Snapshot
}

// BusStatsSource provides event bus counters.
type BusStatsSource interface {
	Stats() events.BusStats
}

// Server encapsulates Echo server and related configurations.
type Server struct {
	Echo     *echo.Echo
	DS       datastore.Interface
	Settings *conf.Settings

	overlay   OverlaySource
	bus       BusStatsSource
	metrics   *observability.Metrics
	history   *cache.Cache
	startedAt time.Time
	log       logger.Logger
}

// Option configures the server.
type Option func(*Server)

// WithOverlay exposes live display state on /api/v1/overlay and /api/v1/status.
func WithOverlay(o OverlaySource) Option {
	return func(s *Server) { s.overlay = o }
}

// WithBusStats includes event bus counters in /api/v1/status.
func WithBusStats(b BusStatsSource) Option {
	return func(s *Server) { s.bus = b }
}

// WithMetrics serves /metrics and records request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger overrides the module logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// New builds the server and registers routes. ds may be nil when no
// database is enabled; history endpoints then answer 503.
func New(settings *conf.Settings, ds datastore.Interface, opts ...Option) *Server {
	s := &Server{
		Echo:      echo.New(),
		DS:        ds,
		Settings:  settings,
		startedAt: time.Now(),
		log:       logger.Global().Module("http"),
	}
	for _, opt := range opts {
		opt(s)
	}

	ttl := settings.WebServer.HistoryCacheTTL
	if ttl > 0 {
		s.history = cache.New(ttl, 2*ttl)
	}

	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.configureMiddleware()
	s.initRoutes()
	return s
}

// Start serves on webserver.port until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.Settings.WebServer.Port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Echo.Listener = ln

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server started", logger.String("address", ln.Addr().String()))
		errCh <- s.Echo.Start("")
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Echo.Shutdown(shutdownCtx); err != nil {
		s.log.Error("HTTP server shutdown error", logger.Error(err))
		return err
	}
	<-errCh
	s.log.Info("HTTP server stopped")
	return nil
}
