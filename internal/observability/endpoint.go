package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/logger"
	metricspkg "github.com/tphakala/train-spotter/internal/observability/metrics"
)

// Endpoint serves metrics and profiling handlers on the telemetry address.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
}

// NewEndpoint creates the telemetry endpoint. It fails when telemetry is
// disabled in settings.
func NewEndpoint(settings *conf.Settings, metrics *Metrics) (*Endpoint, error) {
	if !settings.Telemetry.Enabled {
		return nil, errors.New("telemetry not enabled in settings")
	}

	return &Endpoint{
		listenAddress: settings.Telemetry.Listen,
		metrics:       metrics,
	}, nil
}

// RegisterDebugHandlers adds the pprof handlers under /debug/pprof/.
func RegisterDebugHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}

// Run listens on the configured address until ctx is cancelled, then shuts
// the server down.
func (e *Endpoint) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return err
	}
	return e.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (e *Endpoint) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)
	RegisterDebugHandlers(mux)

	e.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Telemetry endpoint starting", logger.String("address", ln.Addr().String()))
		errCh <- e.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Stopping telemetry server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(shutdownCtx); err != nil {
		log.Error("Telemetry server shutdown error", logger.Error(err))
		return err
	}
	<-errCh
	return nil
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}
