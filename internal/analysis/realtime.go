package analysis

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/train-spotter/internal/analysis/processor"
	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/datastore"
	"github.com/tphakala/train-spotter/internal/errors"
	"github.com/tphakala/train-spotter/internal/events"
	"github.com/tphakala/train-spotter/internal/httpcontroller"
	"github.com/tphakala/train-spotter/internal/ingest"
	"github.com/tphakala/train-spotter/internal/logger"
	"github.com/tphakala/train-spotter/internal/mqtt"
	"github.com/tphakala/train-spotter/internal/observability"
	"github.com/tphakala/train-spotter/internal/overlay"
	"github.com/tphakala/train-spotter/internal/roi"
	"github.com/tphakala/train-spotter/internal/telemetry"
)

// RealtimeOptions tunes RealtimeAnalysis.
type RealtimeOptions struct {
	// WebOnly serves the dashboard and history without reading detections.
	WebOnly bool
	// Version is reported to error telemetry.
	Version string
}

// RealtimeAnalysis runs the service until the input is exhausted, ctx is
// cancelled or SIGINT/SIGTERM arrives, then shuts every component down in
// reverse start order.
func RealtimeAnalysis(ctx context.Context, settings *conf.Settings, opts RealtimeOptions) error {
	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	log := GetLogger().With(logger.String("session_id", uuid.New().String()))

	if err := telemetry.InitSentry(settings, opts.Version); err != nil {
		log.Warn("error reporting unavailable", logger.Error(err))
	}
	defer telemetry.Flush()

	rotateCtx, stopRotate := context.WithCancel(ctx)
	var rotation sync.WaitGroup
	rotation.Go(func() { watchLogRotation(rotateCtx, log) })
	defer func() {
		stopRotate()
		rotation.Wait()
	}()

	var model *roi.Model
	var cfg Config
	if !opts.WebOnly {
		m, err := LoadModel(settings)
		if err != nil {
			return err
		}
		model = m
		if cfg, err = ConfigFromSettings(settings); err != nil {
			return err
		}
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return errors.New(err).
			Component("analysis").
			Category(errors.CategorySystem).
			Build()
	}

	bus := events.NewBus(
		events.WithDefaultCapacity(settings.EventBus.Capacity),
		events.WithMetrics(metrics.EventBus),
	)
	defer bus.Stop()

	store, err := openDataStore(settings, metrics)
	if err != nil {
		return err
	}
	if store != nil {
		defer closeDataStore(store)
	}

	client, err := connectMQTT(ctx, settings, metrics, log)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Disconnect()
	}

	// Consumers outlive the signal context so Stop can drain them in order.
	workerCtx := context.WithoutCancel(ctx)

	proc := processor.New(bus, settings.EventBus.Capacity,
		processor.ActionsFromSettings(settings, store, client),
		processor.WithMetrics(metrics.Processor))
	proc.Start(workerCtx)

	display := overlay.New(bus, settings.EventBus.Capacity)
	display.Start(workerCtx)

	serveCtx, stopServing := context.WithCancel(workerCtx)
	var servers sync.WaitGroup
	startServers(serveCtx, &servers, settings, store, display, bus, metrics, log)

	runErr := run(ctx, settings, opts, model, cfg, bus, client, metrics, log)

	log.Info("shutting down")
	display.Stop()
	proc.Stop()
	bus.Stop()
	stopServing()
	servers.Wait()

	log.Info("shutdown complete",
		logger.Uint64("events_processed", proc.Processed()),
		logger.Uint64("events_failed", proc.Failed()))
	return runErr
}

// run drives ingest and the heartbeat until the input ends or ctx is done.
func run(ctx context.Context, settings *conf.Settings, opts RealtimeOptions, model *roi.Model, cfg Config,
	bus *events.Bus, client mqtt.Client, metrics *observability.Metrics, log logger.Logger) error {
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var hb sync.WaitGroup
	hb.Go(func() { heartbeat(hbCtx, bus, settings.Heartbeat.Interval) })
	defer func() {
		stopHeartbeat()
		hb.Wait()
	}()

	if opts.WebOnly {
		log.Info("web-only mode, detection ingest disabled")
		<-ctx.Done()
		return nil
	}

	source, err := ingest.FromSettings(settings, client, ingest.WithMetrics(metrics.Ingest))
	if err != nil {
		return err
	}

	analytics, err := NewAnalytics(model, bus, cfg, WithMetrics(metrics.Analytics))
	if err != nil {
		return err
	}

	log.Info("realtime analysis started",
		logger.String("camera_id", model.CameraID()),
		logger.String("source", source.Name()),
		logger.Int("lanes", len(model.Lanes())),
		logger.String("train_labels", strings.Join(cfg.TrainLabels.Strings(), ",")),
		logger.String("vehicle_labels", strings.Join(cfg.VehicleLabels.Strings(), ",")))

	if err := source.Run(ctx, analytics.ProcessFrame); err != nil {
		return err
	}

	if analytics.TrainActive() {
		log.Info("input ended while a train was passing, pass not recorded")
	}
	log.Info("ingest finished",
		logger.Uint64("frames", analytics.Frames()),
		logger.Time("last_frame", analytics.LastFrameTime()),
		logger.Int("open_tracks", analytics.ActiveTracks()))
	return nil
}

// heartbeat publishes a HEARTBEAT event every interval until ctx is done.
func heartbeat(ctx context.Context, bus *events.Bus, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			bus.Publish(events.NewHeartbeat(now))
		}
	}
}

// watchLogRotation rotates the log file on SIGHUP until ctx is done.
func watchLogRotation(ctx context.Context, log logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := logger.Global().Rotate(); err != nil {
				log.Warn("log rotation failed", logger.Error(err))
				continue
			}
			log.Info("log file rotated")
		}
	}
}

// openDataStore opens the enabled backend. It returns nil when none is enabled.
func openDataStore(settings *conf.Settings, metrics *observability.Metrics) (datastore.Interface, error) {
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		GetLogger().Info("no database enabled, events will not be persisted")
		return nil, nil
	}

	store, err := datastore.New(settings, datastore.WithMetrics(metrics.Datastore))
	if err != nil {
		return nil, err
	}
	if err := store.Open(); err != nil {
		return nil, err
	}
	return store, nil
}

// closeDataStore attempts to close the database connection and logs the result.
func closeDataStore(store datastore.Interface) {
	if err := store.Close(); err != nil {
		GetLogger().Error("failed to close database", logger.Error(err))
		return
	}
	GetLogger().Info("database closed")
}

// connectMQTT returns a connected client when MQTT is enabled. A failed
// connection is fatal only when detections arrive over MQTT; event
// publishing retries on its own.
func connectMQTT(ctx context.Context, settings *conf.Settings, metrics *observability.Metrics, log logger.Logger) (mqtt.Client, error) {
	if !settings.MQTT.Enabled {
		return nil, nil
	}

	client, err := mqtt.NewClient(mqtt.ConfigFromSettings(settings), metrics.MQTT)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		if settings.Input.Source == conf.InputMQTT {
			return nil, err
		}
		log.Warn("MQTT connection failed, events will not be published until it recovers",
			logger.String("broker", settings.MQTT.Broker),
			logger.Error(err))
	}
	return client, nil
}

// startServers starts the dashboard server, or the standalone metrics
// endpoint when the dashboard is disabled.
func startServers(ctx context.Context, wg *sync.WaitGroup, settings *conf.Settings, store datastore.Interface,
	display *overlay.Overlay, bus *events.Bus, metrics *observability.Metrics, log logger.Logger) {
	switch {
	case settings.WebServer.Enabled:
		server := httpcontroller.New(settings, store,
			httpcontroller.WithOverlay(display),
			httpcontroller.WithBusStats(bus),
			httpcontroller.WithMetrics(metrics))
		wg.Go(func() {
			if err := server.Start(ctx); err != nil {
				log.Error("HTTP server failed", logger.Error(err))
			}
		})
	case settings.Telemetry.Enabled:
		endpoint, err := observability.NewEndpoint(settings, metrics)
		if err != nil {
			log.Error("error initializing telemetry endpoint", logger.Error(err))
			return
		}
		wg.Go(func() {
			if err := endpoint.Run(ctx); err != nil {
				log.Error("telemetry endpoint failed", logger.Error(err))
			}
		})
	}
}
