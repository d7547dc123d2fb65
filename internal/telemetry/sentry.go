// Package telemetry wires opt-in error reporting to Sentry.
package telemetry

import (
	"fmt"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/errors"
	"github.com/tphakala/train-spotter/internal/logger"
)

// FlushTimeout bounds how long Flush waits for queued reports.
const FlushTimeout = 2 * time.Second

var log = logger.Global().Module("telemetry")

// InitSentry initializes the Sentry SDK and routes enhanced errors to it.
// It does nothing unless telemetry.sentry.enabled is set.
func InitSentry(settings *conf.Settings, release string) error {
	return initSentry(settings, release, nil)
}

func initSentry(settings *conf.Settings, release string, transport sentry.Transport) error {
	if !settings.Telemetry.Sentry.Enabled {
		log.Debug("Sentry error reporting is disabled")
		return nil
	}
	if settings.Telemetry.Sentry.DSN == "" {
		return errors.Newf("telemetry.sentry.dsn is required when Sentry is enabled").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	opts := sentry.ClientOptions{
		Dsn:              settings.Telemetry.Sentry.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",
		Release:          "train-spotter@" + release,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	}
	if transport != nil {
		opts.Transport = transport
	}

	if err := sentry.Init(opts); err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	configureScope(settings)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	log.Info("Sentry error reporting enabled", logger.String("release", opts.Release))
	return nil
}

// configureScope tags every event with the instance and platform.
func configureScope(settings *conf.Settings) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("camera_id", settings.Camera.ID)
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetContext("application", map[string]any{
			"name":       settings.Main.Name,
			"go_version": runtime.Version(),
		})
	})
}

// applyPrivacyFilters strips host identifying data from an outgoing event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}

// Flush waits for queued reports to be sent and detaches the error
// reporter. Safe to call when Sentry was never initialized.
func Flush() {
	errors.SetTelemetryReporter(nil)
	if sentry.CurrentHub().Client() == nil {
		return
	}
	if !sentry.Flush(FlushTimeout) {
		log.Warn("Sentry flush timed out", logger.Duration("timeout", FlushTimeout))
	}
}
