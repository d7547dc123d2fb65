// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/tphakala/train-spotter/internal/detection"
	"github.com/tphakala/train-spotter/internal/errors"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ErrorCategory lets the errors package classify settings failures.
func (ve ValidationError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryValidation
}

// ValidateSettings validates the entire Settings struct and reports every
// violation at once.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) []string{
		validateTrainDetectionSettings,
		validateVehicleTrackingSettings,
		validateRuntimeSettings,
		validateInputSettings,
		validateOutputSettings,
		validateMQTTSettings,
		validateWebServerSettings,
		validateTelemetrySettings,
	}
	for _, validate := range validators {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateTrainDetectionSettings(s *Settings) []string {
	var errs []string
	td := &s.TrainDetection

	if td.CoverageThreshold <= 0 || td.CoverageThreshold > 1 {
		errs = append(errs, fmt.Sprintf("traindetection.coveragethreshold must be in (0, 1], got %g", td.CoverageThreshold))
	}
	if td.HitThreshold < 1 {
		errs = append(errs, fmt.Sprintf("traindetection.hitthreshold must be at least 1, got %d", td.HitThreshold))
	}
	if td.MissThreshold < 1 {
		errs = append(errs, fmt.Sprintf("traindetection.missthreshold must be at least 1, got %d", td.MissThreshold))
	}
	if td.MinDuration < 0 {
		errs = append(errs, "traindetection.minduration must not be negative")
	}
	if td.MinBoxArea < 0 {
		errs = append(errs, "traindetection.minboxarea must not be negative")
	}
	if len(td.Labels) == 0 {
		errs = append(errs, "traindetection.labels must name at least one label")
	} else if _, err := detection.ParseLabelSet(td.Labels); err != nil {
		errs = append(errs, "traindetection.labels: "+err.Error())
	}

	return errs
}

func validateVehicleTrackingSettings(s *Settings) []string {
	var errs []string
	vt := &s.VehicleTracking

	if vt.StaleTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("vehicletracking.staletimeout must be positive, got %s", vt.StaleTimeout))
	}
	if _, err := detection.ParseLabelSet(vt.Labels); err != nil {
		errs = append(errs, "vehicletracking.labels: "+err.Error())
	}

	return errs
}

func validateRuntimeSettings(s *Settings) []string {
	var errs []string

	if strings.TrimSpace(s.Camera.ROIConfig) == "" {
		errs = append(errs, "camera.roiconfig is required")
	}
	if s.EventBus.Capacity < 1 {
		errs = append(errs, fmt.Sprintf("eventbus.capacity must be at least 1, got %d", s.EventBus.Capacity))
	}
	if s.Heartbeat.Interval < 0 {
		errs = append(errs, "heartbeat.interval must not be negative")
	}

	return errs
}

func validateInputSettings(s *Settings) []string {
	switch s.Input.Source {
	case InputFile:
		if s.Input.Path == "" {
			return []string{"input.path is required for file input"}
		}
	case InputMQTT:
		if !s.MQTT.Enabled {
			return []string{"input.source mqtt requires mqtt.enabled"}
		}
		if s.MQTT.DetectionTopic == "" {
			return []string{"mqtt.detectiontopic is required for mqtt input"}
		}
	default:
		return []string{fmt.Sprintf("input.source must be %q or %q, got %q", InputFile, InputMQTT, s.Input.Source)}
	}
	return nil
}

func validateOutputSettings(s *Settings) []string {
	var errs []string

	if s.Output.SQLite.Enabled && s.Output.MySQL.Enabled {
		errs = append(errs, "only one of output.sqlite and output.mysql can be enabled")
	}
	if s.Output.SQLite.Enabled && s.Output.SQLite.Path == "" {
		errs = append(errs, "output.sqlite.path is required")
	}
	if s.Output.MySQL.Enabled {
		my := &s.Output.MySQL
		if my.Host == "" || my.Database == "" || my.Username == "" {
			errs = append(errs, "output.mysql requires host, database and username")
		}
		if my.Port <= 0 || my.Port > 65535 {
			errs = append(errs, fmt.Sprintf("output.mysql.port %d is out of range", my.Port))
		}
	}

	return errs
}

func validateMQTTSettings(s *Settings) []string {
	if !s.MQTT.Enabled {
		return nil
	}

	var errs []string
	if s.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required when MQTT is enabled")
	} else if u, err := url.Parse(s.MQTT.Broker); err != nil || u.Host == "" {
		errs = append(errs, fmt.Sprintf("mqtt.broker %q is not a valid broker URL", s.MQTT.Broker))
	}
	if s.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic is required when MQTT is enabled")
	}
	if s.MQTT.QoS > 2 {
		errs = append(errs, fmt.Sprintf("mqtt.qos must be 0, 1 or 2, got %d", s.MQTT.QoS))
	}

	return errs
}

func validateWebServerSettings(s *Settings) []string {
	if !s.WebServer.Enabled {
		return nil
	}

	port, err := strconv.Atoi(s.WebServer.Port)
	if err != nil || port < 1 || port > 65535 {
		return []string{fmt.Sprintf("webserver.port %q is not a valid port", s.WebServer.Port)}
	}
	if s.WebServer.HistoryCacheTTL < 0 {
		return []string{"webserver.historycachettl must not be negative"}
	}
	return nil
}

func validateTelemetrySettings(s *Settings) []string {
	var errs []string

	if s.Telemetry.Enabled {
		if _, _, err := net.SplitHostPort(s.Telemetry.Listen); err != nil {
			errs = append(errs, fmt.Sprintf("telemetry.listen %q is not a host:port address", s.Telemetry.Listen))
		}
	}
	if s.Telemetry.Sentry.Enabled && s.Telemetry.Sentry.DSN == "" {
		errs = append(errs, "telemetry.sentry.dsn is required when Sentry is enabled")
	}

	return errs
}
