package analysis

import (
	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/detection"
	"github.com/tphakala/train-spotter/internal/errors"
	"github.com/tphakala/train-spotter/internal/logger"
	"github.com/tphakala/train-spotter/internal/roi"
	"github.com/tphakala/train-spotter/internal/train"
)

// ConfigFromSettings converts the train detection and vehicle tracking
// settings into an analysis Config. Empty label lists keep the defaults.
func ConfigFromSettings(settings *conf.Settings) (Config, error) {
	cfg := DefaultConfig()

	td := settings.TrainDetection
	cfg.Train = train.Config{
		CoverageThreshold: td.CoverageThreshold,
		MinDuration:       td.MinDuration,
		HitThreshold:      td.HitThreshold,
		MissThreshold:     td.MissThreshold,
	}
	cfg.MinTrainBoxArea = td.MinBoxArea

	vt := settings.VehicleTracking
	cfg.StaleTimeout = vt.StaleTimeout
	cfg.ApplyExclusionZones = vt.ApplyExclusionZones

	if len(td.Labels) > 0 {
		labels, err := detection.ParseLabelSet(td.Labels)
		if err != nil {
			return Config{}, labelError("traindetection.labels", err)
		}
		cfg.TrainLabels = labels
	}
	if len(vt.Labels) > 0 {
		labels, err := detection.ParseLabelSet(vt.Labels)
		if err != nil {
			return Config{}, labelError("vehicletracking.labels", err)
		}
		cfg.VehicleLabels = labels
	}

	if err := cfg.Train.Validate(); err != nil {
		return Config{}, errors.New(err).
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return cfg, nil
}

func labelError(key string, err error) error {
	return errors.New(err).
		Component("analysis").
		Category(errors.CategoryConfiguration).
		Context("setting", key).
		Build()
}

// LoadModel reads the ROI configuration named in settings and builds the
// region model, warning when its camera id differs from camera.id.
func LoadModel(settings *conf.Settings) (*roi.Model, error) {
	cfg, err := roi.Load(settings.Camera.ROIConfig)
	if err != nil {
		return nil, err
	}
	if settings.Camera.ID != "" && cfg.CameraID != settings.Camera.ID {
		GetLogger().Warn("camera id differs between settings and ROI configuration",
			logger.String("settings", settings.Camera.ID),
			logger.String("roi", cfg.CameraID))
	}
	return roi.NewModel(cfg)
}
