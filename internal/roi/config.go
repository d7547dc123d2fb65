// Package roi loads, validates and models the regions of interest of a
// camera view: the train detection zone and the road lanes.
package roi

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/train-spotter/internal/errors"
	"github.com/tphakala/train-spotter/internal/geometry"
)

// DefaultCameraID is used when the configuration omits camera_id.
const DefaultCameraID = "camera0"

// Region is a named polygon in normalized frame coordinates.
type Region struct {
	Label  string           `json:"label"`
	Points []geometry.Point `json:"points"`
}

// Lane is a road lane used for vehicle dwell tracking. ExitLine is reserved
// for crossing detection and must have exactly two points when present.
type Lane struct {
	ID       string           `json:"lane_id"`
	Polygon  Region           `json:"polygon"`
	ExitLine []geometry.Point `json:"exit_line"`
}

// Config is the on-disk ROI configuration.
type Config struct {
	CameraID       string         `json:"camera_id"`
	TrainROI       *Region        `json:"train_roi"`
	RoadLanes      []Lane         `json:"road_lanes"`
	ExclusionZones []Region       `json:"exclusion_zones"`
	Metadata       map[string]any `json:"metadata"`
}

// ValidationError collects every problem found in a configuration.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("invalid ROI configuration: %s", strings.Join(ve.Errors, "; "))
}

// ErrorCategory lets the errors package classify validation failures.
func (ve ValidationError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryValidation
}

// Validate checks every region and lane and returns a ValidationError
// listing all violations.
func (c *Config) Validate() error {
	var ve ValidationError

	if c.TrainROI == nil {
		ve.Errors = append(ve.Errors, "train_roi is required")
	} else {
		ve.Errors = append(ve.Errors, validateRegion("train_roi", c.TrainROI)...)
	}

	seen := make(map[string]bool, len(c.RoadLanes))
	for i := range c.RoadLanes {
		lane := &c.RoadLanes[i]
		name := fmt.Sprintf("road_lanes[%d]", i)

		switch {
		case strings.TrimSpace(lane.ID) == "":
			ve.Errors = append(ve.Errors, name+": lane_id is required")
		case seen[lane.ID]:
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: duplicate lane_id %q", name, lane.ID))
		default:
			seen[lane.ID] = true
		}

		ve.Errors = append(ve.Errors, validateRegion(name+".polygon", &lane.Polygon)...)

		if lane.ExitLine != nil {
			if len(lane.ExitLine) != 2 {
				ve.Errors = append(ve.Errors, fmt.Sprintf("%s.exit_line: must contain exactly two points, got %d", name, len(lane.ExitLine)))
			}
			for j, p := range lane.ExitLine {
				if !p.InUnitRange() {
					ve.Errors = append(ve.Errors, fmt.Sprintf("%s.exit_line[%d]: coordinate (%g, %g) outside 0-1 range", name, j, p.X, p.Y))
				}
			}
		}
	}

	for i := range c.ExclusionZones {
		ve.Errors = append(ve.Errors, validateRegion(fmt.Sprintf("exclusion_zones[%d]", i), &c.ExclusionZones[i])...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateRegion(name string, r *Region) []string {
	var errs []string
	if len(r.Points) < 3 {
		errs = append(errs, fmt.Sprintf("%s: polygon requires at least three vertices, got %d", name, len(r.Points)))
	}
	for i, p := range r.Points {
		if !p.InUnitRange() {
			errs = append(errs, fmt.Sprintf("%s.points[%d]: coordinate (%g, %g) outside 0-1 range", name, i, p.X, p.Y))
		}
	}
	return errs
}

// Parse decodes and validates a configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.New(fmt.Errorf("failed to parse ROI configuration: %w", err)).
			Component("roi").
			Category(errors.CategoryFileParsing).
			Build()
	}

	if cfg.CameraID == "" {
		cfg.CameraID = DefaultCameraID
	}
	if cfg.Metadata == nil {
		cfg.Metadata = map[string]any{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.New(err).
			Component("roi").
			Category(errors.CategoryValidation).
			Build()
	}

	return &cfg, nil
}

// Load reads, decodes and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("ROI configuration not found: %w", err)).
			Component("roi").
			Category(errors.CategoryFileIO).
			FileContext(path).
			Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as indented JSON. The file is replaced
// atomically so a reader never sees a partial write.
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return errors.New(err).
			Component("roi").
			Category(errors.CategoryValidation).
			Build()
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.New(err).Component("roi").Category(errors.CategoryFileParsing).Build()
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".roi-*.json")
	if err != nil {
		return errors.FileError(err, path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.FileError(err, path)
	}
	if err := tmp.Close(); err != nil {
		return errors.FileError(err, path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.FileError(err, path)
	}
	return nil
}
