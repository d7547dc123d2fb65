package roi

import (
	"github.com/tphakala/train-spotter/internal/errors"
	"github.com/tphakala/train-spotter/internal/geometry"
)

// Model is the immutable runtime view of a validated Config.
type Model struct {
	cameraID   string
	trainZone  []geometry.Point
	trainBox   geometry.Box
	trainArea  float64
	lanes      []Lane
	laneIDs    map[string]struct{}
	exclusions []Region
}

// NewModel validates cfg and precomputes the train zone bounds and area.
func NewModel(cfg *Config) (*Model, error) {
	if cfg == nil {
		return nil, errors.Newf("ROI configuration is nil").
			Component("roi").
			Category(errors.CategoryValidation).
			Build()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.New(err).
			Component("roi").
			Category(errors.CategoryValidation).
			Build()
	}

	m := &Model{
		cameraID:   cfg.CameraID,
		trainZone:  append([]geometry.Point(nil), cfg.TrainROI.Points...),
		lanes:      append([]Lane(nil), cfg.RoadLanes...),
		laneIDs:    make(map[string]struct{}, len(cfg.RoadLanes)),
		exclusions: append([]Region(nil), cfg.ExclusionZones...),
	}
	m.trainBox = geometry.PolygonBounds(m.trainZone)
	m.trainArea = geometry.PolygonArea(m.trainZone)
	for i := range m.lanes {
		m.laneIDs[m.lanes[i].ID] = struct{}{}
	}

	return m, nil
}

// CameraID returns the camera the regions belong to.
func (m *Model) CameraID() string { return m.cameraID }

// TrainZoneBounds returns the axis-aligned bounds of the train zone.
func (m *Model) TrainZoneBounds() geometry.Box { return m.trainBox }

// TrainZoneArea returns the polygon area of the train zone. Coverage is
// reported as 0 when this is not positive.
func (m *Model) TrainZoneArea() float64 { return m.trainArea }

// Lanes returns the lanes in configuration order.
func (m *Model) Lanes() []Lane { return m.lanes }

// HasLane reports whether id names a configured lane.
func (m *Model) HasLane(id string) bool {
	_, ok := m.laneIDs[id]
	return ok
}

// LaneAt returns the first lane, in configuration order, whose polygon
// contains p. Overlapping lanes are not detected.
func (m *Model) LaneAt(p geometry.Point) (string, bool) {
	for i := range m.lanes {
		if geometry.PointInPolygon(p, m.lanes[i].Polygon.Points) {
			return m.lanes[i].ID, true
		}
	}
	return "", false
}

// InExclusionZone reports whether p falls inside any exclusion zone.
func (m *Model) InExclusionZone(p geometry.Point) bool {
	for i := range m.exclusions {
		if geometry.PointInPolygon(p, m.exclusions[i].Points) {
			return true
		}
	}
	return false
}
