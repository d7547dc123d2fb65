// Package tracking keeps per-track lane dwell state for vehicles and turns
// tracks that stopped reporting into finished vehicle events.
package tracking

import (
	"cmp"
	"slices"
	"time"

	"github.com/tphakala/train-spotter/internal/detection"
	"github.com/tphakala/train-spotter/internal/events"
	"github.com/tphakala/train-spotter/internal/geometry"
)

// DefaultStaleTimeout is how long a track may go unseen before it is
// considered to have left.
const DefaultStaleTimeout = 1500 * time.Millisecond

// LaneResolver maps a normalized point to the lane containing it and
// knows the configured lane ids.
type LaneResolver interface {
	LaneAt(p geometry.Point) (string, bool)
	HasLane(id string) bool
}

// TrackState is the dwell record of one tracked vehicle.
type TrackState struct {
	TrackID    int64
	LaneID     string
	ClassLabel string
	EnteredAt  time.Time
	LastSeen   time.Time
}

// Registry owns every active TrackState. It is not safe for concurrent use.
type Registry struct {
	lanes        LaneResolver
	staleTimeout time.Duration
	tracks       map[int64]*TrackState
}

// NewRegistry returns an empty registry. A non-positive staleTimeout uses
// DefaultStaleTimeout.
func NewRegistry(lanes LaneResolver, staleTimeout time.Duration) *Registry {
	if staleTimeout <= 0 {
		staleTimeout = DefaultStaleTimeout
	}
	return &Registry{
		lanes:        lanes,
		staleTimeout: staleTimeout,
		tracks:       make(map[int64]*TrackState),
	}
}

// HandleDetection records that d was seen at ts. A pre-assigned lane on the
// detection takes precedence over point-in-lane resolution but must name a
// configured lane. Detections outside every lane are ignored. It reports
// whether the detection was accepted.
func (r *Registry) HandleDetection(d *detection.Detection, ts time.Time) bool {
	if r.lanes == nil {
		return false
	}

	laneID := d.LaneID
	if laneID != "" {
		if !r.lanes.HasLane(laneID) {
			return false
		}
	} else {
		var ok bool
		if laneID, ok = r.lanes.LaneAt(d.Center()); !ok {
			return false
		}
	}

	if st, ok := r.tracks[d.TrackID]; ok {
		st.LastSeen = ts
		st.LaneID = laneID
		st.ClassLabel = d.ClassLabel
		return true
	}

	r.tracks[d.TrackID] = &TrackState{
		TrackID:    d.TrackID,
		LaneID:     laneID,
		ClassLabel: d.ClassLabel,
		EnteredAt:  ts,
		LastSeen:   ts,
	}
	return true
}

// FinalizeTracks removes every track unseen for at least the stale timeout
// as of ts and returns them as vehicle events ordered by track id.
func (r *Registry) FinalizeTracks(ts time.Time) []events.VehicleEvent {
	var out []events.VehicleEvent
	for id, st := range r.tracks {
		if ts.Sub(st.LastSeen) < r.staleTimeout {
			continue
		}
		out = append(out, events.VehicleEvent{
			TrackID:    st.TrackID,
			ClassLabel: st.ClassLabel,
			LaneID:     st.LaneID,
			EnteredAt:  st.EnteredAt,
			ExitedAt:   st.LastSeen,
			Duration:   max(st.LastSeen.Sub(st.EnteredAt), 0),
		})
		delete(r.tracks, id)
	}

	slices.SortFunc(out, func(a, b events.VehicleEvent) int {
		return cmp.Compare(a.TrackID, b.TrackID)
	})
	return out
}

// Len returns the number of active tracks.
func (r *Registry) Len() int { return len(r.tracks) }

// CountsByLane returns the number of active tracks per lane.
func (r *Registry) CountsByLane() map[string]int {
	counts := make(map[string]int)
	for _, st := range r.tracks {
		counts[st.LaneID]++
	}
	return counts
}
