package tracking

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/train-spotter/internal/detection"
	"github.com/tphakala/train-spotter/internal/events"
	"github.com/tphakala/train-spotter/internal/geometry"
)

var t0 = time.Unix(1_718_000_000, 0)

// halves splits the frame vertically into a "west" and an "east" lane.
type halves struct{}

func (halves) HasLane(id string) bool { return id == "west" || id == "east" || id == "ramp" }

func (halves) LaneAt(p geometry.Point) (string, bool) {
	switch {
	case p.Y < 0.5:
		return "", false
	case p.X < 0.5:
		return "west", true
	default:
		return "east", true
	}
}

// car returns a 100x100 pixel detection centred at (cx, cy) on a 1000x1000 frame.
func car(id int64, cx, cy float64) *detection.Detection {
	d := detection.New(id, "car", 0.9,
		detection.BoundingBox{Left: cx*1000 - 50, Top: cy*1000 - 50, Width: 100, Height: 100},
		1000, 1000)
	return &d
}

func TestSingleTrackBecomesOneEvent(t *testing.T) {
	t.Parallel()

	r := NewRegistry(halves{}, time.Second)

	for i := range 5 {
		ts := t0.Add(time.Duration(i) * 100 * time.Millisecond)
		require.True(t, r.HandleDetection(car(7, 0.25, 0.75), ts))
		assert.Empty(t, r.FinalizeTracks(ts))
	}
	assert.Equal(t, 1, r.Len())

	last := t0.Add(400 * time.Millisecond)
	assert.Empty(t, r.FinalizeTracks(last.Add(999*time.Millisecond)))

	got := r.FinalizeTracks(last.Add(time.Second))
	want := []events.VehicleEvent{{
		TrackID:    7,
		ClassLabel: "car",
		LaneID:     "west",
		EnteredAt:  t0,
		ExitedAt:   last,
		Duration:   400 * time.Millisecond,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FinalizeTracks mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, r.Len())
}

func TestFinalizeTracksIsIdempotent(t *testing.T) {
	t.Parallel()

	r := NewRegistry(halves{}, time.Second)
	r.HandleDetection(car(1, 0.25, 0.75), t0)

	ts := t0.Add(5 * time.Second)
	assert.Len(t, r.FinalizeTracks(ts), 1)
	assert.Empty(t, r.FinalizeTracks(ts))
	assert.Empty(t, r.FinalizeTracks(ts.Add(time.Minute)))
}

func TestDetectionOutsideLanesIsIgnored(t *testing.T) {
	t.Parallel()

	r := NewRegistry(halves{}, time.Second)
	assert.False(t, r.HandleDetection(car(1, 0.5, 0.2), t0))
	assert.Zero(t, r.Len())

	noLanes := NewRegistry(nil, time.Second)
	assert.False(t, noLanes.HandleDetection(car(1, 0.25, 0.75), t0))
}

func TestPreassignedLaneWins(t *testing.T) {
	t.Parallel()

	r := NewRegistry(halves{}, time.Second)
	d := car(3, 0.5, 0.1)
	d.LaneID = "ramp"
	require.True(t, r.HandleDetection(d, t0))

	st, ok := r.tracks[3]
	require.True(t, ok)
	assert.Equal(t, "ramp", st.LaneID)
}

func TestUnknownPreassignedLaneIsIgnored(t *testing.T) {
	t.Parallel()

	r := NewRegistry(halves{}, time.Second)
	d := car(4, 0.25, 0.75)
	d.LaneID = "ghost-lane"

	assert.False(t, r.HandleDetection(d, t0))
	assert.Zero(t, r.Len())
	assert.Empty(t, r.FinalizeTracks(t0.Add(5*time.Second)))
	assert.Empty(t, r.CountsByLane())
}

func TestNilResolverIgnoresEverything(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil, time.Second)
	d := car(5, 0.25, 0.75)
	d.LaneID = "west"
	assert.False(t, r.HandleDetection(d, t0))
}

func TestLastSeenLaneAndLabelWin(t *testing.T) {
	t.Parallel()

	r := NewRegistry(halves{}, time.Second)
	r.HandleDetection(car(9, 0.25, 0.75), t0)

	moved := car(9, 0.75, 0.75)
	moved.ClassLabel = "truck"
	r.HandleDetection(moved, t0.Add(time.Second))

	got := r.FinalizeTracks(t0.Add(3 * time.Second))
	require.Len(t, got, 1)
	assert.Equal(t, "east", got[0].LaneID)
	assert.Equal(t, "truck", got[0].ClassLabel)
	assert.Equal(t, t0, got[0].EnteredAt)
	assert.Equal(t, time.Second, got[0].Duration)
}

func TestFinalizeOrdersByTrackID(t *testing.T) {
	t.Parallel()

	r := NewRegistry(halves{}, time.Second)
	for _, id := range []int64{42, 5, 17, 1} {
		r.HandleDetection(car(id, 0.75, 0.75), t0)
	}
	r.HandleDetection(car(99, 0.25, 0.75), t0.Add(2*time.Second))

	assert.Equal(t, map[string]int{"east": 4, "west": 1}, r.CountsByLane())

	got := r.FinalizeTracks(t0.Add(2 * time.Second))
	ids := make([]int64, len(got))
	for i, ev := range got {
		ids[i] = ev.TrackID
	}
	assert.Equal(t, []int64{1, 5, 17, 42}, ids)
	assert.Equal(t, 1, r.Len(), "fresh track survives")
}

func TestDefaultStaleTimeout(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultStaleTimeout, NewRegistry(halves{}, 0).staleTimeout)
	assert.Equal(t, 3*time.Second, NewRegistry(halves{}, 3*time.Second).staleTimeout)
}
