package overlay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/train-spotter/internal/events"
	"github.com/tphakala/train-spotter/internal/logger"
	"github.com/tphakala/train-spotter/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var t0 = time.Unix(1_718_000_000, 0)

func quiet() logger.Logger { return logger.NewSlogLogger(nil, logger.LogLevelError, nil) }

func newTestOverlay(t *testing.T, now func() time.Time) (*Overlay, *events.Bus) {
	t.Helper()
	bus := events.NewBus(events.WithLogger(quiet()))
	o := New(bus, 16, WithClock(now), WithLogger(quiet()))
	t.Cleanup(func() {
		o.Stop()
		bus.Stop()
	})
	return o, bus
}

func TestInitialSnapshot(t *testing.T) {
	t.Parallel()

	o, _ := newTestOverlay(t, time.Now)
	s := o.Snapshot()
	assert.False(t, s.TrainActive)
	assert.Nil(t, s.TrainStartedAt)
	assert.Zero(t, s.ElapsedSeconds)
	assert.Empty(t, s.VehicleCountsByLane)
	assert.Equal(t, []string{"Status: TRACK CLEAR", "Train duration: 0.0s"}, o.Lines())
}

func TestTrainLifecycle(t *testing.T) {
	t.Parallel()

	now := t0.Add(12500 * time.Millisecond)
	o, _ := newTestOverlay(t, func() time.Time { return now })

	o.Apply(events.NewTrainStarted(events.TrainStarted{TrainID: "train-1718000000", StartedAt: t0}))
	s := o.Snapshot()
	assert.True(t, s.TrainActive)
	require.NotNil(t, s.TrainStartedAt)
	assert.Equal(t, t0, *s.TrainStartedAt)
	assert.InDelta(t, 12.5, s.ElapsedSeconds, 1e-9)
	assert.Equal(t, "Status: TRAIN PASSING", o.Lines()[0])
	assert.Equal(t, "Train duration: 12.5s", o.Lines()[1])

	o.Apply(events.NewTrainEnded(events.TrainEvent{
		TrainID: "train-1718000000", StartedAt: t0, EndedAt: t0.Add(42 * time.Second), Duration: 42 * time.Second,
	}))
	s = o.Snapshot()
	assert.False(t, s.TrainActive)
	assert.Nil(t, s.TrainStartedAt)
	assert.Equal(t, 42*time.Second, s.LastTrainDuration)
	assert.Equal(t, []string{"Status: TRACK CLEAR", "Train duration: 42.0s"}, o.Lines())
}

func TestElapsedNeverNegative(t *testing.T) {
	t.Parallel()

	o, _ := newTestOverlay(t, func() time.Time { return t0.Add(-time.Minute) })
	o.Apply(events.NewTrainStarted(events.TrainStarted{StartedAt: t0}))
	assert.Zero(t, o.Snapshot().ElapsedSeconds)
}

func TestVehicleCountsAreCumulativeAndSorted(t *testing.T) {
	t.Parallel()

	o, _ := newTestOverlay(t, time.Now)
	for _, lane := range []string{"south", "north", "south", "east"} {
		o.Apply(events.NewVehicleEvent(events.VehicleEvent{LaneID: lane}, t0))
	}
	o.Apply(events.NewHeartbeat(t0))

	assert.Equal(t, map[string]int{"south": 2, "north": 1, "east": 1}, o.Snapshot().VehicleCountsByLane)
	assert.Equal(t, "Vehicles: east:1, north:1, south:2", o.Lines()[2])

	// snapshots are copies
	o.Snapshot().VehicleCountsByLane["east"] = 99
	assert.Equal(t, 1, o.Snapshot().VehicleCountsByLane["east"])
}

func TestOverlayConsumesBus(t *testing.T) {
	t.Parallel()

	o, bus := newTestOverlay(t, time.Now)
	o.Start(context.Background())

	bus.Publish(events.NewTrainStarted(events.TrainStarted{StartedAt: t0}))
	bus.Publish(events.NewVehicleEvent(events.VehicleEvent{LaneID: "north"}, t0))

	require.Eventually(t, func() bool {
		s := o.Snapshot()
		return s.TrainActive && s.VehicleCountsByLane["north"] == 1
	}, testutil.DefaultTestTimeout, 5*time.Millisecond)
}

func TestStopAfterBusStop(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(events.WithLogger(quiet()))
	o := New(bus, 4, WithLogger(quiet()))
	o.Start(context.Background())

	bus.Stop()
	testutil.WaitForChannel(t, o.done, testutil.DefaultTestTimeout, "overlay did not exit")
	o.Stop()
	o.Stop()
}
