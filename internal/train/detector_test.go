package train

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/train-spotter/internal/events"
	"github.com/tphakala/train-spotter/internal/logger"
)

var t0 = time.Unix(1_718_000_000, 0)

func newTestDetector(cfg Config) *Detector {
	return NewDetector(cfg, WithLogger(logger.NewSlogLogger(nil, logger.LogLevelError, nil)))
}

func testConfig() Config {
	return Config{CoverageThreshold: 0.6, HitThreshold: 3, MissThreshold: 2, MinDuration: 2 * time.Second}
}

// feed runs coverages at one frame per second starting at start and
// returns the emitted events.
func feed(d *Detector, start time.Time, coverages ...float64) []events.Event {
	var out []events.Event
	for i, c := range coverages {
		if ev := d.Update(c, start.Add(time.Duration(i)*time.Second)); ev != nil {
			out = append(out, *ev)
		}
	}
	return out
}

func TestDetectorStartsAfterHitThreshold(t *testing.T) {
	t.Parallel()

	d := newTestDetector(testConfig())

	assert.Nil(t, d.Update(0.7, t0))
	assert.Nil(t, d.Update(0.8, t0.Add(time.Second)))
	assert.False(t, d.Active())

	ev := d.Update(0.9, t0.Add(2*time.Second))
	require.NotNil(t, ev)
	assert.Equal(t, events.TypeTrainStarted, ev.Type)

	started, ok := ev.TrainStarted()
	require.True(t, ok)
	assert.Equal(t, t0.Add(2*time.Second), started.StartedAt)
	assert.Equal(t, "train-1718000002", started.TrainID)

	assert.True(t, d.Active())
	at, ok := d.StartedAt()
	assert.True(t, ok)
	assert.Equal(t, started.StartedAt, at)
	assert.InDelta(t, 0.9, d.LastCoverage(), 1e-12)

	// further hits do not emit another start
	assert.Empty(t, feed(d, t0.Add(3*time.Second), 0.9, 0.9, 0.9))
}

func TestDetectorThresholdIsInclusive(t *testing.T) {
	t.Parallel()

	d := newTestDetector(testConfig())
	got := feed(d, t0, 0.6, 0.6, 0.6)
	require.Len(t, got, 1)
	assert.Equal(t, events.TypeTrainStarted, got[0].Type)
}

func TestDetectorDebounceResetsHits(t *testing.T) {
	t.Parallel()

	d := newTestDetector(testConfig())

	got := feed(d, t0, 0.9, 0.9, 0.1, 0.9, 0.9)
	assert.Empty(t, got, "a miss while cleared resets the hit count")
	assert.False(t, d.Active())

	got = feed(d, t0.Add(5*time.Second), 0.9)
	require.Len(t, got, 1)
	assert.Equal(t, events.TypeTrainStarted, got[0].Type)
}

func TestDetectorCancelledHitsClearLastCoverage(t *testing.T) {
	t.Parallel()

	d := newTestDetector(testConfig())

	feed(d, t0, 0.95, 0.2)
	assert.False(t, d.Active())
	assert.Zero(t, d.LastCoverage())
}

func TestDetectorEndsAfterMissThreshold(t *testing.T) {
	t.Parallel()

	d := newTestDetector(testConfig())
	require.Len(t, feed(d, t0, 0.9, 0.9, 0.75), 1)

	assert.Nil(t, d.Update(0.1, t0.Add(10*time.Second)))
	assert.True(t, d.Active())

	ev := d.Update(0.2, t0.Add(11*time.Second))
	require.NotNil(t, ev)
	assert.Equal(t, events.TypeTrainEnded, ev.Type)

	ended, ok := ev.TrainEnded()
	require.True(t, ok)
	assert.Equal(t, "train-1718000002", ended.TrainID)
	assert.Equal(t, t0.Add(2*time.Second), ended.StartedAt)
	assert.Equal(t, t0.Add(11*time.Second), ended.EndedAt)
	assert.Equal(t, 9*time.Second, ended.Duration)
	assert.Equal(t, ended.EndedAt.Sub(ended.StartedAt), ended.Duration)
	assert.InDelta(t, 0.75, ended.CoverageRatio, 1e-12, "last hit coverage is reported")

	assert.False(t, d.Active())
	_, ok = d.StartedAt()
	assert.False(t, ok)
	assert.Zero(t, d.LastCoverage())

	assert.Empty(t, feed(d, t0.Add(12*time.Second), 0.1, 0.1, 0.1), "no second end")
}

func TestDetectorHitResetsMissCount(t *testing.T) {
	t.Parallel()

	d := newTestDetector(testConfig())
	require.Len(t, feed(d, t0, 0.9, 0.9, 0.9), 1)

	got := feed(d, t0.Add(3*time.Second), 0.1, 0.9, 0.1, 0.9, 0.1)
	assert.Empty(t, got)
	assert.True(t, d.Active())
}

func TestDetectorFullPassEmitsOnePairPerTrain(t *testing.T) {
	t.Parallel()

	d := newTestDetector(testConfig())
	coverages := []float64{0, 0.9, 0.9, 0.9, 0.9, 0.1, 0.1, 0, 0.9, 0.9, 0.9, 0, 0}

	got := feed(d, t0, coverages...)
	require.Len(t, got, 4)
	want := []events.EventType{
		events.TypeTrainStarted, events.TypeTrainEnded,
		events.TypeTrainStarted, events.TypeTrainEnded,
	}
	for i, ev := range got {
		assert.Equal(t, want[i], ev.Type, "event %d", i)
	}

	first, _ := got[0].TrainStarted()
	firstEnd, _ := got[1].TrainEnded()
	assert.Equal(t, first.TrainID, firstEnd.TrainID)
	assert.GreaterOrEqual(t, firstEnd.Duration, time.Duration(0))
}

func TestDetectorEndWithoutStartApproximates(t *testing.T) {
	t.Parallel()

	d := newTestDetector(testConfig())
	require.Len(t, feed(d, t0, 0.9, 0.9, 0.9), 1)

	// unreachable through Update alone
	d.currentStart = nil

	end := t0.Add(30 * time.Second)
	assert.Nil(t, d.Update(0, end.Add(-time.Second)))
	ev := d.Update(0, end)
	require.NotNil(t, ev)

	ended, ok := ev.TrainEnded()
	require.True(t, ok)
	assert.Equal(t, end.Add(-2*time.Second), ended.StartedAt)
	assert.Equal(t, 2*time.Second, ended.Duration)
	assert.Equal(t, "train-1718000028", ended.TrainID)
}

func TestDetectorClampsNegativeDuration(t *testing.T) {
	t.Parallel()

	d := newTestDetector(Config{CoverageThreshold: 0.5, HitThreshold: 1, MissThreshold: 1})
	require.NotNil(t, d.Update(1, t0))

	ev := d.Update(0, t0.Add(-time.Second))
	require.NotNil(t, ev)
	ended, _ := ev.TrainEnded()
	assert.Zero(t, ended.Duration)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultConfig().Validate())

	bad := []Config{
		{CoverageThreshold: 1.5, HitThreshold: 1, MissThreshold: 1},
		{CoverageThreshold: 0.5, HitThreshold: 0, MissThreshold: 1},
		{CoverageThreshold: 0.5, HitThreshold: 1, MissThreshold: 0},
		{CoverageThreshold: 0.5, HitThreshold: 1, MissThreshold: 1, MinDuration: -time.Second},
	}
	for _, c := range bad {
		assert.Error(t, c.Validate(), "%+v", c)
	}
}
