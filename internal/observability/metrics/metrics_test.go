package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewAnalyticsMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordFrame(2*time.Millisecond, 3)
	m.RecordFrame(time.Millisecond, 2)
	m.SetCoverage(0.75)
	m.SetTrainActive(true)
	m.SetActiveTracks(map[string]int{"north": 3, "south": 1})
	m.RecordEvent("TRAIN_STARTED")

	assert.InDelta(t, 2, promtest.ToFloat64(m.FramesProcessed), 0)
	assert.InDelta(t, 5, promtest.ToFloat64(m.DetectionsSeen), 0)
	assert.InDelta(t, 0.75, promtest.ToFloat64(m.TrainCoverage), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(m.TrainActive), 0)
	assert.InDelta(t, 3, promtest.ToFloat64(m.ActiveTracks.WithLabelValues("north")), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(m.ActiveTracks.WithLabelValues("south")), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(m.EventsEmitted.WithLabelValues("TRAIN_STARTED")), 0)

	m.SetTrainActive(false)
	assert.Zero(t, promtest.ToFloat64(m.TrainActive))

	m.SetActiveTracks(map[string]int{"south": 2})
	assert.Zero(t, promtest.ToFloat64(m.ActiveTracks.WithLabelValues("north")))
	assert.InDelta(t, 2, promtest.ToFloat64(m.ActiveTracks.WithLabelValues("south")), 0)
}

func TestEventBusMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewEventBusMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordPublished("HEARTBEAT")
	m.RecordPublished("HEARTBEAT")
	m.RecordDropped("overlay")
	m.SetSubscribers(3)

	assert.InDelta(t, 2, promtest.ToFloat64(m.Published.WithLabelValues("HEARTBEAT")), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(m.Dropped.WithLabelValues("overlay")), 0)
	assert.InDelta(t, 3, promtest.ToFloat64(m.Subscribers), 0)
}

func TestDatastoreMetricsLabelsTables(t *testing.T) {
	t.Parallel()

	m, err := NewDatastoreMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	var _ Recorder = m
	m.RecordOperation(OpRecordTrain, StatusSuccess)
	m.RecordError(OpRecordVehicle, "database")

	assert.InDelta(t, 1, promtest.ToFloat64(
		m.dbOperationsTotal.WithLabelValues(OpRecordTrain, TableTrainPasses, StatusSuccess)), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(
		m.dbOperationErrorsTotal.WithLabelValues(OpRecordVehicle, TableVehicleEvents, "database")), 0)
	assert.Equal(t, "all", tableFor(OpMigrate))
}

func TestRegisteringTwiceFails(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewMQTTMetrics(reg)
	require.NoError(t, err)
	_, err = NewMQTTMetrics(reg)
	require.Error(t, err)
}

func TestMQTTMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.UpdateConnectionStatus(true)
	m.IncrementMessagesDelivered("TRAIN_ENDED")
	m.IncrementErrors("publish")
	m.StartPublishTimer().ObserveDuration()

	assert.InDelta(t, 1, promtest.ToFloat64(m.ConnectionStatus), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(m.MessagesDelivered.WithLabelValues("TRAIN_ENDED")), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(m.Errors.WithLabelValues("publish")), 0)
	assert.Equal(t, 1, promtest.CollectAndCount(m.PublishLatency))
}
