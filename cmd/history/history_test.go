package history

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/datastore"
	"github.com/tphakala/train-spotter/internal/events"
)

var t0 = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func seededStore(t *testing.T) datastore.Interface {
	t.Helper()

	s := &conf.Settings{}
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = filepath.Join(t.TempDir(), "history.db")

	store, err := datastore.New(s)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.RecordTrainEvent(events.TrainEvent{
		TrainID: "train-1", StartedAt: t0, EndedAt: t0.Add(90 * time.Second),
		Duration: 90 * time.Second, CoverageRatio: 0.75,
	}))
	require.NoError(t, store.RecordVehicleEvent(events.VehicleEvent{
		TrackID: 7, LaneID: "north", ClassLabel: "truck",
		EnteredAt: t0, ExitedAt: t0.Add(3 * time.Second), Duration: 3 * time.Second,
	}))
	return store
}

func TestShowTrainsTable(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, show(&out, seededStore(t), "trains", 10, false))
	assert.Contains(t, out.String(), "TRAIN")
	assert.Contains(t, out.String(), "train-1")
	assert.Contains(t, out.String(), "90.0s")
}

func TestShowVehiclesJSON(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, show(&out, seededStore(t), "vehicles", 10, true))

	var rows []datastore.VehicleEvent
	require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "truck", rows[0].ClassLabel)
}

func TestShowStatus(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, show(&out, seededStore(t), "status", 10, false))
	assert.Contains(t, out.String(), "Train passes:")
	assert.Contains(t, out.String(), "never")
	assert.Contains(t, out.String(), "truck in north")
}
