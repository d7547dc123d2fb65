package analysis

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/datastore"
	"github.com/tphakala/train-spotter/internal/detection"
	"github.com/tphakala/train-spotter/internal/errors"
	"github.com/tphakala/train-spotter/internal/events"
	"github.com/tphakala/train-spotter/internal/roi"
)

// writeROI stores the test model's configuration in dir.
func writeROI(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "roi.json")
	require.NoError(t, roi.Save(&roi.Config{
		CameraID: "test",
		TrainROI: &roi.Region{Label: "tracks", Points: rect(0, 0, 1, 0.5)},
		RoadLanes: []roi.Lane{
			{ID: "road", Polygon: roi.Region{Label: "road", Points: rect(0, 0.5, 1, 1)}},
		},
	}, path))
	return path
}

// writeDetections records one train pass and one car dwell as JSON lines,
// with a malformed line in the middle.
func writeDetections(t *testing.T, dir string) string {
	t.Helper()

	full := det(1, "train", 0, 0, 1, 0.5)
	car := det(7, "car", 0.4, 0.7, 0.5, 0.8)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range 8 {
		f := frameAt(t0.Add(time.Duration(i) * time.Second))
		if i < 5 {
			f.Detections = append(f.Detections, full)
		}
		if i < 3 {
			f.Detections = append(f.Detections, car)
		}
		rec := detection.NewFrameRecord(f)
		require.NoError(t, enc.Encode(&rec))
		if i == 4 {
			buf.WriteString("{not json\n")
		}
	}

	path := filepath.Join(dir, "detections.jsonl")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func testRuntimeSettings(t *testing.T) *conf.Settings {
	t.Helper()
	dir := t.TempDir()

	s := &conf.Settings{}
	s.Main.Name = "test"
	s.Camera.ID = "test"
	s.Camera.ROIConfig = writeROI(t, dir)
	s.TrainDetection = conf.TrainDetectionSettings{
		CoverageThreshold: 0.5,
		MinDuration:       2 * time.Second,
		HitThreshold:      2,
		MissThreshold:     2,
		Labels:            []string{"train"},
	}
	s.VehicleTracking = conf.VehicleTrackingSettings{
		StaleTimeout: time.Second,
		Labels:       []string{"car", "truck"},
	}
	s.EventBus.Capacity = 64
	s.Input.Source = conf.InputFile
	s.Input.Path = writeDetections(t, dir)
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = filepath.Join(dir, "spotter.db")
	return s
}

func openStore(t *testing.T, settings *conf.Settings) datastore.Interface {
	t.Helper()
	store, err := datastore.New(settings)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	s := testRuntimeSettings(t)
	s.TrainDetection.MinBoxArea = 500
	s.VehicleTracking.ApplyExclusionZones = true

	cfg, err := ConfigFromSettings(s)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Train.HitThreshold)
	assert.Equal(t, time.Second, cfg.StaleTimeout)
	assert.InDelta(t, 500, cfg.MinTrainBoxArea, 1e-9)
	assert.True(t, cfg.ApplyExclusionZones)
	assert.Equal(t, detection.NewLabelSet(detection.LabelTrain), cfg.TrainLabels)
	assert.Equal(t, detection.NewLabelSet(detection.LabelCar, detection.LabelTruck), cfg.VehicleLabels)
}

func TestConfigFromSettingsDefaultsLabels(t *testing.T) {
	t.Parallel()

	s := testRuntimeSettings(t)
	s.TrainDetection.Labels = nil
	s.VehicleTracking.Labels = nil

	cfg, err := ConfigFromSettings(s)
	require.NoError(t, err)
	assert.Equal(t, DefaultTrainLabels, cfg.TrainLabels)
	assert.Equal(t, DefaultVehicleLabels, cfg.VehicleLabels)
}

func TestConfigFromSettingsRejectsBadValues(t *testing.T) {
	t.Parallel()

	s := testRuntimeSettings(t)
	s.VehicleTracking.Labels = []string{"car", "zeppelin"}
	_, err := ConfigFromSettings(s)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.Contains(t, err.Error(), "zeppelin")

	s = testRuntimeSettings(t)
	s.TrainDetection.MissThreshold = 0
	_, err = ConfigFromSettings(s)
	require.Error(t, err)
}

func TestLoadModelMissingFile(t *testing.T) {
	t.Parallel()

	s := testRuntimeSettings(t)
	s.Camera.ROIConfig = filepath.Join(t.TempDir(), "missing.json")
	_, err := LoadModel(s)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestReplayPrintsAndPersistsEvents(t *testing.T) {
	t.Parallel()

	s := testRuntimeSettings(t)
	store := openStore(t, s)

	var out bytes.Buffer
	summary, err := Replay(t.Context(), s, s.Input.Path, ReplayOptions{Output: &out, Store: store})
	require.NoError(t, err)

	assert.Equal(t, uint64(8), summary.Frames)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Trains)
	assert.Equal(t, 1, summary.Vehicles)
	assert.False(t, summary.TrainActive)

	var types []events.EventType
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var ev struct {
			Type events.EventType `json:"type"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		types = append(types, ev.Type)
	}
	assert.Equal(t, []events.EventType{
		events.TypeTrainStarted,
		events.TypeVehicleEvent,
		events.TypeTrainEnded,
	}, types)

	trains, err := store.GetTrainEvents(10)
	require.NoError(t, err)
	require.Len(t, trains, 1)
	assert.True(t, trains[0].StartedAt.Equal(t0.Add(time.Second)))
	assert.True(t, trains[0].EndedAt.Equal(t0.Add(6*time.Second)))
	assert.InDelta(t, 5, trains[0].DurationSeconds, 1e-9)

	vehicles, err := store.GetVehicleEvents(10)
	require.NoError(t, err)
	require.Len(t, vehicles, 1)
	assert.Equal(t, "road", vehicles[0].LaneID)
}

func TestReplayCanceled(t *testing.T) {
	t.Parallel()

	s := testRuntimeSettings(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := Replay(ctx, s, s.Input.Path, ReplayOptions{})
	require.ErrorIs(t, err, ErrReplayCanceled)
}

func TestRealtimeAnalysisRecordsFileInput(t *testing.T) {
	s := testRuntimeSettings(t)

	require.NoError(t, RealtimeAnalysis(t.Context(), s, RealtimeOptions{Version: "test"}))

	store := openStore(t, s)
	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.TrainCount)
	assert.Equal(t, int64(1), status.VehicleCount)
	require.NotNil(t, status.LastTrain)
	assert.Equal(t, "train-1718000001", status.LastTrain.TrainID)
}

func TestRealtimeAnalysisFailsFastOnInvalidROI(t *testing.T) {
	s := testRuntimeSettings(t)
	require.NoError(t, os.WriteFile(s.Camera.ROIConfig, []byte(`{"camera_id":"test"}`), 0o600))

	err := RealtimeAnalysis(t.Context(), s, RealtimeOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	_, statErr := os.Stat(s.Output.SQLite.Path)
	assert.True(t, os.IsNotExist(statErr), "no database is created before the ROI is valid")
}

func TestRealtimeAnalysisWebOnlyStopsOnCancel(t *testing.T) {
	s := testRuntimeSettings(t)
	s.Camera.ROIConfig = ""
	s.Heartbeat.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- RealtimeAnalysis(ctx, s, RealtimeOptions{WebOnly: true}) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("web-only run did not stop")
	}

	store := openStore(t, s)
	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.NotNil(t, status.LastHeartbeat, "heartbeats reach the database")
	assert.Zero(t, status.TrainCount)
}
