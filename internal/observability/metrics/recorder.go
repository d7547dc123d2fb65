// Package metrics provides custom Prometheus metrics for the train spotter
// service components.
package metrics

// Recorder defines a minimal interface for recording metrics. Components
// depend on it instead of a concrete metric struct so tests can pass a fake.
type Recorder interface {
	// RecordOperation records an operation with its status ("success" or "error").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its type.
	RecordError(operation, errorType string)
}

// NoOpRecorder discards everything.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordOperation(string, string) {}
func (NoOpRecorder) RecordDuration(string, float64) {}
func (NoOpRecorder) RecordError(string, string)     {}
