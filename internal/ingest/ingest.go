// Package ingest reads detection frames from the perception pipeline, either
// as JSON lines from a file or stdin, or as JSON messages over MQTT.
package ingest

import (
	"context"
	"time"

	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/detection"
	"github.com/tphakala/train-spotter/internal/errors"
	"github.com/tphakala/train-spotter/internal/logger"
	"github.com/tphakala/train-spotter/internal/mqtt"
)

// FrameHandler receives each decoded frame. It is always called from the
// goroutine running Source.Run.
type FrameHandler func(frame *detection.Frame)

// Source produces frames until it is exhausted or ctx is cancelled.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string
	// Run decodes frames and hands them to handle. It returns nil at end of
	// input or when ctx is cancelled.
	Run(ctx context.Context, handle FrameHandler) error
}

// Metrics receives ingest instrumentation.
type Metrics interface {
	RecordFrame(source string, size int)
	RecordDecodeError(source string)
}

// options shared by every source.
type options struct {
	log     logger.Logger
	metrics Metrics
	now     func() time.Time
}

// Option configures a source.
type Option func(*options)

// WithLogger overrides the module logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics records frame and decode error counts.
func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces time.Now for stamping frames without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{
		log: logger.Global().Module("ingest"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// decode parses one record and stamps a missing timestamp with now.
func (o *options) decode(source string, data []byte) (detection.Frame, bool) {
	frame, err := detection.DecodeFrame(data)
	if err != nil {
		if o.metrics != nil {
			o.metrics.RecordDecodeError(source)
		}
		o.log.Warn("skipping malformed detection record",
			logger.String("source", source),
			logger.Int("bytes", len(data)),
			logger.Error(err))
		return detection.Frame{}, false
	}
	if frame.Timestamp.IsZero() {
		frame.Timestamp = o.now()
	}
	if o.metrics != nil {
		o.metrics.RecordFrame(source, len(data))
	}
	return frame, true
}

// FromSettings builds the source selected by input.source. The MQTT client
// is required for MQTT input.
func FromSettings(settings *conf.Settings, client mqtt.Client, opts ...Option) (Source, error) {
	switch settings.Input.Source {
	case conf.InputFile:
		return NewFileSource(settings.Input.Path, opts...), nil
	case conf.InputMQTT:
		if client == nil {
			return nil, errors.Newf("mqtt input requires an MQTT client").
				Component("ingest").
				Category(errors.CategoryConfiguration).
				Build()
		}
		return NewMQTTSource(client, settings.MQTT.DetectionTopic, opts...), nil
	default:
		return nil, errors.Newf("unknown input source %q", settings.Input.Source).
			Component("ingest").
			Category(errors.CategoryConfiguration).
			Build()
	}
}
