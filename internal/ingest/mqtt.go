package ingest

import (
	"context"
	"sync/atomic"

	"github.com/tphakala/train-spotter/internal/detection"
	"github.com/tphakala/train-spotter/internal/logger"
	"github.com/tphakala/train-spotter/internal/mqtt"
)

// mqttQueueSize bounds frames waiting between the MQTT callback and Run.
const mqttQueueSize = 256

// MQTTSource subscribes to a topic carrying one JSON frame per message.
// Frames are decoded on the client's callback goroutine and handed to the
// handler from Run's goroutine. When the queue is full new frames are
// dropped.
type MQTTSource struct {
	client  mqtt.Client
	topic   string
	opts    options
	frames  chan detection.Frame
	dropped atomic.Uint64
}

// NewMQTTSource returns a source reading topic through client.
func NewMQTTSource(client mqtt.Client, topic string, opts ...Option) *MQTTSource {
	return &MQTTSource{
		client: client,
		topic:  topic,
		opts:   newOptions(opts),
		frames: make(chan detection.Frame, mqttQueueSize),
	}
}

// Name returns "mqtt".
func (s *MQTTSource) Name() string { return "mqtt" }

// Run subscribes and delivers frames until ctx is cancelled, then
// unsubscribes.
func (s *MQTTSource) Run(ctx context.Context, handle FrameHandler) error {
	if err := s.client.Subscribe(s.topic, s.onMessage); err != nil {
		return err
	}
	s.opts.log.Info("reading detections from MQTT", logger.String("topic", s.topic))
	defer func() {
		if err := s.client.Unsubscribe(s.topic); err != nil {
			s.opts.log.Warn("failed to unsubscribe from detection topic",
				logger.String("topic", s.topic),
				logger.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-s.frames:
			handle(&frame)
		}
	}
}

func (s *MQTTSource) onMessage(_ string, payload []byte) {
	frame, ok := s.opts.decode(s.Name(), payload)
	if !ok {
		return
	}
	select {
	case s.frames <- frame:
	default:
		if s.dropped.Add(1) == 1 {
			s.opts.log.Warn("detection queue full, dropping frames", logger.String("topic", s.topic))
		}
	}
}

// Dropped returns the number of frames dropped because the queue was full.
func (s *MQTTSource) Dropped() uint64 { return s.dropped.Load() }
