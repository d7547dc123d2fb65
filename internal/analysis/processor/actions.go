// processor/actions.go
// This file contains the actions run for every event taken off the bus.

package processor

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/tphakala/train-spotter/internal/datastore"
	"github.com/tphakala/train-spotter/internal/errors"
	"github.com/tphakala/train-spotter/internal/events"
	"github.com/tphakala/train-spotter/internal/logger"
	"github.com/tphakala/train-spotter/internal/mqtt"
)

// ActionTimeout bounds a single action execution.
const ActionTimeout = 30 * time.Second

// Action is the base interface for all actions that can be executed.
// The context parameter allows for cancellation and timeout propagation.
type Action interface {
	Execute(ctx context.Context, ev events.Event) error
	GetDescription() string
}

// DatabaseAction persists completed train passes, vehicle events and
// heartbeats. TRAIN_STARTED is not stored.
type DatabaseAction struct {
	Store datastore.Interface
}

// GetDescription returns a description of the action.
func (a *DatabaseAction) GetDescription() string { return "database" }

// Execute stores ev according to its type.
func (a *DatabaseAction) Execute(_ context.Context, ev events.Event) error {
	switch ev.Type {
	case events.TypeTrainEnded:
		p, ok := ev.TrainEnded()
		if !ok {
			return payloadError(ev)
		}
		return a.Store.RecordTrainEvent(p)
	case events.TypeVehicleEvent:
		p, ok := ev.Vehicle()
		if !ok {
			return payloadError(ev)
		}
		return a.Store.RecordVehicleEvent(p)
	case events.TypeHeartbeat:
		return a.Store.UpdateHeartbeat(ev.Timestamp)
	default:
		return nil
	}
}

// MqttAction publishes every event as JSON to <Topic>/<event type>.
type MqttAction struct {
	Client mqtt.Client
	Topic  string
}

// GetDescription returns a description of the action.
func (a *MqttAction) GetDescription() string { return "mqtt" }

// EventTopic returns the topic an event is published to, for example
// train-spotter/train_ended.
func EventTopic(prefix string, t events.EventType) string {
	return strings.TrimSuffix(prefix, "/") + "/" + strings.ToLower(string(t))
}

// Execute publishes ev. It fails while the client is disconnected and
// relies on the client's background reconnect.
func (a *MqttAction) Execute(ctx context.Context, ev events.Event) error {
	if a.Topic == "" {
		return errors.Newf("MQTT topic is not specified").
			Component("processor").
			Category(errors.CategoryConfiguration).
			Context("operation", "mqtt_publish").
			Build()
	}
	if !a.Client.IsConnected() {
		return errors.Newf("MQTT client not connected").
			Component("processor").
			Category(errors.CategoryMQTTConnection).
			Context("operation", "mqtt_publish").
			Context("event_type", string(ev.Type)).
			Build()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.New(err).
			Component("processor").
			Category(errors.CategoryGeneric).
			Context("operation", "mqtt_marshal").
			Build()
	}

	return a.Client.Publish(ctx, EventTopic(a.Topic, ev.Type), string(payload))
}

// LogAction writes each event to a logger. Replay uses it to print the
// event stream.
type LogAction struct {
	Log logger.Logger
}

// GetDescription returns a description of the action.
func (a *LogAction) GetDescription() string { return "log" }

// Execute logs ev at info level.
func (a *LogAction) Execute(_ context.Context, ev events.Event) error {
	fields := []logger.Field{
		logger.String("type", string(ev.Type)),
		logger.Time("timestamp", ev.Timestamp),
	}
	switch p := ev.Payload.(type) {
	case events.TrainStarted:
		fields = append(fields, logger.String("train_id", p.TrainID))
	case events.TrainEvent:
		fields = append(fields,
			logger.String("train_id", p.TrainID),
			logger.Duration("duration", p.Duration),
			logger.Float64("coverage", p.CoverageRatio))
	case events.VehicleEvent:
		fields = append(fields,
			logger.Int64("track_id", p.TrackID),
			logger.String("lane_id", p.LaneID),
			logger.String("class_label", p.ClassLabel),
			logger.Duration("duration", p.Duration))
	}
	a.Log.Info("event", fields...)
	return nil
}

func payloadError(ev events.Event) error {
	return errors.Newf("unexpected payload %T for %s", ev.Payload, ev.Type).
		Component("processor").
		Category(errors.CategoryEventBus).
		Build()
}
