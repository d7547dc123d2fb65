package analysis

import (
	"context"
	"encoding/json"
	"io"

	"github.com/tphakala/train-spotter/internal/analysis/processor"
	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/datastore"
	"github.com/tphakala/train-spotter/internal/events"
	"github.com/tphakala/train-spotter/internal/ingest"
	"github.com/tphakala/train-spotter/internal/logger"
)

// ReplayOptions tunes Replay.
type ReplayOptions struct {
	// Output receives every event as one JSON line. Nil discards them.
	Output io.Writer
	// Store, when set, records events the way the realtime processor does.
	Store datastore.Interface
}

// ReplaySummary counts what a replay produced.
type ReplaySummary struct {
	Frames   uint64
	Skipped  int
	Trains   int
	Vehicles int
	// TrainActive is set when the input ended during a train pass.
	TrainActive bool
}

// replayPublisher handles events synchronously so a replay never drops one.
type replayPublisher struct {
	ctx     context.Context
	enc     *json.Encoder
	db      *processor.DatabaseAction
	summary *ReplaySummary
	log     logger.Logger
}

func (p *replayPublisher) Publish(ev events.Event) {
	switch ev.Type {
	case events.TypeTrainEnded:
		p.summary.Trains++
	case events.TypeVehicleEvent:
		p.summary.Vehicles++
	}

	if p.enc != nil {
		if err := p.enc.Encode(ev); err != nil {
			p.log.Warn("failed to write event", logger.String("type", string(ev.Type)), logger.Error(err))
		}
	}
	if p.db != nil {
		if err := p.db.Execute(p.ctx, ev); err != nil {
			p.log.Error("failed to record event", logger.String("type", string(ev.Type)), logger.Error(err))
		}
	}
}

// Replay runs the analytics over a recorded JSONL detection log at path,
// using the frame timestamps as the clock.
func Replay(ctx context.Context, settings *conf.Settings, path string, opts ReplayOptions) (ReplaySummary, error) {
	var summary ReplaySummary

	model, err := LoadModel(settings)
	if err != nil {
		return summary, err
	}
	cfg, err := ConfigFromSettings(settings)
	if err != nil {
		return summary, err
	}

	log := GetLogger()
	pub := &replayPublisher{ctx: ctx, summary: &summary, log: log}
	if opts.Output != nil {
		pub.enc = json.NewEncoder(opts.Output)
	}
	if opts.Store != nil {
		pub.db = &processor.DatabaseAction{Store: opts.Store}
	}

	analytics, err := NewAnalytics(model, pub, cfg)
	if err != nil {
		return summary, err
	}

	source := ingest.NewFileSource(path)
	log.Info("replay started", logger.String("path", path), logger.String("camera_id", model.CameraID()))

	if err := source.Run(ctx, analytics.ProcessFrame); err != nil {
		return summary, err
	}

	summary.Frames = analytics.Frames()
	summary.Skipped = source.Skipped()
	summary.TrainActive = analytics.TrainActive()

	if ctx.Err() != nil {
		return summary, ErrReplayCanceled
	}

	log.Info("replay finished",
		logger.Uint64("frames", summary.Frames),
		logger.Int("skipped", summary.Skipped),
		logger.Int("trains", summary.Trains),
		logger.Int("vehicles", summary.Vehicles))
	return summary, nil
}
