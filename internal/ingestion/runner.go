package ingestion

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"voltammetry-lab/internal/observability"
	"voltammetry-lab/internal/storage"
)

// Runner drains a frame source into a Manager.
type Runner struct {
	source  FrameSource
	manager *Manager
	onFrame func(*Ingested)
	log     logrus.FieldLogger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source  FrameSource
	Manager *Manager
	OnFrame func(*Ingested) // called after each stored frame, may be nil
	Logger  logrus.FieldLogger
}

// Stats counts what a run did.
type Stats struct {
	Received   int
	Stored     int
	Duplicates int
	Rejected   int
	Failed     int
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		source:  opts.Source,
		manager: opts.Manager,
		onFrame: opts.OnFrame,
		log:     log.WithField("component", "ingestion"),
	}
}

// Run consumes frames until the source closes or ctx is cancelled.
// A bad or duplicate frame is logged and skipped; it never stops the run.
// Returns ctx.Err() on cancellation, nil when the source is exhausted.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	frames, err := r.source.Subscribe(ctx)
	if err != nil {
		return stats, err
	}
	r.log.Info("ingestion started")

	for {
		select {
		case <-ctx.Done():
			r.log.WithField("stored", stats.Stored).Info("ingestion stopping")
			return stats, ctx.Err()
		case f, ok := <-frames:
			if !ok {
				if err := ctx.Err(); err != nil {
					return stats, err
				}
				r.log.WithField("stored", stats.Stored).Info("source exhausted")
				return stats, nil
			}
			stats.Received++
			r.handle(ctx, f, &stats)
		}
	}
}

func (r *Runner) handle(ctx context.Context, f *Frame, stats *Stats) {
	ing, err := r.manager.Ingest(ctx, f)
	switch {
	case err == nil:
		stats.Stored++
		observability.RecordFrame(true)
		if r.onFrame != nil {
			r.onFrame(ing)
		}
		return
	case errors.Is(err, storage.ErrDuplicateKey):
		stats.Duplicates++
		observability.RecordIngestionError("duplicate")
	case errors.Is(err, ErrInvalidFrame):
		stats.Rejected++
		observability.RecordIngestionError("validate")
	default:
		stats.Failed++
		observability.RecordIngestionError("store")
	}
	observability.RecordFrame(false)
	r.log.WithError(err).Warn("frame skipped")
}
