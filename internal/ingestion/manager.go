package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"voltammetry-lab/internal/analysis"
	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/storage"
)

// Manager persists frames and optionally analyzes them.
// Samples are written before the measurement row, so a measurement that is
// visible to readers always has its samples. Duplicates are rejected by the
// storage layer (ErrDuplicateKey).
type Manager struct {
	measurements storage.MeasurementStore
	waveforms    storage.WaveformStore
	analyzer     *analysis.Analyzer
	now          func() time.Time
	log          logrus.FieldLogger
}

// ManagerOptions contains configuration for creating a Manager.
type ManagerOptions struct {
	Measurements storage.MeasurementStore
	Waveforms    storage.WaveformStore
	Analyzer     *analysis.Analyzer // nil = store only
	Now          func() time.Time
	Logger       logrus.FieldLogger
}

// NewManager creates a new ingestion manager with the provided stores.
func NewManager(opts ManagerOptions) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		measurements: opts.Measurements,
		waveforms:    opts.Waveforms,
		analyzer:     opts.Analyzer,
		now:          now,
		log:          log,
	}
}

// Ingested is the outcome of one stored frame.
type Ingested struct {
	Measurement *domain.Measurement
	Result      *analysis.Result // nil when the manager has no analyzer
}

// Ingest validates, stores and analyzes one frame.
func (m *Manager) Ingest(ctx context.Context, f *Frame) (*Ingested, error) {
	if m.measurements == nil || m.waveforms == nil {
		return nil, errors.New("ingest: stores not configured")
	}

	meas, rows, err := f.Decode(m.now())
	if err != nil {
		return nil, err
	}

	if err := m.waveforms.InsertBulk(ctx, rows); err != nil {
		return nil, fmt.Errorf("store samples of %s: %w", meas.ID, err)
	}
	if err := m.measurements.Insert(ctx, meas); err != nil {
		return nil, fmt.Errorf("store measurement %s: %w", meas.ID, err)
	}

	out := &Ingested{Measurement: meas}
	if m.analyzer != nil {
		samples := make([]domain.WaveformSample, len(rows))
		for i, r := range rows {
			samples[i] = *r
		}
		w := meas.ToWaveform(samples)
		res := m.analyzer.Analyze(&w)
		out.Result = &res
	}

	m.log.WithFields(logrus.Fields{
		"measurement_id": meas.ID,
		"instrument":     meas.Instrument,
		"condition":      meas.Condition.Key(),
		"samples":        meas.SampleCount,
	}).Debug("frame stored")
	return out, nil
}
