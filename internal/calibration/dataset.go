package calibration

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"voltammetry-lab/internal/analysis"
	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/storage"
)

// Dataset pools paired peak currents from stored measurements.
type Dataset struct {
	Measurements storage.MeasurementStore
	Waveforms    storage.WaveformStore
	Analyzer     *analysis.Analyzer
	Logger       logrus.FieldLogger
}

// LoadWaveform assembles the stored waveform of a measurement.
// Returns a domain UnknownMeasurementId error if the id is not stored.
func (d *Dataset) LoadWaveform(ctx context.Context, id string) (*domain.Measurement, domain.Waveform, error) {
	m, err := d.Measurements.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.Waveform{}, domain.Errorf(domain.CodeUnknownMeasurementID, "measurement %q not found", id)
		}
		return nil, domain.Waveform{}, fmt.Errorf("get measurement %s: %w", id, err)
	}
	samples, err := d.Waveforms.GetByMeasurementID(ctx, id)
	if err != nil {
		return nil, domain.Waveform{}, fmt.Errorf("get samples of %s: %w", id, err)
	}
	flat := make([]domain.WaveformSample, len(samples))
	for i, s := range samples {
		flat[i] = *s
	}
	return m, m.ToWaveform(flat), nil
}

// LoadCurve loads a stored sweep as (voltage, µA) points, the unit models
// are fitted in.
func (d *Dataset) LoadCurve(ctx context.Context, id string) (*domain.Measurement, []domain.CurvePoint, error) {
	m, w, err := d.LoadWaveform(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return m, d.Analyzer.MicroampCurve(&w), nil
}

// Pool analyzes every stored measurement and pairs each source measurement
// with each reference measurement of the same condition.
func (d *Dataset) Pool(ctx context.Context) (*Aggregator, error) {
	log := d.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	all, err := d.Measurements.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}

	type side struct {
		source, reference [][]domain.Peak
	}
	byCond := make(map[string]*side)
	conds := make(map[string]domain.Condition)

	for _, m := range all {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, w, err := d.LoadWaveform(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		res := d.Analyzer.Analyze(&w)

		key := m.Condition.Key()
		s, ok := byCond[key]
		if !ok {
			s = &side{}
			byCond[key] = s
			conds[key] = m.Condition
		}
		switch m.Instrument {
		case domain.InstrumentSource:
			s.source = append(s.source, res.Peaks)
		case domain.InstrumentReference:
			s.reference = append(s.reference, res.Peaks)
		}
	}

	agg := NewAggregator()
	for key, s := range byCond {
		pairs := 0
		for _, src := range s.source {
			for _, ref := range s.reference {
				pairs += agg.AddMeasurementPair(conds[key], src, ref)
			}
		}
		log.WithFields(logrus.Fields{
			"condition":  key,
			"source":     len(s.source),
			"reference":  len(s.reference),
			"paired_pts": pairs,
		}).Debug("condition pooled")
	}
	return agg, nil
}
