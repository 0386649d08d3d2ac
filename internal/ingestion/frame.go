package ingestion

import (
	"errors"
	"fmt"
	"math"
	"time"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/idhash"
	"voltammetry-lab/internal/preprocess"
)

// ErrInvalidFrame is returned for frames that cannot become a measurement.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame is one sweep pushed by the potentiostat bridge.
type Frame struct {
	Measurement   string       `json:"measurement,omitempty"`
	Instrument    string       `json:"instrument"`
	Sample        string       `json:"sample"`
	ScanRate      float64      `json:"scan_rate"`
	Concentration float64      `json:"concentration"`
	Unit          string       `json:"unit,omitempty"`
	CreatedAt     *time.Time   `json:"created_at,omitempty"`
	Samples       [][2]float64 `json:"samples"`
}

// Validate checks the frame metadata. Sample values are not checked here;
// non-finite readings are dropped later by the preprocessor.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidFrame)
	}
	if !domain.Instrument(f.Instrument).IsValid() {
		return fmt.Errorf("%w: unknown instrument %q", ErrInvalidFrame, f.Instrument)
	}
	if !(f.ScanRate > 0) || math.IsInf(f.ScanRate, 0) {
		return fmt.Errorf("%w: scan rate must be positive", ErrInvalidFrame)
	}
	if !(f.Concentration > 0) || math.IsInf(f.Concentration, 0) {
		return fmt.Errorf("%w: concentration must be positive", ErrInvalidFrame)
	}
	if _, ok := domain.ParseUnitHint(f.Unit); !ok {
		return fmt.Errorf("%w: unknown unit %q", ErrInvalidFrame, f.Unit)
	}
	if len(f.Samples) < preprocess.MinSamples {
		return fmt.Errorf("%w: %d samples, need at least %d", ErrInvalidFrame, len(f.Samples), preprocess.MinSamples)
	}
	return nil
}

// Condition returns the calibration condition of the frame.
func (f *Frame) Condition() domain.Condition {
	return domain.Condition{Concentration: f.Concentration, ScanRate: f.ScanRate}
}

// Decode validates the frame and converts it into a measurement and its
// ordered sample rows. now stamps frames without created_at. A missing
// measurement id is derived from the metadata.
func (f *Frame) Decode(now time.Time) (*domain.Measurement, []*domain.WaveformSample, error) {
	if err := f.Validate(); err != nil {
		return nil, nil, err
	}

	created := now.UTC()
	if f.CreatedAt != nil {
		created = f.CreatedAt.UTC()
	}
	unit, _ := domain.ParseUnitHint(f.Unit)
	inst := domain.Instrument(f.Instrument)

	id := f.Measurement
	if id == "" {
		id = idhash.ComputeMeasurementID(inst, f.Sample, f.Condition(), created)
	}

	m := &domain.Measurement{
		ID:          id,
		Instrument:  inst,
		SampleLabel: f.Sample,
		Condition:   f.Condition(),
		UnitHint:    unit,
		SampleCount: len(f.Samples),
		CreatedAt:   created,
	}

	rows := make([]*domain.WaveformSample, len(f.Samples))
	for i, s := range f.Samples {
		rows[i] = &domain.WaveformSample{
			MeasurementID: id,
			SampleIndex:   i,
			Voltage:       s[0],
			Current:       s[1],
		}
	}
	return m, rows, nil
}

// NewFrame builds a frame from loaded samples, e.g. a CSV file.
func NewFrame(inst domain.Instrument, sample string, cond domain.Condition, unit domain.UnitHint, samples []domain.Sample) *Frame {
	f := &Frame{
		Instrument:    string(inst),
		Sample:        sample,
		ScanRate:      cond.ScanRate,
		Concentration: cond.Concentration,
		Unit:          string(unit),
		Samples:       make([][2]float64, len(samples)),
	}
	for i, s := range samples {
		f.Samples[i] = [2]float64{s.Voltage, s.Current}
	}
	return f
}
