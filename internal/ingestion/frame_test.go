package ingestion

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/idhash"
)

func validFrame() *Frame {
	return &Frame{
		Instrument:    "source",
		Sample:        "ferricyanide-A",
		ScanRate:      100,
		Concentration: 5,
		Unit:          "µA",
		Samples:       [][2]float64{{-0.2, 0.1}, {0, 0.5}, {0.2, 2.0}, {0.4, 0.7}},
	}
}

func TestFrame_Decode(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f := validFrame()

	m, rows, err := f.Decode(now)
	require.NoError(t, err)

	cond := domain.Condition{Concentration: 5, ScanRate: 100}
	assert.Equal(t, idhash.ComputeMeasurementID(domain.InstrumentSource, "ferricyanide-A", cond, now), m.ID)
	assert.Equal(t, domain.InstrumentSource, m.Instrument)
	assert.Equal(t, cond, m.Condition)
	assert.Equal(t, domain.UnitMicroampere, m.UnitHint)
	assert.Equal(t, 4, m.SampleCount)
	assert.Equal(t, now, m.CreatedAt)

	require.Len(t, rows, 4)
	for i, r := range rows {
		assert.Equal(t, m.ID, r.MeasurementID)
		assert.Equal(t, i, r.SampleIndex)
		assert.Equal(t, f.Samples[i][0], r.Voltage)
		assert.Equal(t, f.Samples[i][1], r.Current)
	}
}

func TestFrame_DecodeKeepsExplicitIDAndTime(t *testing.T) {
	created := time.Date(2024, 2, 1, 8, 0, 0, 0, time.FixedZone("UTC+2", 7200))
	f := validFrame()
	f.Measurement = "bridge-42"
	f.CreatedAt = &created

	m, _, err := f.Decode(time.Now())
	require.NoError(t, err)
	assert.Equal(t, "bridge-42", m.ID)
	assert.True(t, created.Equal(m.CreatedAt))
	assert.Equal(t, time.UTC, m.CreatedAt.Location())
}

func TestFrame_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Frame)
	}{
		{"instrument", func(f *Frame) { f.Instrument = "scope" }},
		{"scan rate", func(f *Frame) { f.ScanRate = 0 }},
		{"concentration", func(f *Frame) { f.Concentration = -1 }},
		{"unit", func(f *Frame) { f.Unit = "volts" }},
		{"too few samples", func(f *Frame) { f.Samples = f.Samples[:2] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFrame()
			tt.mutate(f)
			err := f.Validate()
			assert.True(t, errors.Is(err, ErrInvalidFrame), "got %v", err)
		})
	}

	var nilFrame *Frame
	assert.ErrorIs(t, nilFrame.Validate(), ErrInvalidFrame)
	assert.NoError(t, validFrame().Validate())
}

func TestNewFrame(t *testing.T) {
	samples := []domain.Sample{{Voltage: 0, Current: 1}, {Voltage: 0.1, Current: 2}, {Voltage: 0.2, Current: 1}}
	f := NewFrame(domain.InstrumentReference, "s1", domain.Condition{Concentration: 10, ScanRate: 50}, domain.UnitAuto, samples)

	require.NoError(t, f.Validate())
	assert.Equal(t, "reference", f.Instrument)
	assert.Equal(t, [2]float64{0.1, 2}, f.Samples[1])
}
