package calibration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voltammetry-lab/internal/analysis"
	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/storage/memory"
	"voltammetry-lab/internal/synth"
)

func storeSweep(t *testing.T, d *Dataset, id string, inst domain.Instrument, scale float64, seed int64) {
	t.Helper()
	ctx := context.Background()

	opts := synth.ScenarioA(seed)
	for i := range opts.Bumps {
		opts.Bumps[i].Height *= scale
	}
	w := synth.CyclicSweep(opts)

	m := &domain.Measurement{
		ID:          id,
		Instrument:  inst,
		Condition:   cond5mM,
		UnitHint:    domain.UnitMicroampere,
		SampleCount: w.Len(),
		CreatedAt:   fixedNow.Add(time.Duration(seed) * time.Minute),
	}
	require.NoError(t, d.Measurements.Insert(ctx, m))

	rows := make([]*domain.WaveformSample, w.Len())
	for i, s := range w.Samples {
		rows[i] = &domain.WaveformSample{MeasurementID: id, SampleIndex: i, Voltage: s.Voltage, Current: s.Current}
	}
	require.NoError(t, d.Waveforms.InsertBulk(ctx, rows))
}

func TestDataset_PoolAndTrain(t *testing.T) {
	an, err := analysis.New(analysis.DefaultOptions())
	require.NoError(t, err)
	d := &Dataset{
		Measurements: memory.NewMeasurementStore(),
		Waveforms:    memory.NewWaveformStore(),
		Analyzer:     an,
	}
	for i := 0; i < 3; i++ {
		storeSweep(t, d, fmt.Sprintf("src-%d", i), domain.InstrumentSource, 1, int64(i+1))
		storeSweep(t, d, fmt.Sprintf("ref-%d", i), domain.InstrumentReference, 2, int64(i+10))
	}

	agg, err := d.Pool(context.Background())
	require.NoError(t, err)

	pools := agg.Pools()
	require.Len(t, pools, 1)
	// 3 x 3 measurement pairs, one oxidation and one reduction peak each
	assert.Len(t, pools[0].Points, 18)

	m, err := newBuilder(t).Fit(pools[0].Condition, pools[0].Points)
	require.NoError(t, err)
	assert.InDelta(t, 2, m.GainFactor, 0.1)
	assert.Equal(t, domain.TierHigh, m.Tier)
}

func TestDataset_LoadWaveformUnknownID(t *testing.T) {
	d := &Dataset{
		Measurements: memory.NewMeasurementStore(),
		Waveforms:    memory.NewWaveformStore(),
	}
	_, _, err := d.LoadWaveform(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrUnknownMeasurementID)
}

func TestDataset_LoadCurveInMicroamps(t *testing.T) {
	an, err := analysis.New(analysis.DefaultOptions())
	require.NoError(t, err)
	d := &Dataset{
		Measurements: memory.NewMeasurementStore(),
		Waveforms:    memory.NewWaveformStore(),
		Analyzer:     an,
	}
	ctx := context.Background()

	currents := []float64{1e-6, -2e-6, 3e-6}
	require.NoError(t, d.Measurements.Insert(ctx, &domain.Measurement{
		ID: "amps", Instrument: domain.InstrumentSource, Condition: cond5mM,
		UnitHint: domain.UnitAmpere, SampleCount: len(currents), CreatedAt: fixedNow,
	}))
	rows := make([]*domain.WaveformSample, len(currents))
	for i, c := range currents {
		rows[i] = &domain.WaveformSample{MeasurementID: "amps", SampleIndex: i, Voltage: 0.1 * float64(i), Current: c}
	}
	require.NoError(t, d.Waveforms.InsertBulk(ctx, rows))

	m, curve, err := d.LoadCurve(ctx, "amps")
	require.NoError(t, err)
	assert.Equal(t, "amps", m.ID)
	require.Len(t, curve, 3)
	for i, want := range []float64{1, -2, 3} {
		assert.InDelta(t, 0.1*float64(i), curve[i][0], 1e-12)
		assert.InDelta(t, want, curve[i][1], 1e-9)
	}
}
