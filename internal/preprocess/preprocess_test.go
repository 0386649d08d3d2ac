package preprocess

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/synth"
)

func waveformOf(currents []float64, hint domain.UnitHint) *domain.Waveform {
	samples := make([]domain.Sample, len(currents))
	for i, c := range currents {
		samples[i] = domain.Sample{Voltage: float64(i) * 0.01, Current: c}
	}
	return &domain.Waveform{Samples: samples, ScanRate: 100, UnitHint: hint}
}

func TestNormalize_AllZeroIsEmpty(t *testing.T) {
	w := synth.Zeros(100)
	nw, ok := New(DefaultConfig()).Normalize(&w)
	if ok || nw != nil {
		t.Fatalf("expected empty result for all-zero sweep, got ok=%v", ok)
	}
}

func TestNormalize_TooShortIsEmpty(t *testing.T) {
	_, ok := New(DefaultConfig()).Normalize(waveformOf([]float64{1, 2}, ""))
	if ok {
		t.Fatal("expected empty result for 2 samples")
	}
}

func TestNormalize_UnitHeuristic(t *testing.T) {
	tests := []struct {
		name  string
		peak  float64
		hint  domain.UnitHint
		scale float64
		unit  domain.UnitHint
	}{
		{"amperes mislabeled", 2e-5, "", 1e6, domain.UnitAmpere},
		{"microamperes", 12, "", 1, domain.UnitMicroampere},
		{"nanoamperes", 5e4, "", 1e-3, domain.UnitNanoampere},
		{"hint overrides heuristic", 2e-5, domain.UnitMicroampere, 1, domain.UnitMicroampere},
		{"milliampere hint", 0.5, domain.UnitMilliampere, 1e3, domain.UnitMilliampere},
		{"nanoampere hint", 12, domain.UnitNanoampere, 1e-3, domain.UnitNanoampere},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nw, ok := New(DefaultConfig()).Normalize(waveformOf([]float64{0, tt.peak / 2, tt.peak, tt.peak / 3}, tt.hint))
			require.True(t, ok)
			assert.Equal(t, tt.scale, nw.ScaleApplied)
			assert.Equal(t, tt.unit, nw.EffectiveUnit)
			assert.InEpsilon(t, tt.peak*tt.scale, nw.MaxAbsCurrent, 1e-12)
		})
	}
}

func TestNormalize_CustomThresholds(t *testing.T) {
	p := New(Config{AmpereCeiling: 1e-4, NanoampFloor: 100})
	nw, ok := p.Normalize(waveformOf([]float64{0, 5e-3, 1e-3}, ""))
	require.True(t, ok)
	assert.Equal(t, 1.0, nw.ScaleApplied)

	nw, ok = p.Normalize(waveformOf([]float64{0, 500, 100}, ""))
	require.True(t, ok)
	assert.Equal(t, 1e-3, nw.ScaleApplied)
}

func TestNormalize_NormalizedRange(t *testing.T) {
	w := synth.CyclicSweep(synth.ScenarioA(1))
	nw, ok := New(DefaultConfig()).Normalize(&w)
	require.True(t, ok)

	maxAbs := 0.0
	for _, v := range nw.CurrentNormalized {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	assert.InDelta(t, 1.0, maxAbs, 1e-12)
	assert.Equal(t, w.Len(), nw.Len())
	assert.InDelta(t, 0.5, nw.SweepRange, 1e-9)
}

func TestNormalize_DropsNonFinite(t *testing.T) {
	w := waveformOf([]float64{0, 1, math.NaN(), 2, math.Inf(1), 1}, domain.UnitMicroampere)
	nw, ok := New(DefaultConfig()).Normalize(w)
	require.True(t, ok)
	assert.Equal(t, 4, nw.Len())
	assert.Equal(t, 2, nw.Dropped)
}

func TestEstimateNoise_RecoversSigma(t *testing.T) {
	opts := synth.ScenarioA(7)
	opts.Bumps = nil
	opts.Offset = 1
	opts.Noise = 0.2
	w := synth.CyclicSweep(opts)
	nw, ok := New(DefaultConfig()).Normalize(&w)
	require.True(t, ok)
	assert.InDelta(t, 0.2, nw.NoiseSigma, 0.04)
}

func TestProminence(t *testing.T) {
	values := []float64{0, 1, 0.5, 3, 0.2, 0.4, 0}
	assert.InDelta(t, 3.0, Prominence(values, 3), 1e-12)
	// right walk stops at 3, so the higher valley is 0.5
	assert.InDelta(t, 0.5, Prominence(values, 1), 1e-12)
	assert.InDelta(t, 0.2, Prominence(values, 5), 1e-12)
	assert.Equal(t, 0.0, Prominence(values, 99))
}

func TestGaussianSmooth_PreservesConstant(t *testing.T) {
	in := []float64{2, 2, 2, 2, 2, 2, 2}
	out := GaussianSmooth(in, 1.5)
	for i := range out {
		assert.InDelta(t, 2.0, out[i], 1e-12)
	}
}

func TestDetrend_RemovesLine(t *testing.T) {
	in := make([]float64, 50)
	for i := range in {
		in[i] = 3 + 0.25*float64(i)
	}
	for _, v := range Detrend(in) {
		assert.InDelta(t, 0, v, 1e-9)
	}
}

func TestSegments_SplitsAtVertex(t *testing.T) {
	w := synth.CyclicSweep(synth.ScenarioA(1))
	volts := make([]float64, w.Len())
	for i, s := range w.Samples {
		volts[i] = s.Voltage
	}

	assert.Equal(t, [][2]int{{0, 250}, {250, 501}}, Segments(volts))
	assert.Equal(t, [][2]int{{0, 3}}, Segments([]float64{0, 0.1, 0.1}))
	assert.Nil(t, Segments(nil))
}

func TestDetrendSweep_IgnoresPeaks(t *testing.T) {
	opts := synth.ScenarioA(1)
	opts.Noise = 0
	opts.Slope = 0.01
	w := synth.CyclicSweep(opts)

	volts := make([]float64, w.Len())
	cur := make([]float64, w.Len())
	for i, s := range w.Samples {
		volts[i], cur[i] = s.Voltage, s.Current
	}
	out := DetrendSweep(cur, volts)

	// flat baseline away from both bumps
	for i := 0; i < 80; i++ {
		assert.InDelta(t, 0, out[i], 0.01, "index %d", i)
	}
	for i := 300; i < 360; i++ {
		assert.InDelta(t, 0, out[i], 0.01, "index %d", i)
	}
	assert.InDelta(t, 10, out[150], 0.05)
	assert.InDelta(t, -8, out[425], 0.05)

	// a single line over the whole sweep is tilted by the bumps
	assert.Greater(t, math.Abs(Detrend(cur)[0]), 0.5)
}
