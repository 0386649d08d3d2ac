package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/preprocess"
)

// linearSweep returns a one-directional sweep with a Gaussian bump.
func linearSweep(start, end, step, center, height, sigma float64) *preprocess.NormalizedWaveform {
	n := int(math.Round((end-start)/step)) + 1
	samples := make([]domain.Sample, n)
	for i := range samples {
		v := start + float64(i)*step
		d := v - center
		samples[i] = domain.Sample{Voltage: v, Current: height * math.Exp(-d*d/(2*sigma*sigma))}
	}
	nw, ok := preprocess.New(preprocess.DefaultConfig()).Normalize(&domain.Waveform{
		Samples:  samples,
		UnitHint: domain.UnitMicroampere,
	})
	if !ok {
		panic("sweep should normalize")
	}
	return nw
}

func indexOf(nw *preprocess.NormalizedWaveform, v float64) int {
	best := 0
	for i, x := range nw.Voltage {
		if math.Abs(x-v) < math.Abs(nw.Voltage[best]-v) {
			best = i
		}
	}
	return best
}

func TestExtract_SymmetricGaussian(t *testing.T) {
	nw := linearSweep(-0.2, 0.6, 0.002, 0.2, 10, 0.025)
	ex := New(DefaultConfig())
	f := ex.Prepare(nw, "")

	// start off-apex, extractor re-centres within the search radius
	c := f.Extract(domain.PeakCandidate{Index: indexOf(nw, 0.2) - 2, Polarity: domain.PolarityPositive})
	require.NotNil(t, c.Features)
	fv := c.Features

	assert.InDelta(t, 0.2, c.Voltage, 0.002)
	assert.InDelta(t, 2.3548*0.025, fv.FWHM, 0.002)
	assert.InDelta(t, 0.5, fv.Asymmetry, 0.01)
	assert.Greater(t, fv.Area, 0.4)
	assert.Less(t, fv.Area, 0.65)
	assert.Greater(t, fv.SNR, 100.0)
	assert.Equal(t, 1.0, fv.PositionScore)
	assert.InDelta(t, 1.0, fv.Prominence, 0.02)
	assert.Less(t, fv.SpanStart, c.Index)
	assert.Greater(t, fv.SpanEnd, c.Index)
}

func TestExtract_NegativePolarity(t *testing.T) {
	nw := linearSweep(-0.3, 0.4, 0.002, 0.05, -8, 0.025)
	f := New(DefaultConfig()).Prepare(nw, "")

	c := f.Extract(domain.PeakCandidate{Index: indexOf(nw, 0.05), Polarity: domain.PolarityNegative})
	require.NotNil(t, c.Features)
	assert.InDelta(t, 0.05, c.Voltage, 0.002)
	assert.InDelta(t, -8, c.Current, 0.05)
	assert.InDelta(t, 2.3548*0.025, c.Features.FWHM, 0.002)
	assert.Equal(t, 1.0, c.Features.PositionScore)
}

func TestExtract_EdgeDegradesToNeutral(t *testing.T) {
	// apex sits on the first sample: no left crossing, no left window
	nw := linearSweep(0.2, 0.5, 0.002, 0.2, 10, 0.025)
	f := New(DefaultConfig()).Prepare(nw, "")

	c := f.Extract(domain.PeakCandidate{Index: 0, Polarity: domain.PolarityPositive})
	require.NotNil(t, c.Features)
	assert.Equal(t, 0.5, c.Features.Asymmetry)
	assert.Equal(t, 0, c.Features.SpanStart)
	assert.Greater(t, c.Features.FWHM, 0.0)
	assert.Less(t, c.Features.FWHM, 2.3548*0.025)
	assert.False(t, math.IsNaN(c.Features.SNR))
}

func TestPositionScore(t *testing.T) {
	nw := linearSweep(-0.2, 0.6, 0.002, 0.2, 10, 0.025)
	f := New(DefaultConfig()).Prepare(nw, "")

	assert.Equal(t, 1.0, f.PositionScore(0.25, domain.PolarityPositive))
	assert.InDelta(t, math.Exp(-2), f.PositionScore(0.6, domain.PolarityPositive), 1e-9)
	assert.Equal(t, 1.0, f.PositionScore(0.0, domain.PolarityNegative))
	assert.Less(t, f.PositionScore(-0.4, domain.PolarityNegative), 0.01)
}

func TestPositionScore_AnalyteOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Analytes = map[string]AnalyteWindows{
		"dopamine": {
			Oxidation: Window{Min: 0.45, Max: 0.65},
			Reduction: Window{Min: 0.30, Max: 0.50},
		},
	}
	nw := linearSweep(-0.2, 0.8, 0.002, 0.55, 10, 0.025)
	ex := New(cfg)

	assert.Equal(t, 1.0, ex.Prepare(nw, "dopamine").PositionScore(0.55, domain.PolarityPositive))
	assert.Less(t, ex.Prepare(nw, "").PositionScore(0.55, domain.PolarityPositive), 1.0)
	// unknown analytes use the defaults
	assert.Equal(t, 1.0, ex.Prepare(nw, "unknown").PositionScore(0.2, domain.PolarityPositive))
}

func TestExtractAll_Deterministic(t *testing.T) {
	nw := linearSweep(-0.2, 0.6, 0.002, 0.2, 10, 0.025)
	ex := New(DefaultConfig())
	cands := []domain.PeakCandidate{{Index: indexOf(nw, 0.2), Polarity: domain.PolarityPositive}}

	a := ex.ExtractAll(nw, "", cands)
	b := ex.ExtractAll(nw, "", cands)
	require.Len(t, a, 1)
	assert.Equal(t, *a[0].Features, *b[0].Features)
	assert.Nil(t, cands[0].Features, "input candidates must not be mutated")
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.PositionFalloff = 0
	assert.Error(t, bad.Validate())

	inverted := DefaultConfig()
	inverted.Analytes = map[string]AnalyteWindows{"x": {Oxidation: Window{Min: 1, Max: 0}}}
	assert.Error(t, inverted.Validate())
}
