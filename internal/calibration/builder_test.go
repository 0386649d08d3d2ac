package calibration

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/synth"
)

var (
	cond5mM  = domain.Condition{Concentration: 5, ScanRate: 100}
	cond10mM = domain.Condition{Concentration: 10, ScanRate: 100}
	fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func newBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(DefaultBuilderConfig(), func() time.Time { return fixedNow })
	require.NoError(t, err)
	return b
}

// scenarioC is 219 pairs from I_ref = 600000*I_src - 3 with small noise.
func scenarioC(seed int64) []domain.PairedPoint {
	return synth.PairedLinear(219, 600000, -3, 1e-6, 1e-4, 0.5, seed)
}

func TestFit_ScenarioC(t *testing.T) {
	m, err := newBuilder(t).Fit(cond5mM, scenarioC(1))
	require.NoError(t, err)

	assert.InEpsilon(t, 600000, m.GainFactor, 0.05)
	assert.InDelta(t, -3, m.Offset, 1)
	assert.Greater(t, m.RSquared, 0.4)
	assert.LessOrEqual(t, m.RSquared, 1.0)
	assert.Equal(t, domain.TierHigh, m.Tier)
	assert.Equal(t, 219, m.DataPointCount)
	assert.InDelta(t, 0.5, m.ResidualStdError, 0.15)
	assert.Equal(t, cond5mM, *m.Condition)
	assert.Equal(t, fixedNow, m.TrainedAt)
}

func TestFit_Deterministic(t *testing.T) {
	b := newBuilder(t)
	a, err := b.Fit(cond5mM, scenarioC(9))
	require.NoError(t, err)
	c, err := b.Fit(cond5mM, scenarioC(9))
	require.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestFit_Tiers(t *testing.T) {
	cfg := DefaultBuilderConfig()
	tests := []struct {
		r2   float64
		want domain.Tier
		ok   bool
	}{
		{0.95, domain.TierHigh, true},
		{0.6, domain.TierHigh, true},
		{0.59, domain.TierMedium, true},
		{0.4, domain.TierMedium, true},
		{0.35, domain.TierLow, true},
		{0.3, domain.TierLow, true},
		{0.29, "", false},
	}
	for _, tt := range tests {
		got, ok := cfg.TierFor(tt.r2)
		assert.Equal(t, tt.want, got, "r2=%v", tt.r2)
		assert.Equal(t, tt.ok, ok, "r2=%v", tt.r2)
	}
}

func TestFit_Rejections(t *testing.T) {
	b := newBuilder(t)

	// pure noise: no relationship between source and reference
	noise := synth.PairedLinear(200, 0, 0, 0, 1, 1, 4)
	_, err := b.Fit(cond5mM, noise)
	assert.ErrorIs(t, err, ErrRejected)

	// negative slope with a perfect fit is still rejected
	neg := synth.PairedLinear(50, -2, 1, 0, 1, 0, 1)
	_, err = b.Fit(cond5mM, neg)
	assert.ErrorIs(t, err, ErrRejected)

	// constant source current
	flat := []domain.PairedPoint{
		{SourceCurrent: 1, ReferenceCurrent: 1},
		{SourceCurrent: 1, ReferenceCurrent: 2},
		{SourceCurrent: 1, ReferenceCurrent: 3},
	}
	_, err = b.Fit(cond5mM, flat)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestFit_InsufficientData(t *testing.T) {
	b := newBuilder(t)
	pts := []domain.PairedPoint{
		{SourceCurrent: 1, ReferenceCurrent: 2},
		{SourceCurrent: 2, ReferenceCurrent: 4},
		{SourceCurrent: math.NaN(), ReferenceCurrent: 6},
	}
	_, err := b.Fit(cond5mM, pts)

	var de *domain.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.CodeInsufficientData, de.Code)
	assert.False(t, errors.Is(err, ErrRejected))
}

func TestBuildDefault_Weighting(t *testing.T) {
	models := []*domain.CalibrationModel{
		{Condition: &cond5mM, GainFactor: 100, Offset: 0, RSquared: 0.9, DataPointCount: 300},
		{Condition: &cond10mM, GainFactor: 200, Offset: 10, RSquared: 0.5, DataPointCount: 100},
	}

	b := newBuilder(t)
	def, err := b.BuildDefault(models)
	require.NoError(t, err)
	assert.True(t, def.IsDefault())
	assert.InDelta(t, 125, def.GainFactor, 1e-9)
	assert.InDelta(t, 2.5, def.Offset, 1e-9)
	assert.InDelta(t, 0.8, def.RSquared, 1e-9)
	assert.Equal(t, domain.TierHigh, def.Tier)
	assert.Equal(t, 400, def.DataPointCount)

	cfg := DefaultBuilderConfig()
	cfg.DefaultWeighting = WeightingRSquared
	br, err := NewBuilder(cfg, nil)
	require.NoError(t, err)
	def, err = br.BuildDefault(models)
	require.NoError(t, err)
	assert.InDelta(t, (0.9*100+0.5*200)/1.4, def.GainFactor, 1e-9)

	_, err = b.BuildDefault(nil)
	assert.ErrorIs(t, err, ErrNoAcceptedModels)
}

func TestBuilderConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultBuilderConfig().Validate())

	cfg := DefaultBuilderConfig()
	cfg.MediumTier = 0.7
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidBuilderConfig)

	cfg = DefaultBuilderConfig()
	cfg.DefaultWeighting = "median"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidBuilderConfig)

	cfg = DefaultBuilderConfig()
	cfg.MinPoints = 1
	_, err := NewBuilder(cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidBuilderConfig)
}

func TestAggregator_RankMatching(t *testing.T) {
	agg := NewAggregator()
	src := []domain.Peak{
		{Voltage: 0.05, Current: -8, Type: domain.PeakTypeReduction, Enabled: true},
		{Voltage: 0.20, Current: 10, Type: domain.PeakTypeOxidation, Enabled: true},
		{Voltage: 0.30, Current: 2, Type: domain.PeakTypeOxidation, Enabled: false},
	}
	ref := []domain.Peak{
		{Voltage: 0.06, Current: -16, Type: domain.PeakTypeReduction, Enabled: true},
		{Voltage: 0.21, Current: 20, Type: domain.PeakTypeOxidation, Enabled: true},
		{Voltage: 0.35, Current: 5, Type: domain.PeakTypeOxidation, Enabled: true},
	}

	n := agg.AddMeasurementPair(cond5mM, src, ref)
	assert.Equal(t, 2, n)

	agg.Add(cond10mM, domain.PairedPoint{SourceCurrent: 1, ReferenceCurrent: 2})
	pools := agg.Pools()
	require.Len(t, pools, 2)
	// "10mM@100mVs" sorts before "5mM@100mVs"
	assert.Equal(t, cond10mM, pools[0].Condition)
	assert.Equal(t, []domain.PairedPoint{
		{SourceCurrent: 10, ReferenceCurrent: 20},
		{SourceCurrent: -8, ReferenceCurrent: -16},
	}, pools[1].Points)
}
