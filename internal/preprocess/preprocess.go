// Package preprocess turns raw sweeps into unit-consistent, normalized signals.
package preprocess

import (
	"math"

	"voltammetry-lab/internal/domain"
)

// MinSamples is the shortest sweep that can carry a peak.
const MinSamples = 3

// Config holds the magnitude thresholds of the unit heuristic.
type Config struct {
	// AmpereCeiling: max|I| below this means the values are amperes.
	AmpereCeiling float64
	// NanoampFloor: max|I| at or above this means the values are nanoamperes.
	NanoampFloor float64
}

// DefaultConfig returns the default unit heuristic thresholds.
func DefaultConfig() Config {
	return Config{
		AmpereCeiling: 1e-2,
		NanoampFloor:  1e4,
	}
}

// NormalizedWaveform is a sweep with currents in microamperes.
type NormalizedWaveform struct {
	Voltage           []float64
	Current           []float64 // µA
	CurrentNormalized []float64 // Current / MaxAbsCurrent
	NoiseSigma        float64   // µA
	ScaleApplied      float64   // multiplier from input unit to µA
	EffectiveUnit     domain.UnitHint
	MaxAbsCurrent     float64 // µA
	SweepRange        float64 // max V - min V
	Dropped           int     // non-finite samples removed
}

// Len returns the number of samples.
func (nw *NormalizedWaveform) Len() int {
	if nw == nil {
		return 0
	}
	return len(nw.Voltage)
}

// Preprocessor normalizes waveforms.
type Preprocessor struct {
	cfg Config
}

// New creates a Preprocessor. Zero thresholds fall back to defaults.
func New(cfg Config) *Preprocessor {
	def := DefaultConfig()
	if cfg.AmpereCeiling <= 0 {
		cfg.AmpereCeiling = def.AmpereCeiling
	}
	if cfg.NanoampFloor <= 0 {
		cfg.NanoampFloor = def.NanoampFloor
	}
	return &Preprocessor{cfg: cfg}
}

// Normalize scales currents to µA, estimates noise and normalizes to max |I|.
// Returns ok=false for sweeps with fewer than MinSamples finite samples or
// an all-zero current: there is nothing to detect, which is not an error.
func (p *Preprocessor) Normalize(w *domain.Waveform) (*NormalizedWaveform, bool) {
	if w == nil {
		return nil, false
	}

	volts := make([]float64, 0, len(w.Samples))
	raw := make([]float64, 0, len(w.Samples))
	dropped := 0
	for _, s := range w.Samples {
		if !finite(s.Voltage) || !finite(s.Current) {
			dropped++
			continue
		}
		volts = append(volts, s.Voltage)
		raw = append(raw, s.Current)
	}
	if len(raw) < MinSamples {
		return nil, false
	}

	rawMax := MaxAbs(raw)
	if rawMax == 0 {
		return nil, false
	}

	scale, unit := p.ScaleOf(w.UnitHint, raw)

	current := make([]float64, len(raw))
	for i, v := range raw {
		current[i] = v * scale
	}
	maxAbs := rawMax * scale

	normalized := make([]float64, len(current))
	for i, v := range current {
		normalized[i] = v / maxAbs
	}

	vMin, vMax := volts[0], volts[0]
	for _, v := range volts {
		vMin = math.Min(vMin, v)
		vMax = math.Max(vMax, v)
	}

	return &NormalizedWaveform{
		Voltage:           volts,
		Current:           current,
		CurrentNormalized: normalized,
		NoiseSigma:        EstimateNoise(current),
		ScaleApplied:      scale,
		EffectiveUnit:     unit,
		MaxAbsCurrent:     maxAbs,
		SweepRange:        vMax - vMin,
		Dropped:           dropped,
	}, true
}

// ResolveUnit picks the effective current unit. An explicit hint always wins.
func (p *Preprocessor) ResolveUnit(hint domain.UnitHint, maxAbs float64) domain.UnitHint {
	if hint != domain.UnitAuto && hint.IsValid() {
		return hint
	}
	switch {
	case maxAbs < p.cfg.AmpereCeiling:
		return domain.UnitAmpere
	case maxAbs >= p.cfg.NanoampFloor:
		return domain.UnitNanoampere
	default:
		return domain.UnitMicroampere
	}
}

// ScaleOf resolves the unit of currents and returns the multiplier to µA.
// Non-finite values are ignored by the magnitude heuristic.
func (p *Preprocessor) ScaleOf(hint domain.UnitHint, currents []float64) (float64, domain.UnitHint) {
	maxAbs := 0.0
	for _, v := range currents {
		if finite(v) {
			maxAbs = math.Max(maxAbs, math.Abs(v))
		}
	}
	unit := p.ResolveUnit(hint, maxAbs)
	return ScaleFor(unit), unit
}

// ScaleFor returns the multiplier converting unit to microamperes.
func ScaleFor(unit domain.UnitHint) float64 {
	switch unit {
	case domain.UnitAmpere:
		return 1e6
	case domain.UnitMilliampere:
		return 1e3
	case domain.UnitNanoampere:
		return 1e-3
	default:
		return 1
	}
}

// EstimateNoise estimates white-noise sigma from the median absolute
// deviation of first differences. Differencing removes slow baseline and
// peak shape, and the MAD ignores the few large steps on peak flanks.
func EstimateNoise(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	diffs := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		diffs[i-1] = values[i] - values[i-1]
	}
	med := Median(diffs)
	for i, d := range diffs {
		diffs[i] = math.Abs(d - med)
	}
	return Median(diffs) / (0.6745 * math.Sqrt2)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
