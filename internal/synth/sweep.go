// Package synth generates synthetic cyclic-voltammetry sweeps for demos and tests.
package synth

import (
	"math"
	"math/rand"

	"voltammetry-lab/internal/domain"
)

// Bump is a Gaussian redox feature placed on one half of the sweep.
type Bump struct {
	Center  float64 // V
	Height  float64 // signed current at the apex
	Sigma   float64 // V
	Reverse bool    // false = forward (anodic) half
}

// SweepOptions describes a synthetic triangular sweep.
type SweepOptions struct {
	Start  float64 // V
	Vertex float64 // V
	Step   float64 // V per sample
	Bumps  []Bump
	Noise  float64 // Gaussian sigma, current units
	Seed   int64
	Slope  float64 // linear baseline drift per sample
	Offset float64 // constant baseline

	ScanRate      float64
	Concentration *float64
	UnitHint      domain.UnitHint
}

// ScenarioA returns the two-bump reference sweep: +10 at 0.20 V on the
// forward half and -8 at 0.05 V on the reverse half, noise sigma 0.05.
func ScenarioA(seed int64) SweepOptions {
	return SweepOptions{
		Start:  -0.1,
		Vertex: 0.4,
		Step:   0.002,
		Bumps: []Bump{
			{Center: 0.20, Height: 10, Sigma: 0.025},
			{Center: 0.05, Height: -8, Sigma: 0.025, Reverse: true},
		},
		Noise:    0.05,
		Seed:     seed,
		ScanRate: 100,
		UnitHint: domain.UnitMicroampere,
	}
}

// CyclicSweep builds the forward half Start→Vertex followed by the reverse
// half back to Start. Identical options give identical sweeps.
func CyclicSweep(opts SweepOptions) domain.Waveform {
	step := opts.Step
	if step <= 0 {
		step = 0.002
	}
	n := int(math.Round(math.Abs(opts.Vertex-opts.Start)/step)) + 1
	dir := 1.0
	if opts.Vertex < opts.Start {
		dir = -1
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	samples := make([]domain.Sample, 0, 2*n-1)

	add := func(k int, v float64, reverse bool) {
		i := opts.Offset + opts.Slope*float64(k)
		for _, b := range opts.Bumps {
			if b.Reverse != reverse || b.Sigma <= 0 {
				continue
			}
			d := v - b.Center
			i += b.Height * math.Exp(-d*d/(2*b.Sigma*b.Sigma))
		}
		if opts.Noise > 0 {
			i += rng.NormFloat64() * opts.Noise
		}
		samples = append(samples, domain.Sample{Voltage: v, Current: i})
	}

	k := 0
	for j := 0; j < n; j++ {
		add(k, opts.Start+dir*float64(j)*step, false)
		k++
	}
	for j := n - 2; j >= 0; j-- {
		add(k, opts.Start+dir*float64(j)*step, true)
		k++
	}

	return domain.Waveform{
		Samples:       samples,
		ScanRate:      opts.ScanRate,
		Concentration: opts.Concentration,
		UnitHint:      opts.UnitHint,
	}
}

// Zeros returns a flat all-zero sweep of n samples.
func Zeros(n int) domain.Waveform {
	samples := make([]domain.Sample, n)
	for i := range samples {
		samples[i].Voltage = -0.1 + 0.005*float64(i)
	}
	return domain.Waveform{Samples: samples, ScanRate: 100}
}

// PairedLinear generates n paired points with reference = gain*source + offset
// plus Gaussian noise, sources drawn uniformly from [lo, hi].
func PairedLinear(n int, gain, offset, lo, hi, noise float64, seed int64) []domain.PairedPoint {
	rng := rand.New(rand.NewSource(seed))
	out := make([]domain.PairedPoint, n)
	for i := range out {
		src := lo + rng.Float64()*(hi-lo)
		out[i] = domain.PairedPoint{
			SourceCurrent:    src,
			ReferenceCurrent: gain*src + offset + rng.NormFloat64()*noise,
		}
	}
	return out
}
