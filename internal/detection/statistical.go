package detection

import (
	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/preprocess"
)

// Statistical smooths the sweep, removes a robust baseline from each half,
// then flags sign changes of the first derivative confirmed by the sign of
// the second derivative. The baseline removal makes it tolerant of slow drift.
type Statistical struct {
	Sigma         float64
	MinProminence float64
	MinWidth      int
}

// NewStatistical creates a Statistical detector.
func NewStatistical(cfg Config) *Statistical {
	return &Statistical{
		Sigma:         cfg.SmoothingSigma,
		MinProminence: cfg.MinProminence,
		MinWidth:      cfg.MinWidth,
	}
}

// Name returns the detector name.
func (s *Statistical) Name() domain.DetectorName {
	return domain.DetectorStatistical
}

// Detect returns smoothed extrema of both polarities.
func (s *Statistical) Detect(nw *preprocess.NormalizedWaveform) []domain.PeakCandidate {
	n := nw.Len()
	if n < preprocess.MinSamples {
		return nil
	}

	base := preprocess.DetrendSweep(preprocess.GaussianSmooth(nw.CurrentNormalized, s.Sigma), nw.Voltage)
	d1 := derivative(base)
	d2 := derivative(d1)

	var out []domain.PeakCandidate
	for _, p := range polarities {
		sig := oriented(base, p)
		sign := float64(p)
		for i := 1; i < n; i++ {
			// oriented slope goes from rising to not rising between i-1 and i
			if !(sign*d1[i-1] > 0 && sign*d1[i] <= 0) {
				continue
			}
			apex := i
			if sig[i-1] > sig[i] {
				apex = i - 1
			}
			if sign*d2[apex] >= 0 {
				continue
			}
			prom := preprocess.Prominence(sig, apex)
			if prom < s.MinProminence {
				continue
			}
			if preprocess.HalfProminenceWidth(sig, apex, prom) < s.MinWidth {
				continue
			}
			out = append(out, domain.PeakCandidate{
				Index:      apex,
				Voltage:    nw.Voltage[apex],
				Current:    nw.Current[apex],
				Polarity:   p,
				Prominence: prom,
				Detector:   domain.DetectorStatistical,
			})
		}
	}
	out = dedupIndex(out)
	sortByIndex(out)
	return out
}

// derivative uses central differences inside and one-sided at the ends.
func derivative(values []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	out[0] = values[1] - values[0]
	out[n-1] = values[n-1] - values[n-2]
	for i := 1; i < n-1; i++ {
		out[i] = (values[i+1] - values[i-1]) / 2
	}
	return out
}

// dedupIndex drops repeated (index, polarity) hits produced by flat tops.
func dedupIndex(cands []domain.PeakCandidate) []domain.PeakCandidate {
	seen := make(map[[2]int]bool, len(cands))
	out := cands[:0]
	for _, c := range cands {
		k := [2]int{c.Index, int(c.Polarity)}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}

var _ Detector = (*Statistical)(nil)
