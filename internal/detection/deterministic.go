package detection

import (
	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/preprocess"
)

// Deterministic finds local maxima of the current and of its negation.
type Deterministic struct {
	MinProminence float64
	MinWidth      int
}

// NewDeterministic creates a Deterministic detector.
func NewDeterministic(cfg Config) *Deterministic {
	return &Deterministic{
		MinProminence: cfg.MinProminence,
		MinWidth:      cfg.MinWidth,
	}
}

// Name returns the detector name.
func (d *Deterministic) Name() domain.DetectorName {
	return domain.DetectorDeterministic
}

// Detect scans the normalized current for oxidation swings and its
// negation for reduction swings.
func (d *Deterministic) Detect(nw *preprocess.NormalizedWaveform) []domain.PeakCandidate {
	if nw.Len() < preprocess.MinSamples {
		return nil
	}

	var out []domain.PeakCandidate
	for _, p := range polarities {
		sig := oriented(nw.CurrentNormalized, p)
		for _, i := range localMaxima(sig, d.MinProminence, d.MinWidth) {
			out = append(out, domain.PeakCandidate{
				Index:      i,
				Voltage:    nw.Voltage[i],
				Current:    nw.Current[i],
				Polarity:   p,
				Prominence: preprocess.Prominence(sig, i),
				Detector:   domain.DetectorDeterministic,
			})
		}
	}
	sortByIndex(out)
	return out
}

var _ Detector = (*Deterministic)(nil)
