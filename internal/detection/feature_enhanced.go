package detection

import (
	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/features"
	"voltammetry-lab/internal/preprocess"
)

// FeatureEnhanced runs deterministic detection and attaches the full
// FeatureVector to every candidate, dropping those below MinSNR.
type FeatureEnhanced struct {
	base      *Deterministic
	extractor *features.Extractor
	MinSNR    float64
}

// NewFeatureEnhanced creates a FeatureEnhanced detector.
func NewFeatureEnhanced(cfg Config, ex *features.Extractor) *FeatureEnhanced {
	return &FeatureEnhanced{
		base:      NewDeterministic(cfg),
		extractor: ex,
		MinSNR:    cfg.MinSNR,
	}
}

// Name returns the detector name.
func (f *FeatureEnhanced) Name() domain.DetectorName {
	return domain.DetectorFeatureEnhanced
}

// Detect returns deterministic candidates with features attached.
func (f *FeatureEnhanced) Detect(nw *preprocess.NormalizedWaveform) []domain.PeakCandidate {
	cands := f.base.Detect(nw)
	if len(cands) == 0 {
		return nil
	}

	frame := f.extractor.Prepare(nw, "")
	out := make([]domain.PeakCandidate, 0, len(cands))
	for _, c := range cands {
		c = frame.Extract(c)
		if c.Features.SNR < f.MinSNR {
			continue
		}
		c.Detector = domain.DetectorFeatureEnhanced
		out = append(out, c)
	}
	out = dedupIndex(out)
	sortByIndex(out)
	return out
}

var _ Detector = (*FeatureEnhanced)(nil)
