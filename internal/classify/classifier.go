// Package classify assigns redox types to scored candidates and orders the final peak list.
package classify

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"voltammetry-lab/internal/detection"
	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/preprocess"
)

// Config tunes the local baseline fit.
type Config struct {
	FlankWindow int // samples on each side outside the half-height span
}

// DefaultConfig returns the default classifier configuration.
func DefaultConfig() Config {
	return Config{FlankWindow: 15}
}

// Classifier turns merged candidates into typed peaks.
type Classifier struct {
	cfg Config
}

// New creates a Classifier.
func New(cfg Config) *Classifier {
	if cfg.FlankWindow < 2 {
		cfg.FlankWindow = DefaultConfig().FlankWindow
	}
	return &Classifier{cfg: cfg}
}

// Classify types every candidate by the sign of its current relative to the
// local baseline and returns peaks sorted ascending by voltage (ties by
// current). Candidates must carry features.
func (c *Classifier) Classify(nw *preprocess.NormalizedWaveform, scored []detection.Scored) []domain.Peak {
	peaks := make([]domain.Peak, 0, len(scored))
	for _, s := range scored {
		cand := s.Candidate
		var fv domain.FeatureVector
		if cand.Features != nil {
			fv = *cand.Features
		}
		peaks = append(peaks, domain.Peak{
			Voltage:    cand.Voltage,
			Current:    cand.Current,
			Type:       c.peakType(nw, cand, fv),
			Confidence: s.Confidence,
			Features:   fv,
			Enabled:    s.Enabled,
			Detector:   cand.Detector,
			Index:      cand.Index,
		})
	}
	SortPeaks(peaks)
	return peaks
}

// SortPeaks orders peaks ascending by voltage, then by current.
func SortPeaks(peaks []domain.Peak) {
	sort.SliceStable(peaks, func(i, j int) bool {
		if peaks[i].Voltage != peaks[j].Voltage {
			return peaks[i].Voltage < peaks[j].Voltage
		}
		return peaks[i].Current < peaks[j].Current
	})
}

// peakType compares the apex current with a line fitted through the flanks
// just outside the half-height span. Without usable flanks the detector
// polarity decides.
func (c *Classifier) peakType(nw *preprocess.NormalizedWaveform, cand domain.PeakCandidate, fv domain.FeatureVector) domain.PeakType {
	byPolarity := domain.PeakTypeOxidation
	if cand.Polarity == domain.PolarityNegative {
		byPolarity = domain.PeakTypeReduction
	}
	if nw == nil || cand.Index < 0 || cand.Index >= nw.Len() {
		return byPolarity
	}

	start, end := fv.SpanStart, fv.SpanEnd
	if end <= start {
		start, end = cand.Index, cand.Index
	}

	var xs, ys []float64
	w := c.cfg.FlankWindow
	for i := max(0, start-w); i < start; i++ {
		xs = append(xs, float64(i))
		ys = append(ys, nw.Current[i])
	}
	for i := end + 1; i <= min(nw.Len()-1, end+w); i++ {
		xs = append(xs, float64(i))
		ys = append(ys, nw.Current[i])
	}
	if len(xs) < 2 {
		return byPolarity
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	residual := nw.Current[cand.Index] - (alpha + beta*float64(cand.Index))
	switch {
	case residual > 0:
		return domain.PeakTypeOxidation
	case residual < 0:
		return domain.PeakTypeReduction
	}
	return byPolarity
}
