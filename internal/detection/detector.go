// Package detection finds raw peak candidates in normalized sweeps.
package detection

import (
	"sort"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/preprocess"
)

// Detector produces raw peak candidates from one normalized sweep.
// Implementations are stateless and safe for concurrent use.
type Detector interface {
	// Detect returns candidates ordered by index.
	Detect(nw *preprocess.NormalizedWaveform) []domain.PeakCandidate

	// Name identifies the strategy.
	Name() domain.DetectorName
}

// Config holds thresholds shared by the detectors.
type Config struct {
	MinProminence       float64 // fraction of max |I|
	MinWidth            int     // samples at half prominence
	SmoothingSigma      float64 // samples, statistical detector
	MinSNR              float64 // feature-enhanced gate
	MergeWindowFraction float64 // of the sweep range
}

// DefaultConfig returns the default detector thresholds.
func DefaultConfig() Config {
	return Config{
		MinProminence:       0.1,
		MinWidth:            3,
		SmoothingSigma:      3,
		MinSNR:              3,
		MergeWindowFraction: 0.01,
	}
}

// polarities are scanned in this order by every detector.
var polarities = []domain.Polarity{domain.PolarityPositive, domain.PolarityNegative}

// oriented returns values multiplied by the polarity sign.
func oriented(values []float64, p domain.Polarity) []float64 {
	out := make([]float64, len(values))
	s := float64(p)
	for i, v := range values {
		out[i] = s * v
	}
	return out
}

// localMaxima returns indices of interior local maxima of sig that pass the
// prominence and width thresholds. A plateau reports its first sample.
func localMaxima(sig []float64, minProminence float64, minWidth int) []int {
	var out []int
	for i := 1; i < len(sig)-1; i++ {
		if !(sig[i] > sig[i-1] && sig[i] >= sig[i+1]) {
			continue
		}
		prom := preprocess.Prominence(sig, i)
		if prom < minProminence {
			continue
		}
		if preprocess.HalfProminenceWidth(sig, i, prom) < minWidth {
			continue
		}
		out = append(out, i)
	}
	return out
}

// sortByIndex orders candidates by index, positive polarity first on ties.
func sortByIndex(cands []domain.PeakCandidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Index != cands[j].Index {
			return cands[i].Index < cands[j].Index
		}
		return cands[i].Polarity > cands[j].Polarity
	})
}
