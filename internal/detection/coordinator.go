package detection

import (
	"math"
	"sort"
	"sync"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/preprocess"
)

// Scored is a candidate with its confidence, ready for merging.
type Scored struct {
	Candidate  domain.PeakCandidate
	Confidence float64
	Enabled    bool
}

// Coordinator runs a set of detectors and merges their output.
type Coordinator struct {
	detectors     []Detector
	mergeFraction float64
}

// NewCoordinator creates a Coordinator over detectors.
func NewCoordinator(mergeFraction float64, detectors ...Detector) *Coordinator {
	if mergeFraction <= 0 {
		mergeFraction = DefaultConfig().MergeWindowFraction
	}
	return &Coordinator{detectors: detectors, mergeFraction: mergeFraction}
}

// Names returns the configured detector names in run order.
func (c *Coordinator) Names() []domain.DetectorName {
	names := make([]domain.DetectorName, len(c.detectors))
	for i, d := range c.detectors {
		names[i] = d.Name()
	}
	return names
}

// Detect runs every detector concurrently and concatenates the results in
// detector order. Detectors share only the read-only waveform.
func (c *Coordinator) Detect(nw *preprocess.NormalizedWaveform) []domain.PeakCandidate {
	results := make([][]domain.PeakCandidate, len(c.detectors))

	var wg sync.WaitGroup
	for i, d := range c.detectors {
		wg.Add(1)
		go func(i int, d Detector) {
			defer wg.Done()
			results[i] = d.Detect(nw)
		}(i, d)
	}
	wg.Wait()

	var out []domain.PeakCandidate
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// MergeWindow returns the duplicate voltage window for a sweep range.
func (c *Coordinator) MergeWindow(sweepRange float64) float64 {
	return c.mergeFraction * sweepRange
}

// Merge collapses duplicates and keeps the best instance of each peak.
//
// Two candidates are duplicates when they share polarity and either lie
// within the merge window in voltage, or one apex falls inside the other's
// half-height span. Candidates are ranked by confidence, then detector
// priority (feature_enhanced > statistical > deterministic), then lower
// index; the first-ranked member of each group survives.
func (c *Coordinator) Merge(scored []Scored, sweepRange float64) []Scored {
	ranked := make([]Scored, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		pa, pb := a.Candidate.Detector.Priority(), b.Candidate.Detector.Priority()
		if pa != pb {
			return pa > pb
		}
		return a.Candidate.Index < b.Candidate.Index
	})

	window := c.MergeWindow(sweepRange)
	var kept []Scored
	for _, s := range ranked {
		dup := false
		for _, k := range kept {
			if duplicates(s.Candidate, k.Candidate, window) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, s)
		}
	}
	return kept
}

func duplicates(a, b domain.PeakCandidate, window float64) bool {
	if a.Polarity != b.Polarity {
		return false
	}
	if math.Abs(a.Voltage-b.Voltage) <= window {
		return true
	}
	return inSpan(a.Index, b.Features) || inSpan(b.Index, a.Features)
}

func inSpan(idx int, f *domain.FeatureVector) bool {
	if f == nil || f.SpanEnd <= f.SpanStart {
		return false
	}
	return idx >= f.SpanStart && idx <= f.SpanEnd
}
