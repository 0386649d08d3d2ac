package classify

import (
	"testing"

	"voltammetry-lab/internal/detection"
	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/preprocess"
)

// rampWithBump builds a rising baseline with a dip or bump around index 50.
func rampWithBump(bump float64) *preprocess.NormalizedWaveform {
	n := 101
	nw := &preprocess.NormalizedWaveform{
		Voltage: make([]float64, n),
		Current: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		nw.Voltage[i] = float64(i) * 0.005
		nw.Current[i] = 2 + 0.1*float64(i)
		if i >= 45 && i <= 55 {
			nw.Current[i] += bump
		}
	}
	return nw
}

func scoredAt(idx int, v float64, p domain.Polarity, conf float64) detection.Scored {
	return detection.Scored{
		Candidate: domain.PeakCandidate{
			Index: idx, Voltage: v, Polarity: p,
			Features: &domain.FeatureVector{SpanStart: 44, SpanEnd: 56},
		},
		Confidence: conf,
		Enabled:    conf >= 30,
	}
}

func TestClassify_TypeFromBaseline(t *testing.T) {
	c := New(DefaultConfig())

	// a dip on a positive, rising baseline is still a reduction
	peaks := c.Classify(rampWithBump(-3), []detection.Scored{scoredAt(50, 0.25, domain.PolarityPositive, 80)})
	if len(peaks) != 1 {
		t.Fatalf("expected 1 peak, got %d", len(peaks))
	}
	if peaks[0].Type != domain.PeakTypeReduction {
		t.Errorf("expected reduction, got %s", peaks[0].Type)
	}

	peaks = c.Classify(rampWithBump(3), []detection.Scored{scoredAt(50, 0.25, domain.PolarityNegative, 80)})
	if peaks[0].Type != domain.PeakTypeOxidation {
		t.Errorf("expected oxidation, got %s", peaks[0].Type)
	}
}

func TestClassify_FallsBackToPolarity(t *testing.T) {
	c := New(DefaultConfig())
	s := scoredAt(50, 0.25, domain.PolarityNegative, 50)
	s.Candidate.Features = &domain.FeatureVector{SpanStart: 0, SpanEnd: 100}

	peaks := c.Classify(rampWithBump(3), []detection.Scored{s})
	if peaks[0].Type != domain.PeakTypeReduction {
		t.Errorf("expected polarity fallback to reduction, got %s", peaks[0].Type)
	}
}

func TestClassify_SortedAscendingByVoltage(t *testing.T) {
	c := New(DefaultConfig())
	nw := rampWithBump(0)
	peaks := c.Classify(nw, []detection.Scored{
		scoredAt(80, 0.40, domain.PolarityPositive, 90),
		scoredAt(10, 0.05, domain.PolarityNegative, 20),
		scoredAt(50, 0.25, domain.PolarityPositive, 60),
	})

	for i := 1; i < len(peaks); i++ {
		if peaks[i-1].Voltage > peaks[i].Voltage {
			t.Fatalf("peaks not sorted: %v > %v", peaks[i-1].Voltage, peaks[i].Voltage)
		}
	}
	if peaks[0].Enabled {
		t.Error("confidence 20 should be carried through as disabled")
	}
	if peaks[2].Confidence != 90 {
		t.Errorf("expected confidence 90 on last peak, got %v", peaks[2].Confidence)
	}
}

func TestSortPeaks_TieByCurrent(t *testing.T) {
	peaks := []domain.Peak{
		{Voltage: 0.1, Current: 5},
		{Voltage: 0.1, Current: -2},
		{Voltage: 0.0, Current: 1},
	}
	SortPeaks(peaks)
	if peaks[0].Voltage != 0.0 || peaks[1].Current != -2 || peaks[2].Current != 5 {
		t.Errorf("unexpected order: %+v", peaks)
	}
}
