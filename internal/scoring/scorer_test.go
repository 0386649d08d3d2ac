package scoring

import (
	"errors"
	"math"
	"testing"

	"voltammetry-lab/internal/domain"
)

func idealFeatures() domain.FeatureVector {
	return domain.FeatureVector{
		FWHM:          0.06,
		Asymmetry:     0.5,
		SNR:           200,
		PositionScore: 1,
		Prominence:    1,
	}
}

func mustScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestScore_IdealPeakIsHigh(t *testing.T) {
	s := mustScorer(t)
	c := s.Score(idealFeatures())
	if c < 95 || c > 100 {
		t.Errorf("expected confidence in [95,100], got %f", c)
	}
	if !s.Enabled(c) {
		t.Error("ideal peak should be enabled")
	}
}

func TestScore_Bounds(t *testing.T) {
	s := mustScorer(t)
	cases := []domain.FeatureVector{
		{},
		{FWHM: -1, Asymmetry: 3, SNR: -5, PositionScore: 2, Prominence: -1},
		{FWHM: math.NaN(), Asymmetry: math.NaN(), SNR: math.Inf(1), PositionScore: math.NaN(), Prominence: math.Inf(1)},
		{FWHM: 10, Asymmetry: 0, SNR: 1e9, PositionScore: 1, Prominence: 1e6},
	}
	for i, f := range cases {
		c := s.Score(f)
		if c < 0 || c > 100 || math.IsNaN(c) {
			t.Errorf("case %d: confidence %f out of [0,100]", i, c)
		}
	}
}

func TestScore_MonotoneInProminence(t *testing.T) {
	s := mustScorer(t)
	f := idealFeatures()
	prev := -1.0
	for _, p := range []float64{0, 0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 10} {
		f.Prominence = p
		c := s.Score(f)
		if c < prev {
			t.Errorf("confidence decreased at prominence %v: %f < %f", p, c, prev)
		}
		prev = c
	}
}

func TestScore_Threshold(t *testing.T) {
	s := mustScorer(t)
	weak := domain.FeatureVector{FWHM: 0.5, Asymmetry: 0.05, SNR: 0.5, PositionScore: 0, Prominence: 0.01}
	c := s.Score(weak)
	if s.Enabled(c) {
		t.Errorf("weak peak with confidence %f should be disabled", c)
	}
	if s.Threshold() != 30 {
		t.Errorf("expected default threshold 30, got %f", s.Threshold())
	}
}

func TestNormalize_Width(t *testing.T) {
	s := mustScorer(t)
	tests := []struct {
		fwhm float64
		want float64
	}{
		{0, 0},
		{0.01, 0.5},
		{0.02, 1},
		{0.1, 1},
		{0.2, 1},
		{0.4, 0.5},
	}
	for _, tt := range tests {
		got := s.Normalize(domain.FeatureVector{FWHM: tt.fwhm}).Width
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("width(%v) = %v, want %v", tt.fwhm, got, tt.want)
		}
	}
}

func TestNormalize_Symmetry(t *testing.T) {
	s := mustScorer(t)
	if got := s.Normalize(domain.FeatureVector{Asymmetry: 0.5}).Symmetry; got != 1 {
		t.Errorf("symmetric peak should score 1, got %v", got)
	}
	if got := s.Normalize(domain.FeatureVector{Asymmetry: 0.25}).Symmetry; math.Abs(got-0.5) > 1e-12 {
		t.Errorf("asymmetry 0.25 should score 0.5, got %v", got)
	}
	if got := s.Normalize(domain.FeatureVector{Asymmetry: 1}).Symmetry; got != 0 {
		t.Errorf("one-sided peak should score 0, got %v", got)
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights invalid: %v", err)
	}

	bad := DefaultWeights()
	bad.SNR = 0.25
	if err := bad.Validate(); !errors.Is(err, ErrInvalidWeights) {
		t.Errorf("expected ErrInvalidWeights for sum 1.1, got %v", err)
	}

	neg := Weights{Prominence: 1.2, Width: -0.2}
	if err := neg.Validate(); !errors.Is(err, ErrInvalidWeights) {
		t.Errorf("expected ErrInvalidWeights for negative weight, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.Weights = bad
	if _, err := New(cfg); err == nil {
		t.Error("New should reject invalid weights")
	}
}

func TestScore_CustomWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights = Weights{Position: 1}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if c := s.Score(domain.FeatureVector{PositionScore: 0.42}); math.Abs(c-42) > 1e-9 {
		t.Errorf("expected 42, got %f", c)
	}
}
