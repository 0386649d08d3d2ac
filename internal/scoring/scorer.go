// Package scoring turns feature vectors into a 0-100 confidence.
package scoring

import (
	"errors"
	"fmt"
	"math"

	"voltammetry-lab/internal/domain"
)

// ErrInvalidWeights is returned when weights are negative or do not sum to 1.
var ErrInvalidWeights = errors.New("invalid scoring weights")

// weightTolerance bounds the deviation of the weight sum from 1.
const weightTolerance = 1e-6

// Weights are the per-feature contributions to the confidence.
// The defaults are empirical and meant to be tuned.
type Weights struct {
	Prominence float64 `mapstructure:"prominence" json:"prominence"`
	Width      float64 `mapstructure:"width" json:"width"`
	Symmetry   float64 `mapstructure:"symmetry" json:"symmetry"`
	Position   float64 `mapstructure:"position" json:"position"`
	SNR        float64 `mapstructure:"snr" json:"snr"`
}

// DefaultWeights returns .30/.20/.20/.15/.15.
func DefaultWeights() Weights {
	return Weights{
		Prominence: 0.30,
		Width:      0.20,
		Symmetry:   0.20,
		Position:   0.15,
		SNR:        0.15,
	}
}

// Validate checks that weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Prominence, w.Width, w.Symmetry, w.Position, w.SNR} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: negative weight %v", ErrInvalidWeights, v)
		}
	}
	sum := w.Prominence + w.Width + w.Symmetry + w.Position + w.SNR
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: sum is %v, want 1", ErrInvalidWeights, sum)
	}
	return nil
}

// Config tunes the scorer.
type Config struct {
	Weights         Weights
	Threshold       float64 // below this a peak is disabled
	ProminenceScale float64 // prominence at which its score reaches 0.5
	WidthMin        float64 // V, plausible FWHM range
	WidthMax        float64 // V
	SNRScale        float64
}

// DefaultConfig returns the default scorer configuration.
func DefaultConfig() Config {
	return Config{
		Weights:         DefaultWeights(),
		Threshold:       30,
		ProminenceScale: 0.05,
		WidthMin:        0.02,
		WidthMax:        0.20,
		SNRScale:        10,
	}
}

// Scorer combines normalized features into a confidence.
type Scorer struct {
	cfg Config
}

// New creates a Scorer. Returns ErrInvalidWeights for bad weights.
func New(cfg Config) (*Scorer, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.ProminenceScale <= 0 || cfg.SNRScale <= 0 || cfg.WidthMin <= 0 || cfg.WidthMax < cfg.WidthMin {
		return nil, fmt.Errorf("invalid scoring scales: %+v", cfg)
	}
	return &Scorer{cfg: cfg}, nil
}

// Breakdown holds the normalized [0,1] score of each feature.
type Breakdown struct {
	Prominence float64
	Width      float64
	Symmetry   float64
	Position   float64
	SNR        float64
}

// Normalize maps a feature vector to per-feature scores in [0,1].
func (s *Scorer) Normalize(f domain.FeatureVector) Breakdown {
	return Breakdown{
		Prominence: s.prominence(f.Prominence),
		Width:      s.width(f.FWHM),
		Symmetry:   unit(1 - 2*math.Abs(f.Asymmetry-0.5)),
		Position:   unit(f.PositionScore),
		SNR:        unit(1 - math.Exp(-math.Max(f.SNR, 0)/s.cfg.SNRScale)),
	}
}

// Score returns the confidence in [0,100].
func (s *Scorer) Score(f domain.FeatureVector) float64 {
	b := s.Normalize(f)
	w := s.cfg.Weights
	c := 100 * (w.Prominence*b.Prominence +
		w.Width*b.Width +
		w.Symmetry*b.Symmetry +
		w.Position*b.Position +
		w.SNR*b.SNR)
	return math.Max(0, math.Min(100, c))
}

// Enabled reports whether a confidence clears the threshold.
func (s *Scorer) Enabled(confidence float64) bool {
	return confidence >= s.cfg.Threshold
}

// Threshold returns the configured threshold.
func (s *Scorer) Threshold() float64 {
	return s.cfg.Threshold
}

func (s *Scorer) prominence(p float64) float64 {
	switch {
	case p <= 0 || math.IsNaN(p):
		return 0
	case math.IsInf(p, 1):
		return 1
	}
	return p / (p + s.cfg.ProminenceScale)
}

func (s *Scorer) width(fwhm float64) float64 {
	switch {
	case fwhm <= 0 || math.IsNaN(fwhm):
		return 0
	case fwhm < s.cfg.WidthMin:
		return fwhm / s.cfg.WidthMin
	case fwhm > s.cfg.WidthMax:
		return s.cfg.WidthMax / fwhm
	}
	return 1
}

func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
