package calibration

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"voltammetry-lab/internal/domain"
)

// Builder errors.
var (
	// ErrRejected is returned when a fit is below the r² floor or has a non-positive gain.
	ErrRejected = errors.New("fit rejected")

	// ErrInvalidBuilderConfig is returned for inconsistent tier bounds.
	ErrInvalidBuilderConfig = errors.New("invalid calibration builder config")

	// ErrNoAcceptedModels is returned by BuildDefault when there is nothing to aggregate.
	ErrNoAcceptedModels = errors.New("no accepted models")
)

// Weighting selects how BuildDefault weights condition models.
type Weighting string

const (
	WeightingCount    Weighting = "count"
	WeightingRSquared Weighting = "r_squared"
)

// BuilderConfig holds regression acceptance settings.
type BuilderConfig struct {
	RSquaredFloor    float64   `mapstructure:"r_squared_floor"`
	HighTier         float64   `mapstructure:"high_tier"`
	MediumTier       float64   `mapstructure:"medium_tier"`
	MinPoints        int       `mapstructure:"min_points"`
	DefaultWeighting Weighting `mapstructure:"default_weighting"`
}

// DefaultBuilderConfig returns tiers 0.6 / 0.4 / 0.3 with count weighting.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		RSquaredFloor:    0.3,
		HighTier:         0.6,
		MediumTier:       0.4,
		MinPoints:        3,
		DefaultWeighting: WeightingCount,
	}
}

// Validate checks 0 ≤ floor ≤ medium ≤ high ≤ 1 and a known weighting.
func (c BuilderConfig) Validate() error {
	if c.RSquaredFloor < 0 || c.RSquaredFloor > c.MediumTier || c.MediumTier > c.HighTier || c.HighTier > 1 {
		return fmt.Errorf("%w: need 0 <= floor <= medium <= high <= 1, got %.2f/%.2f/%.2f",
			ErrInvalidBuilderConfig, c.RSquaredFloor, c.MediumTier, c.HighTier)
	}
	if c.MinPoints < 2 {
		return fmt.Errorf("%w: min_points must be at least 2", ErrInvalidBuilderConfig)
	}
	switch c.DefaultWeighting {
	case WeightingCount, WeightingRSquared:
	default:
		return fmt.Errorf("%w: unknown weighting %q", ErrInvalidBuilderConfig, c.DefaultWeighting)
	}
	return nil
}

// TierFor returns the tier of r2, or false if r2 is below the floor.
func (c BuilderConfig) TierFor(r2 float64) (domain.Tier, bool) {
	switch {
	case r2 >= c.HighTier:
		return domain.TierHigh, true
	case r2 >= c.MediumTier:
		return domain.TierMedium, true
	case r2 >= c.RSquaredFloor:
		return domain.TierLow, true
	default:
		return "", false
	}
}

// Builder fits calibration models.
type Builder struct {
	cfg BuilderConfig
	now func() time.Time
}

// NewBuilder creates a builder. now may be nil.
func NewBuilder(cfg BuilderConfig, now func() time.Time) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Builder{cfg: cfg, now: now}, nil
}

// Config returns the builder configuration.
func (b *Builder) Config() BuilderConfig {
	return b.cfg
}

// Fit regresses reference on source with ordinary least squares.
// Non-finite points are ignored. Returns a domain InsufficientData error for
// fewer than MinPoints points and ErrRejected for unusable fits.
func (b *Builder) Fit(cond domain.Condition, points []domain.PairedPoint) (*domain.CalibrationModel, error) {
	xs := make([]float64, 0, len(points))
	ys := make([]float64, 0, len(points))
	for _, p := range points {
		if isFinite(p.SourceCurrent) && isFinite(p.ReferenceCurrent) {
			xs = append(xs, p.SourceCurrent)
			ys = append(ys, p.ReferenceCurrent)
		}
	}
	if len(xs) < b.cfg.MinPoints {
		return nil, domain.Errorf(domain.CodeInsufficientData,
			"condition %s has %d paired points, need %d", cond.Key(), len(xs), b.cfg.MinPoints)
	}
	if stat.Variance(xs, nil) == 0 {
		return nil, fmt.Errorf("%w: condition %s has constant source current", ErrRejected, cond.Key())
	}

	offset, gain := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, offset, gain)
	if math.IsNaN(r2) {
		r2 = 0
	}
	r2 = math.Max(0, math.Min(1, r2))

	if gain <= 0 || !isFinite(gain) {
		return nil, fmt.Errorf("%w: condition %s gain %.6g is not positive", ErrRejected, cond.Key(), gain)
	}
	tier, ok := b.cfg.TierFor(r2)
	if !ok {
		return nil, fmt.Errorf("%w: condition %s r_squared %.3f below floor %.2f",
			ErrRejected, cond.Key(), r2, b.cfg.RSquaredFloor)
	}

	c := cond
	return &domain.CalibrationModel{
		Condition:        &c,
		GainFactor:       gain,
		Offset:           offset,
		RSquared:         r2,
		Tier:             tier,
		DataPointCount:   len(xs),
		ResidualStdError: residualStdError(xs, ys, gain, offset),
		TrainedAt:        b.now().UTC(),
	}, nil
}

// BuildDefault aggregates accepted condition models into the default model
// using the configured weighting.
func (b *Builder) BuildDefault(models []*domain.CalibrationModel) (*domain.CalibrationModel, error) {
	var gains, offsets, r2s, rses, weights []float64
	points := 0
	for _, m := range models {
		if m == nil || m.IsDefault() {
			continue
		}
		w := float64(m.DataPointCount)
		if b.cfg.DefaultWeighting == WeightingRSquared {
			w = m.RSquared
		}
		if w <= 0 {
			continue
		}
		gains = append(gains, m.GainFactor)
		offsets = append(offsets, m.Offset)
		r2s = append(r2s, m.RSquared)
		rses = append(rses, m.ResidualStdError)
		weights = append(weights, w)
		points += m.DataPointCount
	}
	if len(weights) == 0 {
		return nil, ErrNoAcceptedModels
	}

	r2 := stat.Mean(r2s, weights)
	tier, ok := b.cfg.TierFor(r2)
	if !ok {
		// Unreachable for accepted inputs: a weighted mean stays above the floor.
		tier = domain.TierLow
	}
	return &domain.CalibrationModel{
		GainFactor:       stat.Mean(gains, weights),
		Offset:           stat.Mean(offsets, weights),
		RSquared:         r2,
		Tier:             tier,
		DataPointCount:   points,
		ResidualStdError: stat.Mean(rses, weights),
		TrainedAt:        b.now().UTC(),
	}, nil
}

func residualStdError(xs, ys []float64, gain, offset float64) float64 {
	if len(xs) <= 2 {
		return 0
	}
	var ss float64
	for i := range xs {
		r := ys[i] - (gain*xs[i] + offset)
		ss += r * r
	}
	return math.Sqrt(ss / float64(len(xs)-2))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
