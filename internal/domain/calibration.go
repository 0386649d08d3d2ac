package domain

import (
	"strconv"
	"time"
)

// Condition identifies a calibration bucket: nominal concentration and scan rate.
type Condition struct {
	Concentration float64 // mM
	ScanRate      float64 // mV/s
}

// Key returns the canonical string key, e.g. "5mM@100mVs".
func (c Condition) Key() string {
	return strconv.FormatFloat(c.Concentration, 'f', -1, 64) + "mM@" +
		strconv.FormatFloat(c.ScanRate, 'f', -1, 64) + "mVs"
}

// DefaultModelKey is the store key of the default (condition-less) model.
const DefaultModelKey = "default"

// Tier is the confidence tier of a calibration model.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// IsValid checks if the tier is known.
func (t Tier) IsValid() bool {
	switch t {
	case TierHigh, TierMedium, TierLow:
		return true
	}
	return false
}

// Method reports how a calibration model was chosen.
type Method string

const (
	MethodConditionSpecific Method = "condition_specific"
	MethodDefault           Method = "default"
)

// CalibrationModel is a fitted linear transform reference = Gain*source + Offset.
type CalibrationModel struct {
	Condition        *Condition // nil = default model
	GainFactor       float64
	Offset           float64
	RSquared         float64
	Tier             Tier
	DataPointCount   int
	ResidualStdError float64 // same unit as reference current
	TrainedAt        time.Time
	Version          int64
}

// Key returns the store key of the model.
func (m *CalibrationModel) Key() string {
	if m.Condition == nil {
		return DefaultModelKey
	}
	return m.Condition.Key()
}

// IsDefault reports whether the model is the condition-less fallback.
func (m *CalibrationModel) IsDefault() bool {
	return m.Condition == nil
}

// Apply computes the calibrated value of a raw source current.
func (m *CalibrationModel) Apply(raw float64) float64 {
	return m.GainFactor*raw + m.Offset
}

// Invert recovers the raw value from a calibrated one.
func (m *CalibrationModel) Invert(calibrated float64) float64 {
	return (calibrated - m.Offset) / m.GainFactor
}

// PairedPoint is one matched (source, reference) current observation.
type PairedPoint struct {
	SourceCurrent    float64
	ReferenceCurrent float64
}

// CalibrationResult is the outcome of one calibration request.
// Exactly one of Value and Curve is set.
type CalibrationResult struct {
	Value      *float64
	Curve      []CurvePoint
	GainFactor float64
	Offset     float64
	Method     Method
	Tier       Tier
	RSquared   float64
	Condition  *Condition // model condition actually used, nil for default
}

// ComparisonResult is the agreement of a calibrated source curve with a reference curve.
type ComparisonResult struct {
	Correlation        float64
	RMSE               float64
	DataPointsCompared int
	Method             Method
	Tier               Tier
}

// TrainingStatus is the terminal state of a training run.
type TrainingStatus string

const (
	TrainingStatusSucceeded TrainingStatus = "succeeded"
	TrainingStatusPartial   TrainingStatus = "partial"
	TrainingStatusFailed    TrainingStatus = "failed"
	TrainingStatusCancelled TrainingStatus = "cancelled"
)

// ConditionOutcome records what happened to one condition during a training run.
type ConditionOutcome struct {
	ConditionKey string  `json:"condition"`
	Accepted     bool    `json:"accepted"`
	RSquared     float64 `json:"r_squared"`
	Points       int     `json:"points"`
	Reason       string  `json:"reason,omitempty"`
}

// TrainingRun is an append-only record of a calibration training batch.
type TrainingRun struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Accepted   int
	Rejected   int
	Status     TrainingStatus
	Outcomes   []ConditionOutcome
}
