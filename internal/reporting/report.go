package reporting

import (
	"time"

	"voltammetry-lab/internal/calibration"
	"voltammetry-lab/internal/domain"
)

// Report represents the calibration report structure.
type Report struct {
	GeneratedAt time.Time

	// Data Summary
	DataSummary DataSummary

	// Served models (sorted by condition key)
	Models  []ModelRow
	Default *ModelRow
	Stats   calibration.AggregateStats

	// Training history
	TrainingRuns int
	LastRun      *RunRow
}

// DataSummary describes the stored measurements.
type DataSummary struct {
	TotalMeasurements     int
	SourceMeasurements    int
	ReferenceMeasurements int
	Conditions            []ConditionCount // sorted by key
	DateRangeStart        time.Time
	DateRangeEnd          time.Time
}

// ConditionCount is the number of sweeps per instrument for one condition.
type ConditionCount struct {
	Condition string
	Source    int
	Reference int
}

// ModelRow represents one row in the model table.
type ModelRow struct {
	Condition        string
	GainFactor       float64
	Offset           float64
	RSquared         float64
	Tier             domain.Tier
	DataPoints       int
	ResidualStdError float64
	Version          int64
	TrainedAt        time.Time
}

// RunRow summarizes a training run.
type RunRow struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     domain.TrainingStatus
	Accepted   int
	Rejected   int
	Outcomes   []domain.ConditionOutcome
}

func modelRow(m *domain.CalibrationModel) ModelRow {
	return ModelRow{
		Condition:        m.Key(),
		GainFactor:       m.GainFactor,
		Offset:           m.Offset,
		RSquared:         m.RSquared,
		Tier:             m.Tier,
		DataPoints:       m.DataPointCount,
		ResidualStdError: m.ResidualStdError,
		Version:          m.Version,
		TrainedAt:        m.TrainedAt,
	}
}
