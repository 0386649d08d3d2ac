package storage

import (
	"context"

	"voltammetry-lab/internal/domain"
)

// MeasurementStore provides access to measurements storage.
type MeasurementStore interface {
	// Insert adds a new measurement. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, m *domain.Measurement) error

	// GetByID retrieves a measurement by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Measurement, error)

	// GetByCondition retrieves all measurements taken under a condition,
	// ordered by created_at ASC, id ASC.
	GetByCondition(ctx context.Context, cond domain.Condition) ([]*domain.Measurement, error)

	// GetAll retrieves all measurements ordered by created_at ASC, id ASC.
	GetAll(ctx context.Context) ([]*domain.Measurement, error)
}

// WaveformStore provides access to waveform_samples storage.
type WaveformStore interface {
	// InsertBulk adds samples atomically. Fails entire batch on duplicate
	// (measurement_id, sample_index).
	InsertBulk(ctx context.Context, samples []*domain.WaveformSample) error

	// GetByMeasurementID retrieves all samples of a measurement ordered by sample_index ASC.
	GetByMeasurementID(ctx context.Context, measurementID string) ([]*domain.WaveformSample, error)
}

// CalibrationModelStore provides access to calibration_models storage.
// Unlike the append-only stores, models are replaced as whole rows.
type CalibrationModelStore interface {
	// Upsert inserts or replaces models by key. All models are written or none.
	Upsert(ctx context.Context, models ...*domain.CalibrationModel) error

	// GetByCondition retrieves the model of a condition. Returns ErrNotFound if not exists.
	GetByCondition(ctx context.Context, cond domain.Condition) (*domain.CalibrationModel, error)

	// GetDefault retrieves the default model. Returns ErrNotFound if not exists.
	GetDefault(ctx context.Context) (*domain.CalibrationModel, error)

	// GetAll retrieves all condition-specific models ordered by key ASC.
	GetAll(ctx context.Context) ([]*domain.CalibrationModel, error)
}

// TrainingRunStore provides access to training_runs storage.
type TrainingRunStore interface {
	// Insert appends a run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.TrainingRun) error

	// GetAll retrieves all runs ordered by started_at ASC, run_id ASC.
	GetAll(ctx context.Context) ([]*domain.TrainingRun, error)

	// GetLatest retrieves the most recent run. Returns ErrNotFound if none.
	GetLatest(ctx context.Context) (*domain.TrainingRun, error)
}
