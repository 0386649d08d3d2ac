package postgres

import (
	"context"
	"fmt"
	"time"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/storage"
)

// CalibrationModelStore implements storage.CalibrationModelStore using PostgreSQL.
type CalibrationModelStore struct {
	pool *Pool
}

// NewCalibrationModelStore creates a new CalibrationModelStore.
func NewCalibrationModelStore(pool *Pool) *CalibrationModelStore {
	return &CalibrationModelStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CalibrationModelStore = (*CalibrationModelStore)(nil)

const modelColumns = `model_key, concentration, scan_rate, gain_factor, "offset", r_squared,
	confidence_tier, data_point_count, residual_std_error, trained_at, version`

// Upsert inserts or replaces models in one transaction. Each row is replaced
// by a single statement, so readers never see a partially written model.
func (s *CalibrationModelStore) Upsert(ctx context.Context, models ...*domain.CalibrationModel) (err error) {
	if len(models) == 0 {
		return nil
	}
	for _, m := range models {
		if m == nil || !m.Tier.IsValid() {
			return storage.ErrInvalidInput
		}
	}
	defer func(start time.Time) { observe("upsert_models", start, err) }(time.Now())

	query := `
		INSERT INTO calibration_models (` + modelColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (model_key) DO UPDATE SET
			concentration = EXCLUDED.concentration,
			scan_rate = EXCLUDED.scan_rate,
			gain_factor = EXCLUDED.gain_factor,
			"offset" = EXCLUDED."offset",
			r_squared = EXCLUDED.r_squared,
			confidence_tier = EXCLUDED.confidence_tier,
			data_point_count = EXCLUDED.data_point_count,
			residual_std_error = EXCLUDED.residual_std_error,
			trained_at = EXCLUDED.trained_at,
			version = EXCLUDED.version
	`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, m := range models {
		var conc, rate *float64
		if m.Condition != nil {
			conc, rate = &m.Condition.Concentration, &m.Condition.ScanRate
		}
		_, err = tx.Exec(ctx, query,
			m.Key(),
			conc,
			rate,
			m.GainFactor,
			m.Offset,
			m.RSquared,
			string(m.Tier),
			m.DataPointCount,
			m.ResidualStdError,
			m.TrainedAt,
			m.Version,
		)
		if err != nil {
			if isCheckViolation(err) {
				return fmt.Errorf("upsert model %s: %w: %v", m.Key(), storage.ErrInvalidInput, err)
			}
			return fmt.Errorf("upsert model %s: %w", m.Key(), err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByCondition retrieves the model of a condition. Returns ErrNotFound if not exists.
func (s *CalibrationModelStore) GetByCondition(ctx context.Context, cond domain.Condition) (*domain.CalibrationModel, error) {
	return s.get(ctx, cond.Key())
}

// GetDefault retrieves the default model. Returns ErrNotFound if not exists.
func (s *CalibrationModelStore) GetDefault(ctx context.Context) (*domain.CalibrationModel, error) {
	return s.get(ctx, domain.DefaultModelKey)
}

// GetAll retrieves all condition-specific models ordered by key ASC.
func (s *CalibrationModelStore) GetAll(ctx context.Context) ([]*domain.CalibrationModel, error) {
	query := `
		SELECT ` + modelColumns + `
		FROM calibration_models
		WHERE model_key <> $1
		ORDER BY model_key ASC
	`

	rows, err := s.pool.Query(ctx, query, domain.DefaultModelKey)
	if err != nil {
		return nil, fmt.Errorf("get all models: %w", err)
	}
	defer rows.Close()

	var out []*domain.CalibrationModel
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan model row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate model rows: %w", err)
	}
	return out, nil
}

func (s *CalibrationModelStore) get(ctx context.Context, key string) (*domain.CalibrationModel, error) {
	query := `
		SELECT ` + modelColumns + `
		FROM calibration_models
		WHERE model_key = $1
	`

	start := time.Now()
	m, err := scanModel(s.pool.QueryRow(ctx, query, key))
	observe("get_model", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get model %s: %w", key, err)
	}
	return m, nil
}

func scanModel(row rowScanner) (*domain.CalibrationModel, error) {
	var m domain.CalibrationModel
	var key, tier string
	var conc, rate *float64

	err := row.Scan(
		&key,
		&conc,
		&rate,
		&m.GainFactor,
		&m.Offset,
		&m.RSquared,
		&tier,
		&m.DataPointCount,
		&m.ResidualStdError,
		&m.TrainedAt,
		&m.Version,
	)
	if err != nil {
		return nil, err
	}

	if conc != nil && rate != nil {
		m.Condition = &domain.Condition{Concentration: *conc, ScanRate: *rate}
	}
	m.Tier = domain.Tier(tier)
	m.TrainedAt = m.TrainedAt.UTC()
	return &m, nil
}
