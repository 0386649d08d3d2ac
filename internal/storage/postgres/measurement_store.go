package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/storage"
)

// MeasurementStore implements storage.MeasurementStore using PostgreSQL.
type MeasurementStore struct {
	pool *Pool
}

// NewMeasurementStore creates a new MeasurementStore.
func NewMeasurementStore(pool *Pool) *MeasurementStore {
	return &MeasurementStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MeasurementStore = (*MeasurementStore)(nil)

const measurementColumns = `id, instrument, sample_label, concentration, scan_rate, unit_hint, sample_count, created_at`

// Insert adds a new measurement. Returns ErrDuplicateKey if id exists.
func (s *MeasurementStore) Insert(ctx context.Context, m *domain.Measurement) (err error) {
	if m == nil || m.ID == "" || !m.Instrument.IsValid() {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("insert_measurement", start, err) }(time.Now())

	query := `
		INSERT INTO measurements (` + measurementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = s.pool.Exec(ctx, query,
		m.ID,
		string(m.Instrument),
		m.SampleLabel,
		m.Condition.Concentration,
		m.Condition.ScanRate,
		string(m.UnitHint),
		m.SampleCount,
		m.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert measurement: %w", err)
	}
	return nil
}

// GetByID retrieves a measurement by its ID. Returns ErrNotFound if not exists.
func (s *MeasurementStore) GetByID(ctx context.Context, id string) (*domain.Measurement, error) {
	query := `
		SELECT ` + measurementColumns + `
		FROM measurements
		WHERE id = $1
	`

	start := time.Now()
	m, err := scanMeasurement(s.pool.QueryRow(ctx, query, id))
	observe("get_measurement", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get measurement by id: %w", err)
	}
	return m, nil
}

// GetByCondition retrieves all measurements taken under a condition.
func (s *MeasurementStore) GetByCondition(ctx context.Context, cond domain.Condition) ([]*domain.Measurement, error) {
	query := `
		SELECT ` + measurementColumns + `
		FROM measurements
		WHERE concentration = $1 AND scan_rate = $2
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, cond.Concentration, cond.ScanRate)
	if err != nil {
		return nil, fmt.Errorf("get measurements by condition: %w", err)
	}
	defer rows.Close()

	return scanMeasurements(rows)
}

// GetAll retrieves all measurements.
func (s *MeasurementStore) GetAll(ctx context.Context) ([]*domain.Measurement, error) {
	query := `
		SELECT ` + measurementColumns + `
		FROM measurements
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all measurements: %w", err)
	}
	defer rows.Close()

	return scanMeasurements(rows)
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeasurement(row rowScanner) (*domain.Measurement, error) {
	var m domain.Measurement
	var instrument, unit string

	err := row.Scan(
		&m.ID,
		&instrument,
		&m.SampleLabel,
		&m.Condition.Concentration,
		&m.Condition.ScanRate,
		&unit,
		&m.SampleCount,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Instrument = domain.Instrument(instrument)
	m.UnitHint = domain.UnitHint(unit)
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func scanMeasurements(rows pgx.Rows) ([]*domain.Measurement, error) {
	var out []*domain.Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan measurement row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate measurement rows: %w", err)
	}
	return out, nil
}
