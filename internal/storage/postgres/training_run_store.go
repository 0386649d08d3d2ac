package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/storage"
)

// TrainingRunStore implements storage.TrainingRunStore using PostgreSQL.
type TrainingRunStore struct {
	pool *Pool
}

// NewTrainingRunStore creates a new TrainingRunStore.
func NewTrainingRunStore(pool *Pool) *TrainingRunStore {
	return &TrainingRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TrainingRunStore = (*TrainingRunStore)(nil)

const runColumns = `run_id, started_at, finished_at, accepted, rejected, status, outcomes`

// Insert appends a run. Returns ErrDuplicateKey if run_id exists.
func (s *TrainingRunStore) Insert(ctx context.Context, run *domain.TrainingRun) (err error) {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("insert_training_run", start, err) }(time.Now())

	outcomes := run.Outcomes
	if outcomes == nil {
		outcomes = []domain.ConditionOutcome{}
	}
	payload, err := json.Marshal(outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}

	query := `
		INSERT INTO training_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.pool.Exec(ctx, query,
		run.RunID,
		run.StartedAt,
		run.FinishedAt,
		run.Accepted,
		run.Rejected,
		string(run.Status),
		payload,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert training run: %w", err)
	}
	return nil
}

// GetAll retrieves all runs ordered by started_at ASC, run_id ASC.
func (s *TrainingRunStore) GetAll(ctx context.Context) ([]*domain.TrainingRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM training_runs
		ORDER BY started_at ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all training runs: %w", err)
	}
	defer rows.Close()

	var out []*domain.TrainingRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan training run row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate training run rows: %w", err)
	}
	return out, nil
}

// GetLatest retrieves the most recent run. Returns ErrNotFound if none.
func (s *TrainingRunStore) GetLatest(ctx context.Context) (*domain.TrainingRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM training_runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT 1
	`

	r, err := scanRun(s.pool.QueryRow(ctx, query))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest training run: %w", err)
	}
	return r, nil
}

func scanRun(row rowScanner) (*domain.TrainingRun, error) {
	var r domain.TrainingRun
	var status string
	var payload []byte

	err := row.Scan(
		&r.RunID,
		&r.StartedAt,
		&r.FinishedAt,
		&r.Accepted,
		&r.Rejected,
		&status,
		&payload,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payload, &r.Outcomes); err != nil {
		return nil, fmt.Errorf("unmarshal outcomes: %w", err)
	}
	r.Status = domain.TrainingStatus(status)
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	return &r, nil
}
