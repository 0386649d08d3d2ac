package memory

import (
	"context"
	"sort"
	"sync"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/storage"
)

// TrainingRunStore is an in-memory implementation of storage.TrainingRunStore.
type TrainingRunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TrainingRun // keyed by run_id
}

// NewTrainingRunStore creates a new in-memory training run store.
func NewTrainingRunStore() *TrainingRunStore {
	return &TrainingRunStore{
		data: make(map[string]*domain.TrainingRun),
	}
}

// Insert appends a run. Returns ErrDuplicateKey if run_id exists.
func (s *TrainingRunStore) Insert(_ context.Context, run *domain.TrainingRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[run.RunID] = copyRun(run)
	return nil
}

// GetAll retrieves all runs ordered by started_at ASC, run_id ASC.
func (s *TrainingRunStore) GetAll(_ context.Context) ([]*domain.TrainingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TrainingRun, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, copyRun(r))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].StartedAt.Before(result[j].StartedAt)
		}
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}

// GetLatest retrieves the most recent run. Returns ErrNotFound if none.
func (s *TrainingRunStore) GetLatest(ctx context.Context) (*domain.TrainingRun, error) {
	all, _ := s.GetAll(ctx)
	if len(all) == 0 {
		return nil, storage.ErrNotFound
	}
	return all[len(all)-1], nil
}

func copyRun(r *domain.TrainingRun) *domain.TrainingRun {
	c := *r
	c.Outcomes = append([]domain.ConditionOutcome(nil), r.Outcomes...)
	return &c
}

var _ storage.TrainingRunStore = (*TrainingRunStore)(nil)
