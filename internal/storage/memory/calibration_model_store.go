package memory

import (
	"context"
	"sort"
	"sync"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/storage"
)

// CalibrationModelStore is an in-memory implementation of storage.CalibrationModelStore.
type CalibrationModelStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CalibrationModel // keyed by model key
}

// NewCalibrationModelStore creates a new in-memory calibration model store.
func NewCalibrationModelStore() *CalibrationModelStore {
	return &CalibrationModelStore{
		data: make(map[string]*domain.CalibrationModel),
	}
}

// Upsert inserts or replaces models. All models are written or none.
func (s *CalibrationModelStore) Upsert(_ context.Context, models ...*domain.CalibrationModel) error {
	for _, m := range models {
		if m == nil || !m.Tier.IsValid() {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range models {
		s.data[m.Key()] = copyModel(m)
	}
	return nil
}

// GetByCondition retrieves the model of a condition. Returns ErrNotFound if not exists.
func (s *CalibrationModelStore) GetByCondition(_ context.Context, cond domain.Condition) (*domain.CalibrationModel, error) {
	return s.get(cond.Key())
}

// GetDefault retrieves the default model. Returns ErrNotFound if not exists.
func (s *CalibrationModelStore) GetDefault(_ context.Context) (*domain.CalibrationModel, error) {
	return s.get(domain.DefaultModelKey)
}

// GetAll retrieves all condition-specific models ordered by key ASC.
func (s *CalibrationModelStore) GetAll(_ context.Context) ([]*domain.CalibrationModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CalibrationModel
	for _, m := range s.data {
		if !m.IsDefault() {
			result = append(result, copyModel(m))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key() < result[j].Key()
	})
	return result, nil
}

func (s *CalibrationModelStore) get(key string) (*domain.CalibrationModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[key]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyModel(m), nil
}

func copyModel(m *domain.CalibrationModel) *domain.CalibrationModel {
	c := *m
	if m.Condition != nil {
		cond := *m.Condition
		c.Condition = &cond
	}
	return &c
}

var _ storage.CalibrationModelStore = (*CalibrationModelStore)(nil)
