package memory

import (
	"context"
	"sort"
	"sync"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/storage"
)

// MeasurementStore is an in-memory implementation of storage.MeasurementStore.
type MeasurementStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Measurement // keyed by id
}

// NewMeasurementStore creates a new in-memory measurement store.
func NewMeasurementStore() *MeasurementStore {
	return &MeasurementStore{
		data: make(map[string]*domain.Measurement),
	}
}

// Insert adds a new measurement. Returns ErrDuplicateKey if id exists.
func (s *MeasurementStore) Insert(_ context.Context, m *domain.Measurement) error {
	if m == nil || m.ID == "" || !m.Instrument.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[m.ID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	mCopy := *m
	s.data[m.ID] = &mCopy
	return nil
}

// GetByID retrieves a measurement by its ID. Returns ErrNotFound if not exists.
func (s *MeasurementStore) GetByID(_ context.Context, id string) (*domain.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	mCopy := *m
	return &mCopy, nil
}

// GetByCondition retrieves all measurements taken under a condition.
func (s *MeasurementStore) GetByCondition(_ context.Context, cond domain.Condition) ([]*domain.Measurement, error) {
	return s.collect(func(m *domain.Measurement) bool { return m.Condition == cond }), nil
}

// GetAll retrieves all measurements.
func (s *MeasurementStore) GetAll(_ context.Context) ([]*domain.Measurement, error) {
	return s.collect(func(*domain.Measurement) bool { return true }), nil
}

func (s *MeasurementStore) collect(keep func(*domain.Measurement) bool) []*domain.Measurement {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Measurement
	for _, m := range s.data {
		if keep(m) {
			mCopy := *m
			result = append(result, &mCopy)
		}
	}

	// Sort by created_at ASC, id ASC
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

var _ storage.MeasurementStore = (*MeasurementStore)(nil)
