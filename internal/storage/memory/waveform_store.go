package memory

import (
	"context"
	"sort"
	"sync"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/storage"
)

type sampleKey struct {
	measurementID string
	index         int
}

// WaveformStore is an in-memory implementation of storage.WaveformStore.
type WaveformStore struct {
	mu   sync.RWMutex
	data map[sampleKey]*domain.WaveformSample
}

// NewWaveformStore creates a new in-memory waveform sample store.
func NewWaveformStore() *WaveformStore {
	return &WaveformStore{
		data: make(map[sampleKey]*domain.WaveformSample),
	}
}

// InsertBulk adds samples atomically. Fails entire batch on any duplicate.
func (s *WaveformStore) InsertBulk(_ context.Context, samples []*domain.WaveformSample) error {
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[sampleKey]struct{}, len(samples))

	// First pass: check for duplicates (existing + intra-batch)
	for _, ws := range samples {
		if ws == nil || ws.MeasurementID == "" || ws.SampleIndex < 0 {
			return storage.ErrInvalidInput
		}
		key := sampleKey{ws.MeasurementID, ws.SampleIndex}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, ws := range samples {
		wsCopy := *ws
		s.data[sampleKey{ws.MeasurementID, ws.SampleIndex}] = &wsCopy
	}
	return nil
}

// GetByMeasurementID retrieves all samples of a measurement, ordered by sample_index ASC.
func (s *WaveformStore) GetByMeasurementID(_ context.Context, measurementID string) ([]*domain.WaveformSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WaveformSample
	for k, ws := range s.data {
		if k.measurementID == measurementID {
			wsCopy := *ws
			result = append(result, &wsCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SampleIndex < result[j].SampleIndex
	})
	return result, nil
}

var _ storage.WaveformStore = (*WaveformStore)(nil)
