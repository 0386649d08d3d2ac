package memory

import (
	"context"
	"errors"
	"testing"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/storage"
)

func samples(id string, n int) []*domain.WaveformSample {
	out := make([]*domain.WaveformSample, n)
	for i := range out {
		out[i] = &domain.WaveformSample{
			MeasurementID: id,
			SampleIndex:   i,
			Voltage:       -0.1 + 0.002*float64(i),
			Current:       float64(i),
		}
	}
	return out
}

func TestWaveformStore_InsertBulkAndGet(t *testing.T) {
	store := NewWaveformStore()
	ctx := context.Background()

	batch := samples("m1", 5)
	// insert out of order, read back ordered
	batch[0], batch[4] = batch[4], batch[0]
	if err := store.InsertBulk(ctx, batch); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	if err := store.InsertBulk(ctx, samples("m2", 3)); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByMeasurementID(ctx, "m1")
	if err != nil {
		t.Fatalf("GetByMeasurementID failed: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(got))
	}
	for i, s := range got {
		if s.SampleIndex != i {
			t.Errorf("position %d has sample_index %d", i, s.SampleIndex)
		}
	}

	empty, _ := store.GetByMeasurementID(ctx, "unknown")
	if len(empty) != 0 {
		t.Errorf("expected no samples, got %d", len(empty))
	}
}

func TestWaveformStore_BulkIsAtomic(t *testing.T) {
	store := NewWaveformStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, samples("m1", 3)); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	// index 2 collides with an existing row, so index 3 must not be written either
	batch := []*domain.WaveformSample{
		{MeasurementID: "m1", SampleIndex: 3},
		{MeasurementID: "m1", SampleIndex: 2},
	}
	if err := store.InsertBulk(ctx, batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	got, _ := store.GetByMeasurementID(ctx, "m1")
	if len(got) != 3 {
		t.Errorf("expected 3 samples after failed batch, got %d", len(got))
	}

	intra := []*domain.WaveformSample{
		{MeasurementID: "m2", SampleIndex: 0},
		{MeasurementID: "m2", SampleIndex: 0},
	}
	if err := store.InsertBulk(ctx, intra); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}
}
