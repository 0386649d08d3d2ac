package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/storage"
)

func measurement(id string, inst domain.Instrument, conc float64, created time.Time) *domain.Measurement {
	return &domain.Measurement{
		ID:          id,
		Instrument:  inst,
		SampleLabel: "ferricyanide",
		Condition:   domain.Condition{Concentration: conc, ScanRate: 100},
		UnitHint:    domain.UnitMicroampere,
		SampleCount: 501,
		CreatedAt:   created,
	}
}

func TestMeasurementStore_InsertAndGet(t *testing.T) {
	store := NewMeasurementStore()
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Insert(ctx, measurement("m1", domain.InstrumentSource, 5, now)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "m1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Instrument != domain.InstrumentSource {
		t.Errorf("Instrument mismatch: got %s", got.Instrument)
	}
	if got.Condition.Concentration != 5 {
		t.Errorf("Concentration mismatch: got %v", got.Condition.Concentration)
	}

	// mutation of the returned copy must not leak into the store
	got.SampleLabel = "changed"
	again, _ := store.GetByID(ctx, "m1")
	if again.SampleLabel != "ferricyanide" {
		t.Error("store returned a shared pointer")
	}
}

func TestMeasurementStore_Errors(t *testing.T) {
	store := NewMeasurementStore()
	ctx := context.Background()
	m := measurement("m1", domain.InstrumentSource, 5, time.Now())

	if err := store.Insert(ctx, m); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, m); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Insert(ctx, measurement("m2", "oscilloscope", 5, time.Now())); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown instrument, got %v", err)
	}
	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for nil, got %v", err)
	}
}

func TestMeasurementStore_GetByCondition(t *testing.T) {
	store := NewMeasurementStore()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_ = store.Insert(ctx, measurement("c", domain.InstrumentReference, 5, base.Add(2*time.Minute)))
	_ = store.Insert(ctx, measurement("a", domain.InstrumentSource, 5, base))
	_ = store.Insert(ctx, measurement("b", domain.InstrumentSource, 10, base.Add(time.Minute)))

	got, err := store.GetByCondition(ctx, domain.Condition{Concentration: 5, ScanRate: 100})
	if err != nil {
		t.Fatalf("GetByCondition failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 measurements, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("expected order [a c], got [%s %s]", got[0].ID, got[1].ID)
	}

	all, _ := store.GetAll(ctx)
	if len(all) != 3 || all[1].ID != "b" {
		t.Errorf("GetAll order wrong: %+v", all)
	}
}

func TestMeasurementStore_ConcurrentInsert(t *testing.T) {
	store := NewMeasurementStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Insert(ctx, measurement("same", domain.InstrumentSource, 5, time.Now()))
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		}
	}
	if ok != 1 {
		t.Errorf("expected exactly 1 successful insert, got %d", ok)
	}
}
