package memory

import (
	"context"
	"errors"
	"testing"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/storage"
)

func model(conc, rate, gain, r2 float64) *domain.CalibrationModel {
	return &domain.CalibrationModel{
		Condition:      &domain.Condition{Concentration: conc, ScanRate: rate},
		GainFactor:     gain,
		Offset:         -3,
		RSquared:       r2,
		Tier:           domain.TierHigh,
		DataPointCount: 100,
		Version:        1,
	}
}

func TestCalibrationModelStore_UpsertReplaces(t *testing.T) {
	store := NewCalibrationModelStore()
	ctx := context.Background()
	cond := domain.Condition{Concentration: 5, ScanRate: 100}

	if err := store.Upsert(ctx, model(5, 100, 600000, 0.9)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, model(5, 100, 610000, 0.95)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetByCondition(ctx, cond)
	if err != nil {
		t.Fatalf("GetByCondition failed: %v", err)
	}
	if got.GainFactor != 610000 {
		t.Errorf("expected replaced gain 610000, got %v", got.GainFactor)
	}

	all, _ := store.GetAll(ctx)
	if len(all) != 1 {
		t.Errorf("expected 1 model, got %d", len(all))
	}
}

func TestCalibrationModelStore_Default(t *testing.T) {
	store := NewCalibrationModelStore()
	ctx := context.Background()

	if _, err := store.GetDefault(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	def := model(0, 0, 500000, 0.8)
	def.Condition = nil
	if err := store.Upsert(ctx, def, model(1, 50, 400000, 0.7)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetDefault(ctx)
	if err != nil {
		t.Fatalf("GetDefault failed: %v", err)
	}
	if !got.IsDefault() || got.GainFactor != 500000 {
		t.Errorf("unexpected default: %+v", got)
	}

	all, _ := store.GetAll(ctx)
	if len(all) != 1 || all[0].IsDefault() {
		t.Errorf("GetAll must exclude the default model, got %d models", len(all))
	}
}

func TestCalibrationModelStore_UpsertAllOrNothing(t *testing.T) {
	store := NewCalibrationModelStore()
	ctx := context.Background()

	bad := model(10, 100, 1, 0.9)
	bad.Tier = "excellent"
	err := store.Upsert(ctx, model(5, 100, 600000, 0.9), bad)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	all, _ := store.GetAll(ctx)
	if len(all) != 0 {
		t.Errorf("expected no models after failed upsert, got %d", len(all))
	}
}

func TestCalibrationModelStore_ReturnsCopies(t *testing.T) {
	store := NewCalibrationModelStore()
	ctx := context.Background()
	m := model(5, 100, 600000, 0.9)
	_ = store.Upsert(ctx, m)

	m.Condition.ScanRate = 999
	got, err := store.GetByCondition(ctx, domain.Condition{Concentration: 5, ScanRate: 100})
	if err != nil {
		t.Fatalf("GetByCondition failed: %v", err)
	}
	got.Condition.Concentration = 42

	again, _ := store.GetByCondition(ctx, domain.Condition{Concentration: 5, ScanRate: 100})
	if again.Condition.Concentration != 5 || again.Condition.ScanRate != 100 {
		t.Errorf("stored condition was mutated: %+v", again.Condition)
	}
}
