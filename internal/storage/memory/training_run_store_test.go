package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/storage"
)

func TestTrainingRunStore_AppendOnly(t *testing.T) {
	store := NewTrainingRunStore()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := store.GetLatest(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	runs := []*domain.TrainingRun{
		{RunID: "r2", StartedAt: base.Add(time.Hour), Status: domain.TrainingStatusPartial},
		{RunID: "r1", StartedAt: base, Status: domain.TrainingStatusSucceeded,
			Outcomes: []domain.ConditionOutcome{{ConditionKey: "5mM@100mVs", Accepted: true}}},
	}
	for _, r := range runs {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := store.Insert(ctx, runs[0]); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 2 || all[0].RunID != "r1" {
		t.Fatalf("expected r1 first, got %+v", all)
	}
	if len(all[0].Outcomes) != 1 {
		t.Errorf("outcomes not stored")
	}

	latest, err := store.GetLatest(ctx)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest.RunID != "r2" {
		t.Errorf("expected latest r2, got %s", latest.RunID)
	}
}
