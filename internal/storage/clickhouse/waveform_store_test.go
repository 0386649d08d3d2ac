package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/storage"
)

func sweepRows(id string, n int) []*domain.WaveformSample {
	out := make([]*domain.WaveformSample, n)
	for i := range out {
		out[i] = &domain.WaveformSample{
			MeasurementID: id,
			SampleIndex:   i,
			Voltage:       -0.1 + 0.002*float64(i),
			Current:       float64(i) * 0.5,
		}
	}
	return out
}

func TestWaveformStore_InsertBulkAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWaveformStore(conn)
	ctx := context.Background()

	rows := sweepRows("m1", 20)
	rows[0], rows[19] = rows[19], rows[0]
	require.NoError(t, store.InsertBulk(ctx, rows))
	require.NoError(t, store.InsertBulk(ctx, sweepRows("m2", 5)))

	got, err := store.GetByMeasurementID(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, got, 20)
	for i, s := range got {
		assert.Equal(t, i, s.SampleIndex)
		assert.InDelta(t, float64(i)*0.5, s.Current, 1e-12)
	}

	none, err := store.GetByMeasurementID(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWaveformStore_Duplicates(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWaveformStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, sweepRows("m1", 3)))

	err := store.InsertBulk(ctx, sweepRows("m1", 3))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	dup := []*domain.WaveformSample{
		{MeasurementID: "m3", SampleIndex: 0},
		{MeasurementID: "m3", SampleIndex: 0},
	}
	assert.ErrorIs(t, store.InsertBulk(ctx, dup), storage.ErrDuplicateKey)

	got, err := store.GetByMeasurementID(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
