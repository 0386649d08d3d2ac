package clickhouse

import (
	"context"
	"fmt"
	"time"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/storage"
)

// WaveformStore implements storage.WaveformStore using ClickHouse.
type WaveformStore struct {
	conn *Conn
}

// NewWaveformStore creates a new WaveformStore.
func NewWaveformStore(conn *Conn) *WaveformStore {
	return &WaveformStore{conn: conn}
}

// Compile-time interface check.
var _ storage.WaveformStore = (*WaveformStore)(nil)

// InsertBulk adds samples in one batch. Fails entire batch on duplicate
// (measurement_id, sample_index).
func (s *WaveformStore) InsertBulk(ctx context.Context, samples []*domain.WaveformSample) (err error) {
	if len(samples) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { observe("insert_samples", start, err) }()

	// Check for intra-batch duplicates, collecting measurement ids
	type key struct {
		measurementID string
		index         int
	}
	seen := make(map[key]struct{}, len(samples))
	ids := make(map[string]struct{})
	for _, ws := range samples {
		if ws == nil || ws.MeasurementID == "" || ws.SampleIndex < 0 {
			return storage.ErrInvalidInput
		}
		k := key{ws.MeasurementID, ws.SampleIndex}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		ids[ws.MeasurementID] = struct{}{}
	}

	// MergeTree does not enforce uniqueness; samples of a measurement are
	// written once, so any existing row for a batch id is a duplicate.
	for id := range ids {
		exists, err := s.exists(ctx, id)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO waveform_samples (
			measurement_id, sample_index, voltage, current
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, ws := range samples {
		if err = batch.Append(ws.MeasurementID, uint32(ws.SampleIndex), ws.Voltage, ws.Current); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByMeasurementID retrieves all samples of a measurement ordered by sample_index ASC.
func (s *WaveformStore) GetByMeasurementID(ctx context.Context, measurementID string) ([]*domain.WaveformSample, error) {
	query := `
		SELECT measurement_id, sample_index, voltage, current
		FROM waveform_samples
		WHERE measurement_id = ?
		ORDER BY sample_index ASC
	`

	start := time.Now()
	rows, err := s.conn.Query(ctx, query, measurementID)
	observe("get_samples", start, err)
	if err != nil {
		return nil, fmt.Errorf("query by measurement id: %w", err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// exists checks if any sample of the measurement is stored.
func (s *WaveformStore) exists(ctx context.Context, measurementID string) (bool, error) {
	query := `
		SELECT count(*) FROM waveform_samples
		WHERE measurement_id = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, measurementID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanSamples scans multiple rows.
func scanSamples(rows chRows) ([]*domain.WaveformSample, error) {
	var samples []*domain.WaveformSample

	for rows.Next() {
		var ws domain.WaveformSample
		var index uint32

		if err := rows.Scan(&ws.MeasurementID, &index, &ws.Voltage, &ws.Current); err != nil {
			return nil, fmt.Errorf("scan waveform sample row: %w", err)
		}

		ws.SampleIndex = int(index)
		samples = append(samples, &ws)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate waveform sample rows: %w", err)
	}

	return samples, nil
}
