package idhash

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"time"

	"github.com/mr-tron/base58"

	"voltammetry-lab/internal/domain"
)

// ComputeMeasurementID computes a deterministic measurement id.
// Formula: SHA256(instrument|sample_label|concentration|scan_rate|created_at)
// Returns base58-encoded hash.
func ComputeMeasurementID(
	instrument domain.Instrument,
	sampleLabel string,
	cond domain.Condition,
	createdAt time.Time,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d",
		string(instrument),
		sampleLabel,
		strconv.FormatFloat(cond.Concentration, 'g', -1, 64),
		strconv.FormatFloat(cond.ScanRate, 'g', -1, 64),
		createdAt.UTC().UnixNano(),
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

// ComputeSamplesDigest hashes the ordered samples of a sweep.
// Used by ingestion to recognise a re-sent frame under a new id.
func ComputeSamplesDigest(samples []domain.Sample) string {
	h := sha256.New()
	buf := make([]byte, 0, 64)
	for _, s := range samples {
		buf = buf[:0]
		buf = strconv.AppendFloat(buf, s.Voltage, 'g', -1, 64)
		buf = append(buf, ',')
		buf = strconv.AppendFloat(buf, s.Current, 'g', -1, 64)
		buf = append(buf, ';')
		h.Write(buf)
	}
	return base58.Encode(h.Sum(nil))
}
