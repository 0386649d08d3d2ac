package idhash

import (
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"voltammetry-lab/internal/domain"
)

func TestComputeMeasurementID(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cond := domain.Condition{Concentration: 5, ScanRate: 100}

	tests := []struct {
		name       string
		instrument domain.Instrument
		label      string
	}{
		{name: "source", instrument: domain.InstrumentSource, label: "ferricyanide-A"},
		{name: "reference", instrument: domain.InstrumentReference, label: "ferricyanide-A"},
		{name: "empty label", instrument: domain.InstrumentSource, label: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeMeasurementID(tt.instrument, tt.label, cond, created)

			raw, err := base58.Decode(got)
			if err != nil {
				t.Fatalf("ComputeMeasurementID() is not base58: %v", err)
			}
			if len(raw) != 32 {
				t.Errorf("decoded length = %d, want 32", len(raw))
			}

			got2 := ComputeMeasurementID(tt.instrument, tt.label, cond, created)
			if got != got2 {
				t.Errorf("ComputeMeasurementID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeMeasurementID_DifferentInputs(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cond := domain.Condition{Concentration: 5, ScanRate: 100}
	base := ComputeMeasurementID(domain.InstrumentSource, "A", cond, created)

	variants := map[string]string{
		"instrument":    ComputeMeasurementID(domain.InstrumentReference, "A", cond, created),
		"label":         ComputeMeasurementID(domain.InstrumentSource, "B", cond, created),
		"concentration": ComputeMeasurementID(domain.InstrumentSource, "A", domain.Condition{Concentration: 10, ScanRate: 100}, created),
		"scan rate":     ComputeMeasurementID(domain.InstrumentSource, "A", domain.Condition{Concentration: 5, ScanRate: 50}, created),
		"created at":    ComputeMeasurementID(domain.InstrumentSource, "A", cond, created.Add(time.Nanosecond)),
	}
	for name, id := range variants {
		if id == base {
			t.Errorf("different %s should produce different id", name)
		}
	}
}

func TestComputeMeasurementID_TimeZoneIndependent(t *testing.T) {
	cond := domain.Condition{Concentration: 5, ScanRate: 100}
	utc := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	local := utc.In(time.FixedZone("UTC+3", 3*60*60))

	if ComputeMeasurementID(domain.InstrumentSource, "A", cond, utc) !=
		ComputeMeasurementID(domain.InstrumentSource, "A", cond, local) {
		t.Error("same instant in different zones should produce the same id")
	}
}

func TestComputeSamplesDigest(t *testing.T) {
	a := []domain.Sample{{Voltage: -0.2, Current: 1.5}, {Voltage: 0, Current: 2}}
	b := []domain.Sample{{Voltage: -0.2, Current: 1.5}, {Voltage: 0, Current: 2.0000001}}

	if ComputeSamplesDigest(a) != ComputeSamplesDigest(a) {
		t.Error("digest not deterministic")
	}
	if ComputeSamplesDigest(a) == ComputeSamplesDigest(b) {
		t.Error("different samples should produce different digests")
	}
	if ComputeSamplesDigest(nil) == ComputeSamplesDigest(a) {
		t.Error("empty digest should differ")
	}
}
