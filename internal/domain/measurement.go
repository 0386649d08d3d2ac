package domain

import "time"

// Instrument identifies which device acquired a measurement.
type Instrument string

const (
	InstrumentSource    Instrument = "source"    // low-cost embedded potentiostat
	InstrumentReference Instrument = "reference" // commercial reference instrument
)

// String returns the string representation of the instrument.
func (i Instrument) String() string {
	return string(i)
}

// IsValid checks if the instrument is a known value.
func (i Instrument) IsValid() bool {
	switch i {
	case InstrumentSource, InstrumentReference:
		return true
	}
	return false
}

// Measurement is the persisted metadata of one acquired sweep.
// Samples are stored separately (see WaveformSample).
type Measurement struct {
	ID          string // base58(sha256(...)), see idhash
	Instrument  Instrument
	SampleLabel string // physical sample name, free text
	Condition   Condition
	UnitHint    UnitHint
	SampleCount int
	CreatedAt   time.Time
}

// ToWaveform assembles a Waveform from the measurement and its ordered samples.
func (m *Measurement) ToWaveform(samples []WaveformSample) Waveform {
	conc := m.Condition.Concentration
	w := Waveform{
		MeasurementID: m.ID,
		Samples:       make([]Sample, len(samples)),
		ScanRate:      m.Condition.ScanRate,
		Concentration: &conc,
		UnitHint:      m.UnitHint,
	}
	for i, s := range samples {
		w.Samples[i] = Sample{Voltage: s.Voltage, Current: s.Current}
	}
	return w
}
