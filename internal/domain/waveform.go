package domain

// Sample is one (voltage, current) reading of a sweep.
type Sample struct {
	Voltage float64 // volts
	Current float64 // instrument units, see UnitHint
}

// UnitHint is an explicit caller-supplied current unit.
// An empty hint lets the preprocessor decide from magnitudes.
type UnitHint string

const (
	UnitAuto        UnitHint = ""
	UnitAmpere      UnitHint = "A"
	UnitMilliampere UnitHint = "mA"
	UnitMicroampere UnitHint = "uA"
	UnitNanoampere  UnitHint = "nA"
)

// IsValid checks if the hint is a known unit (or auto).
func (u UnitHint) IsValid() bool {
	switch u {
	case UnitAuto, UnitAmpere, UnitMilliampere, UnitMicroampere, UnitNanoampere:
		return true
	}
	return false
}

// ParseUnitHint accepts common spellings ("µA", "ua", "amps") of a unit.
func ParseUnitHint(s string) (UnitHint, bool) {
	switch s {
	case "", "auto":
		return UnitAuto, true
	case "A", "a", "amp", "amps", "ampere":
		return UnitAmpere, true
	case "mA", "ma":
		return UnitMilliampere, true
	case "uA", "ua", "µA", "μA":
		return UnitMicroampere, true
	case "nA", "na":
		return UnitNanoampere, true
	}
	return UnitAuto, false
}

// Waveform is an ordered cyclic-voltammetry sweep.
// Created at ingestion and treated as read-only by analysis code.
type Waveform struct {
	MeasurementID string   // optional, set when loaded from storage
	Samples       []Sample // sweep order, not voltage order
	ScanRate      float64  // mV/s
	Concentration *float64 // mM, nil if unknown
	UnitHint      UnitHint
}

// Len returns the number of samples.
func (w *Waveform) Len() int {
	if w == nil {
		return 0
	}
	return len(w.Samples)
}

// Voltages returns a copy of the voltage column.
func (w *Waveform) Voltages() []float64 {
	out := make([]float64, len(w.Samples))
	for i, s := range w.Samples {
		out[i] = s.Voltage
	}
	return out
}

// Currents returns a copy of the current column.
func (w *Waveform) Currents() []float64 {
	out := make([]float64, len(w.Samples))
	for i, s := range w.Samples {
		out[i] = s.Current
	}
	return out
}

// Condition returns the calibration condition of the sweep, if concentration is known.
func (w *Waveform) Condition() (Condition, bool) {
	if w.Concentration == nil {
		return Condition{}, false
	}
	return Condition{Concentration: *w.Concentration, ScanRate: w.ScanRate}, true
}

// WaveformSample is the storage row for one sample of a persisted measurement.
// Corresponds to waveform_samples table in ClickHouse.
type WaveformSample struct {
	MeasurementID string
	SampleIndex   int
	Voltage       float64
	Current       float64
}

// CurvePoint is a (voltage, current) pair in API payloads.
type CurvePoint [2]float64
