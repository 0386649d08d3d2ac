package domain

// Polarity is the tentative direction of a candidate swing.
type Polarity int

const (
	PolarityPositive Polarity = 1  // anodic, current rises
	PolarityNegative Polarity = -1 // cathodic, current falls
)

// PeakType is the final classification of a peak.
type PeakType string

const (
	PeakTypeOxidation PeakType = "oxidation"
	PeakTypeReduction PeakType = "reduction"
)

// DetectorName identifies a candidate detection strategy.
type DetectorName string

const (
	DetectorDeterministic   DetectorName = "deterministic"
	DetectorStatistical     DetectorName = "statistical"
	DetectorFeatureEnhanced DetectorName = "feature_enhanced"
)

// Priority orders detectors for merge tie-breaks; higher wins.
func (d DetectorName) Priority() int {
	switch d {
	case DetectorFeatureEnhanced:
		return 3
	case DetectorStatistical:
		return 2
	case DetectorDeterministic:
		return 1
	}
	return 0
}

// FeatureVector holds the quantitative descriptors of one candidate.
type FeatureVector struct {
	FWHM          float64 // volts
	Asymmetry     float64 // [0,1], 0.5 = symmetric
	Area          float64 // |I - baseline| integrated over volts
	NoiseLevel    float64 // same unit as current
	SNR           float64
	PositionScore float64 // [0,1]
	Prominence    float64 // fraction of the waveform's max |current|

	// Half-height crossing indices, used to recognise duplicates.
	SpanStart int
	SpanEnd   int
}

// PeakCandidate is a raw detector hit. Ephemeral.
type PeakCandidate struct {
	Index      int
	Voltage    float64
	Current    float64
	Polarity   Polarity
	Prominence float64 // fraction of max |current|
	Detector   DetectorName
	Features   *FeatureVector // set by feature-enhanced detection or the extractor
}

// Peak is a classified, scored peak.
type Peak struct {
	Voltage    float64
	Current    float64 // microamperes
	Type       PeakType
	Confidence float64 // [0,100]
	Features   FeatureVector
	Enabled    bool
	Detector   DetectorName
	Index      int
}
