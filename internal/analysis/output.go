package analysis

import "voltammetry-lab/internal/domain"

// PeakOutput is the external shape of one detected peak.
type PeakOutput struct {
	Voltage    float64         `json:"voltage"`
	Current    float64         `json:"current"`
	Type       domain.PeakType `json:"type"`
	Confidence float64         `json:"confidence"`
	FWHM       float64         `json:"fwhm"`
	Asymmetry  float64         `json:"asymmetry"`
	Area       float64         `json:"area"`
	SNR        float64         `json:"snr"`
	Enabled    bool            `json:"enabled"`
}

// Output is the external shape of an analysis result.
type Output struct {
	MeasurementID string       `json:"measurement_id,omitempty"`
	Peaks         []PeakOutput `json:"peaks"`
	ScaleApplied  float64      `json:"scale_applied"`
	NoiseSigma    float64      `json:"noise_sigma"`
	SampleCount   int          `json:"sample_count"`
}

// ToOutput converts a Result to its external shape.
func (r Result) ToOutput() Output {
	out := Output{
		MeasurementID: r.MeasurementID,
		Peaks:         make([]PeakOutput, len(r.Peaks)),
		ScaleApplied:  r.ScaleApplied,
		NoiseSigma:    r.NoiseSigma,
		SampleCount:   r.SampleCount,
	}
	for i, p := range r.Peaks {
		out.Peaks[i] = PeakOutput{
			Voltage:    p.Voltage,
			Current:    p.Current,
			Type:       p.Type,
			Confidence: p.Confidence,
			FWHM:       p.Features.FWHM,
			Asymmetry:  p.Features.Asymmetry,
			Area:       p.Features.Area,
			SNR:        p.Features.SNR,
			Enabled:    p.Enabled,
		}
	}
	return out
}
