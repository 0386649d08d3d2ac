package calibration

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"voltammetry-lab/internal/domain"
)

// ConditionInfo describes one served condition model.
type ConditionInfo struct {
	Concentration float64     `json:"concentration"`
	ScanRate      float64     `json:"scan_rate"`
	GainFactor    float64     `json:"gain_factor"`
	Offset        float64     `json:"offset"`
	RSquared      float64     `json:"r_squared"`
	Tier          domain.Tier `json:"confidence_tier"`
	DataPoints    int         `json:"data_points"`
}

// AggregateStats summarizes the served condition models.
type AggregateStats struct {
	Conditions   int                 `json:"conditions"`
	TotalPoints  int                 `json:"total_data_points"`
	MeanGain     float64             `json:"mean_gain_factor"`
	StdDevGain   float64             `json:"std_dev_gain_factor"`
	MeanRSquared float64             `json:"mean_r_squared"`
	MinRSquared  float64             `json:"min_r_squared"`
	MaxRSquared  float64             `json:"max_r_squared"`
	TierCounts   map[domain.Tier]int `json:"tier_counts"`
	HasDefault   bool                `json:"has_default"`
	Version      int64               `json:"version"`
}

// Info is the answer to a calibration info query.
type Info struct {
	Available map[string]ConditionInfo `json:"available_calibrations"`
	Default   *ConditionInfo           `json:"default_model,omitempty"`
	Stats     AggregateStats           `json:"aggregate_statistics"`
}

// Info describes the current snapshot.
func (s *Selector) Info() Info {
	return Describe(s.reg.Snapshot())
}

// Describe builds an Info from a snapshot.
func Describe(snap *Snapshot) Info {
	info := Info{
		Available: make(map[string]ConditionInfo, len(snap.Models)),
		Stats: AggregateStats{
			TierCounts: map[domain.Tier]int{domain.TierHigh: 0, domain.TierMedium: 0, domain.TierLow: 0},
			HasDefault: snap.Default != nil,
			Version:    snap.Version,
		},
	}

	models := snap.Sorted()
	gains := make([]float64, 0, len(models))
	r2s := make([]float64, 0, len(models))
	for _, m := range models {
		info.Available[m.Key()] = infoOf(m)
		info.Stats.TierCounts[m.Tier]++
		info.Stats.TotalPoints += m.DataPointCount
		gains = append(gains, m.GainFactor)
		r2s = append(r2s, m.RSquared)
	}
	if snap.Default != nil {
		d := infoOf(snap.Default)
		info.Default = &d
	}

	info.Stats.Conditions = len(models)
	if len(models) > 0 {
		info.Stats.MeanGain = stat.Mean(gains, nil)
		info.Stats.MeanRSquared = stat.Mean(r2s, nil)
		info.Stats.MinRSquared = floats.Min(r2s)
		info.Stats.MaxRSquared = floats.Max(r2s)
	}
	if len(models) > 1 {
		info.Stats.StdDevGain = stat.StdDev(gains, nil)
	}
	return info
}

func infoOf(m *domain.CalibrationModel) ConditionInfo {
	ci := ConditionInfo{
		GainFactor: m.GainFactor,
		Offset:     m.Offset,
		RSquared:   m.RSquared,
		Tier:       m.Tier,
		DataPoints: m.DataPointCount,
	}
	if m.Condition != nil {
		ci.Concentration = m.Condition.Concentration
		ci.ScanRate = m.Condition.ScanRate
	}
	return ci
}
