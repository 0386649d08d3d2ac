// Package calibration fits, stores and applies cross-instrument calibration models.
package calibration

import (
	"sort"

	"voltammetry-lab/internal/domain"
)

// Pool is every paired point collected under one condition, across samples.
type Pool struct {
	Condition domain.Condition
	Points    []domain.PairedPoint
}

// Aggregator pools paired points by condition. Not safe for concurrent use.
type Aggregator struct {
	pools map[string]*Pool
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{pools: make(map[string]*Pool)}
}

// Add appends paired points to the pool of cond.
func (a *Aggregator) Add(cond domain.Condition, points ...domain.PairedPoint) {
	p, ok := a.pools[cond.Key()]
	if !ok {
		p = &Pool{Condition: cond}
		a.pools[cond.Key()] = p
	}
	p.Points = append(p.Points, points...)
}

// AddMeasurementPair pairs the enabled peaks of a source and a reference
// measurement taken under cond. Peaks of the same type are matched by rank
// in voltage order; surplus peaks on either side are ignored. Returns the
// number of points added.
func (a *Aggregator) AddMeasurementPair(cond domain.Condition, source, reference []domain.Peak) int {
	added := 0
	for _, typ := range []domain.PeakType{domain.PeakTypeOxidation, domain.PeakTypeReduction} {
		src := enabledOfType(source, typ)
		ref := enabledOfType(reference, typ)
		n := min(len(src), len(ref))
		for i := 0; i < n; i++ {
			a.Add(cond, domain.PairedPoint{
				SourceCurrent:    src[i].Current,
				ReferenceCurrent: ref[i].Current,
			})
		}
		added += n
	}
	return added
}

// Pools returns the pools in ascending condition key order.
func (a *Aggregator) Pools() []Pool {
	keys := make([]string, 0, len(a.pools))
	for k := range a.pools {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Pool, 0, len(keys))
	for _, k := range keys {
		p := a.pools[k]
		out = append(out, Pool{
			Condition: p.Condition,
			Points:    append([]domain.PairedPoint(nil), p.Points...),
		})
	}
	return out
}

// Len returns the number of conditions pooled.
func (a *Aggregator) Len() int {
	return len(a.pools)
}

func enabledOfType(peaks []domain.Peak, typ domain.PeakType) []domain.Peak {
	var out []domain.Peak
	for _, p := range peaks {
		if p.Enabled && p.Type == typ {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Voltage < out[j].Voltage })
	return out
}
