package reporting

import (
	"context"
	"errors"
	"sort"
	"time"

	"voltammetry-lab/internal/calibration"
	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	measurementStore storage.MeasurementStore
	modelStore       storage.CalibrationModelStore
	runStore         storage.TrainingRunStore
	now              func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. runStore may be nil.
func NewGenerator(
	measurementStore storage.MeasurementStore,
	modelStore storage.CalibrationModelStore,
	runStore storage.TrainingRunStore,
) *Generator {
	return &Generator{
		measurementStore: measurementStore,
		modelStore:       modelStore,
		runStore:         runStore,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete calibration report.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	summary, err := g.generateDataSummary(ctx)
	if err != nil {
		return nil, err
	}

	snap, err := g.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	r := &Report{
		GeneratedAt: g.now(),
		DataSummary: *summary,
		Stats:       calibration.Describe(snap).Stats,
	}
	for _, m := range snap.Sorted() {
		r.Models = append(r.Models, modelRow(m))
	}
	if snap.Default != nil {
		d := modelRow(snap.Default)
		r.Default = &d
	}

	if g.runStore != nil {
		runs, err := g.runStore.GetAll(ctx)
		if err != nil {
			return nil, err
		}
		r.TrainingRuns = len(runs)
		if len(runs) > 0 {
			last := runs[len(runs)-1]
			r.LastRun = &RunRow{
				RunID:      last.RunID,
				StartedAt:  last.StartedAt,
				FinishedAt: last.FinishedAt,
				Status:     last.Status,
				Accepted:   last.Accepted,
				Rejected:   last.Rejected,
				Outcomes:   last.Outcomes,
			}
		}
	}
	return r, nil
}

// generateDataSummary counts measurements per instrument and condition.
func (g *Generator) generateDataSummary(ctx context.Context) (*DataSummary, error) {
	all, err := g.measurementStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	s := &DataSummary{TotalMeasurements: len(all)}
	byCond := make(map[string]*ConditionCount)
	for i, m := range all {
		cc, ok := byCond[m.Condition.Key()]
		if !ok {
			cc = &ConditionCount{Condition: m.Condition.Key()}
			byCond[cc.Condition] = cc
		}
		switch m.Instrument {
		case domain.InstrumentSource:
			s.SourceMeasurements++
			cc.Source++
		case domain.InstrumentReference:
			s.ReferenceMeasurements++
			cc.Reference++
		}

		if i == 0 || m.CreatedAt.Before(s.DateRangeStart) {
			s.DateRangeStart = m.CreatedAt
		}
		if i == 0 || m.CreatedAt.After(s.DateRangeEnd) {
			s.DateRangeEnd = m.CreatedAt
		}
	}

	for _, cc := range byCond {
		s.Conditions = append(s.Conditions, *cc)
	}
	sort.Slice(s.Conditions, func(i, j int) bool {
		return s.Conditions[i].Condition < s.Conditions[j].Condition
	})
	return s, nil
}

// loadSnapshot reads the persisted models the same way the registry does.
func (g *Generator) loadSnapshot(ctx context.Context) (*calibration.Snapshot, error) {
	snap := &calibration.Snapshot{Models: make(map[string]*domain.CalibrationModel)}

	models, err := g.modelStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range models {
		snap.Models[m.Key()] = m
		if m.Version > snap.Version {
			snap.Version = m.Version
		}
	}

	def, err := g.modelStore.GetDefault(ctx)
	switch {
	case err == nil:
		snap.Default = def
		if def.Version > snap.Version {
			snap.Version = def.Version
		}
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}
	return snap, nil
}
