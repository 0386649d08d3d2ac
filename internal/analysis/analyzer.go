// Package analysis runs the peak pipeline: preprocess, detect, extract
// features, score, merge and classify.
package analysis

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"voltammetry-lab/internal/classify"
	"voltammetry-lab/internal/detection"
	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/features"
	"voltammetry-lab/internal/observability"
	"voltammetry-lab/internal/preprocess"
	"voltammetry-lab/internal/scoring"
)

// Options for creating an Analyzer.
type Options struct {
	Preprocess preprocess.Config
	Detection  detection.Config
	Detectors  []string // empty = all
	Features   features.Config
	Scoring    scoring.Config
	Classify   classify.Config

	Workers       int // batch parallelism, 0 = GOMAXPROCS
	RecordMetrics bool
	Logger        logrus.FieldLogger
}

// DefaultOptions returns options with every component at its defaults.
func DefaultOptions() Options {
	return Options{
		Preprocess: preprocess.DefaultConfig(),
		Detection:  detection.DefaultConfig(),
		Features:   features.DefaultConfig(),
		Scoring:    scoring.DefaultConfig(),
		Classify:   classify.DefaultConfig(),
	}
}

// Analyzer is safe for concurrent use; it holds only configuration.
type Analyzer struct {
	pre        *preprocess.Preprocessor
	coord      *detection.Coordinator
	extractor  *features.Extractor
	scorer     *scoring.Scorer
	classifier *classify.Classifier

	workers int
	metrics bool
	log     logrus.FieldLogger
}

// New creates an Analyzer. Returns an error for invalid weights, feature
// windows or detector names.
func New(opts Options) (*Analyzer, error) {
	if err := opts.Features.Validate(); err != nil {
		return nil, err
	}
	scorer, err := scoring.New(opts.Scoring)
	if err != nil {
		return nil, err
	}
	ex := features.New(opts.Features)
	detectors, err := detection.FromConfig(opts.Detectors, opts.Detection, ex)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Analyzer{
		pre:        preprocess.New(opts.Preprocess),
		coord:      detection.NewCoordinator(opts.Detection.MergeWindowFraction, detectors...),
		extractor:  ex,
		scorer:     scorer,
		classifier: classify.New(opts.Classify),
		workers:    workers,
		metrics:    opts.RecordMetrics,
		log:        log,
	}, nil
}

// Result is the outcome of analyzing one waveform.
type Result struct {
	MeasurementID string
	Peaks         []domain.Peak // ascending by voltage
	Empty         bool          // nothing to detect (degenerate input)
	SampleCount   int
	ScaleApplied  float64
	EffectiveUnit domain.UnitHint
	NoiseSigma    float64 // µA
	MaxAbsCurrent float64 // µA
}

// EnabledPeaks returns the peaks that cleared the confidence threshold.
func (r Result) EnabledPeaks() []domain.Peak {
	var out []domain.Peak
	for _, p := range r.Peaks {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// Analyze runs the pipeline with the default expected peak windows.
func (a *Analyzer) Analyze(w *domain.Waveform) Result {
	return a.AnalyzeFor(w, "")
}

// AnalyzeFor runs the pipeline using the expected windows of analyte.
// Degenerate waveforms produce an empty peak list, never an error.
func (a *Analyzer) AnalyzeFor(w *domain.Waveform, analyte string) Result {
	start := time.Now()
	res := Result{Peaks: []domain.Peak{}, SampleCount: w.Len()}
	if w != nil {
		res.MeasurementID = w.MeasurementID
	}

	nw, ok := a.pre.Normalize(w)
	if !ok {
		res.Empty = true
		a.record(res, start)
		return res
	}
	res.ScaleApplied = nw.ScaleApplied
	res.EffectiveUnit = nw.EffectiveUnit
	res.NoiseSigma = nw.NoiseSigma
	res.MaxAbsCurrent = nw.MaxAbsCurrent

	cands := a.coord.Detect(nw)
	frame := a.extractor.Prepare(nw, analyte)

	scored := make([]detection.Scored, 0, len(cands))
	for _, c := range cands {
		if c.Features == nil {
			c = frame.Extract(c)
		} else {
			fv := *c.Features
			fv.PositionScore = frame.PositionScore(c.Voltage, c.Polarity)
			c.Features = &fv
		}
		conf := a.scorer.Score(*c.Features)
		scored = append(scored, detection.Scored{
			Candidate:  c,
			Confidence: conf,
			Enabled:    a.scorer.Enabled(conf),
		})
	}

	merged := a.coord.Merge(scored, nw.SweepRange)
	res.Peaks = a.classifier.Classify(nw, merged)

	a.log.WithFields(logrus.Fields{
		"measurement_id": res.MeasurementID,
		"candidates":     len(cands),
		"peaks":          len(res.Peaks),
		"scale":          nw.ScaleApplied,
	}).Debug("waveform analyzed")

	a.record(res, start)
	return res
}

// ScaleOf returns the multiplier that converts currents in unit to µA, the
// unit peak currents and calibration models are expressed in. UnitAuto
// resolves by magnitude the same way Analyze does.
func (a *Analyzer) ScaleOf(unit domain.UnitHint, currents []float64) (float64, domain.UnitHint) {
	return a.pre.ScaleOf(unit, currents)
}

// MicroampCurve returns the sweep as (voltage, µA) points in sweep order.
func (a *Analyzer) MicroampCurve(w *domain.Waveform) []domain.CurvePoint {
	currents := make([]float64, len(w.Samples))
	for i, s := range w.Samples {
		currents[i] = s.Current
	}
	scale, _ := a.ScaleOf(w.UnitHint, currents)

	out := make([]domain.CurvePoint, len(w.Samples))
	for i, s := range w.Samples {
		out[i] = domain.CurvePoint{s.Voltage, s.Current * scale}
	}
	return out
}

// AnalyzeBatch analyzes independent waveforms on a bounded worker pool.
// Results keep the input order. Returns ctx.Err() if cancelled before all
// waveforms were processed.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, ws []domain.Waveform) ([]Result, error) {
	results := make([]Result, len(ws))

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i := range ws {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = a.Analyze(&ws[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyze batch: %w", err)
	}
	return results, nil
}

func (a *Analyzer) record(res Result, start time.Time) {
	if !a.metrics {
		return
	}
	observability.RecordAnalysis(res.Empty, time.Since(start).Seconds())
	for _, p := range res.Peaks {
		observability.RecordPeak(string(p.Type), p.Enabled)
	}
}
