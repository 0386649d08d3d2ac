package calibration

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/observability"
)

// Request is a calibration request: a single raw current or a full curve.
// Currents are in µA, the unit models are fitted in; see Scaled.
type Request struct {
	RawCurrent    *float64
	Curve         []domain.CurvePoint
	ScanRate      *float64
	Concentration *float64
}

// Condition returns the requested condition, or nil unless both parts are set.
func (r Request) Condition() *domain.Condition {
	return ConditionOf(r.Concentration, r.ScanRate)
}

// Currents returns the currents the request carries.
func (r Request) Currents() []float64 {
	if r.Curve != nil {
		out := make([]float64, len(r.Curve))
		for i, p := range r.Curve {
			out[i] = p[1]
		}
		return out
	}
	if r.RawCurrent != nil {
		return []float64{*r.RawCurrent}
	}
	return nil
}

// Scaled returns a copy with every current multiplied by scale.
func (r Request) Scaled(scale float64) Request {
	out := r
	if r.RawCurrent != nil {
		v := *r.RawCurrent * scale
		out.RawCurrent = &v
	}
	if r.Curve != nil {
		out.Curve = make([]domain.CurvePoint, len(r.Curve))
		for i, p := range r.Curve {
			out.Curve[i] = domain.CurvePoint{p[0], p[1] * scale}
		}
	}
	return out
}

// ConditionOf builds a condition from optional parts, nil if either is missing.
func ConditionOf(concentration, scanRate *float64) *domain.Condition {
	if concentration == nil || scanRate == nil {
		return nil
	}
	return &domain.Condition{Concentration: *concentration, ScanRate: *scanRate}
}

// Selector looks up and applies calibration models from a registry.
type Selector struct {
	reg     *Registry
	metrics bool
}

// NewSelector creates a selector over reg.
func NewSelector(reg *Registry, recordMetrics bool) *Selector {
	return &Selector{reg: reg, metrics: recordMetrics}
}

// Select returns the model for cond and how it was chosen.
// Returns a ModelNotFound error if nothing has been trained.
func (s *Selector) Select(cond *domain.Condition) (*domain.CalibrationModel, domain.Method, error) {
	m, method, ok := s.reg.Snapshot().Lookup(cond)
	if !ok {
		return nil, "", s.fail(domain.Errorf(domain.CodeModelNotFound, "no calibration model has been trained"))
	}
	return m, method, nil
}

// Calibrate serves a request. The curve wins if both forms are present.
func (s *Selector) Calibrate(req Request) (*domain.CalibrationResult, error) {
	switch {
	case req.Curve != nil:
		return s.CalibrateCurve(req.Curve, req.Condition())
	case req.RawCurrent != nil:
		return s.CalibrateValue(*req.RawCurrent, req.Condition())
	default:
		return nil, s.fail(domain.Errorf(domain.CodeMissingParameter, "one of raw_current or curve is required"))
	}
}

// CalibrateValue applies gain*raw + offset.
func (s *Selector) CalibrateValue(raw float64, cond *domain.Condition) (*domain.CalibrationResult, error) {
	if !isFinite(raw) {
		return nil, s.fail(domain.Errorf(domain.CodeMissingParameter, "raw_current must be a finite number"))
	}
	m, method, err := s.Select(cond)
	if err != nil {
		return nil, err
	}
	v := m.Apply(raw)
	s.served(method)
	res := resultFor(m, method)
	res.Value = &v
	return res, nil
}

// CalibrateCurve applies the transform to every current; voltages are unchanged.
func (s *Selector) CalibrateCurve(curve []domain.CurvePoint, cond *domain.Condition) (*domain.CalibrationResult, error) {
	if err := validateCurve(curve, "curve"); err != nil {
		return nil, s.fail(err)
	}
	m, method, err := s.Select(cond)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CurvePoint, len(curve))
	for i, p := range curve {
		out[i] = domain.CurvePoint{p[0], m.Apply(p[1])}
	}
	s.served(method)
	res := resultFor(m, method)
	res.Curve = out
	return res, nil
}

// Compare calibrates source and measures agreement with reference over the
// index-aligned common prefix of both curves.
func (s *Selector) Compare(source, reference []domain.CurvePoint, cond *domain.Condition) (*domain.ComparisonResult, error) {
	if err := validateCurve(source, "source curve"); err != nil {
		return nil, s.fail(err)
	}
	if err := validateCurve(reference, "reference curve"); err != nil {
		return nil, s.fail(err)
	}
	n := min(len(source), len(reference))
	if n < 2 {
		return nil, s.fail(domain.Errorf(domain.CodeInsufficientData, "need at least 2 aligned points, have %d", n))
	}
	m, method, err := s.Select(cond)
	if err != nil {
		return nil, err
	}

	cal := make([]float64, n)
	ref := make([]float64, n)
	for i := 0; i < n; i++ {
		cal[i] = m.Apply(source[i][1])
		ref[i] = reference[i][1]
	}

	corr := stat.Correlation(cal, ref, nil)
	if math.IsNaN(corr) {
		corr = 0
	}
	diff := make([]float64, n)
	floats.SubTo(diff, cal, ref)
	rmse := floats.Norm(diff, 2) / math.Sqrt(float64(n))

	s.served(method)
	return &domain.ComparisonResult{
		Correlation:        corr,
		RMSE:               rmse,
		DataPointsCompared: n,
		Method:             method,
		Tier:               m.Tier,
	}, nil
}

func (s *Selector) served(method domain.Method) {
	if s.metrics {
		observability.RecordCalibration(string(method))
	}
}

func (s *Selector) fail(err *domain.Error) error {
	if s.metrics {
		observability.RecordCalibrationError(string(err.Code))
	}
	return err
}

func resultFor(m *domain.CalibrationModel, method domain.Method) *domain.CalibrationResult {
	res := &domain.CalibrationResult{
		GainFactor: m.GainFactor,
		Offset:     m.Offset,
		Method:     method,
		Tier:       m.Tier,
		RSquared:   m.RSquared,
	}
	if m.Condition != nil {
		c := *m.Condition
		res.Condition = &c
	}
	return res
}

func validateCurve(curve []domain.CurvePoint, what string) *domain.Error {
	if len(curve) == 0 {
		return domain.Errorf(domain.CodeMalformedCurve, "%s is empty", what)
	}
	for i, p := range curve {
		if !isFinite(p[0]) || !isFinite(p[1]) {
			return domain.Errorf(domain.CodeMalformedCurve, "%s point %d is not finite", what, i)
		}
	}
	return nil
}
