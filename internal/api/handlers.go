package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"voltammetry-lab/internal/calibration"
	"voltammetry-lab/internal/domain"
)

type detectRequest struct {
	Samples       []domain.CurvePoint `json:"samples"`
	ScanRate      *float64            `json:"scan_rate"`
	Concentration *float64            `json:"concentration"`
	Unit          string              `json:"unit"`
	Analyte       string              `json:"analyte"`
}

type applyRequest struct {
	RawCurrent    *float64            `json:"raw_current"`
	Curve         []domain.CurvePoint `json:"curve"`
	ScanRate      *float64            `json:"scan_rate"`
	Concentration *float64            `json:"concentration"`
	Unit          string              `json:"unit"` // of the inputs, empty = uA
}

type conditionBody struct {
	Concentration float64 `json:"concentration"`
	ScanRate      float64 `json:"scan_rate"`
}

type calibrationResponse struct {
	CalibratedCurrent *float64            `json:"calibrated_current,omitempty"`
	CalibratedCurve   []domain.CurvePoint `json:"calibrated_curve,omitempty"`
	GainFactor        float64             `json:"gain_factor"`
	Offset            float64             `json:"offset"`
	Method            domain.Method       `json:"method"`
	Tier              domain.Tier         `json:"confidence_tier"`
	RSquared          float64             `json:"r_squared"`
	ScaleApplied      float64             `json:"scale_applied"`
	Condition         *conditionBody      `json:"condition,omitempty"`
}

type compareRequest struct {
	SourceID    string `json:"source_id"`
	ReferenceID string `json:"reference_id"`
}

type compareResponse struct {
	Correlation        float64       `json:"correlation"`
	RMSE               float64       `json:"rmse"`
	DataPointsCompared int           `json:"data_points_compared"`
	Method             domain.Method `json:"method"`
	Tier               domain.Tier   `json:"confidence_tier"`
}

type trainResponse struct {
	RunID      string                    `json:"run_id"`
	Status     domain.TrainingStatus     `json:"status"`
	Accepted   int                       `json:"accepted"`
	Rejected   int                       `json:"rejected"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
	Outcomes   []domain.ConditionOutcome `json:"outcomes"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) detectPeaks(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		missingParameter(c, "invalid request body: %v", err)
		return
	}
	if req.Samples == nil {
		missingParameter(c, "samples is required")
		return
	}
	if req.ScanRate == nil {
		missingParameter(c, "scan_rate is required")
		return
	}
	unit, ok := domain.ParseUnitHint(req.Unit)
	if !ok {
		missingParameter(c, "unknown unit %q", req.Unit)
		return
	}

	w := domain.Waveform{
		Samples:       make([]domain.Sample, len(req.Samples)),
		ScanRate:      *req.ScanRate,
		Concentration: req.Concentration,
		UnitHint:      unit,
	}
	for i, p := range req.Samples {
		w.Samples[i] = domain.Sample{Voltage: p[0], Current: p[1]}
	}

	res := s.analyzer.AnalyzeFor(&w, req.Analyte)
	c.IndentedJSON(http.StatusOK, res.ToOutput())
}

func (s *Server) calibrationInfo(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.selector.Info())
}

func (s *Server) applyCalibration(c *gin.Context) {
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		missingParameter(c, "invalid request body: %v", err)
		return
	}

	cr := calibration.Request{
		RawCurrent:    req.RawCurrent,
		Curve:         req.Curve,
		ScanRate:      req.ScanRate,
		Concentration: req.Concentration,
	}
	scale := 1.0
	if req.Unit != "" {
		unit, ok := domain.ParseUnitHint(req.Unit)
		if !ok {
			missingParameter(c, "unknown unit %q", req.Unit)
			return
		}
		scale, _ = s.analyzer.ScaleOf(unit, cr.Currents())
	}

	res, err := s.selector.Calibrate(cr.Scaled(scale))
	if err != nil {
		abortWithError(c, err)
		return
	}

	out := calibrationResponse{
		CalibratedCurrent: res.Value,
		CalibratedCurve:   res.Curve,
		GainFactor:        res.GainFactor,
		Offset:            res.Offset,
		Method:            res.Method,
		Tier:              res.Tier,
		RSquared:          res.RSquared,
		ScaleApplied:      scale,
	}
	if res.Condition != nil {
		out.Condition = &conditionBody{Concentration: res.Condition.Concentration, ScanRate: res.Condition.ScanRate}
	}
	c.IndentedJSON(http.StatusOK, out)
}

func (s *Server) compareCurves(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		missingParameter(c, "invalid request body: %v", err)
		return
	}
	if req.SourceID == "" || req.ReferenceID == "" {
		missingParameter(c, "source_id and reference_id are required")
		return
	}

	ctx := c.Request.Context()
	src, srcCurve, err := s.dataset.LoadCurve(ctx, req.SourceID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	_, refCurve, err := s.dataset.LoadCurve(ctx, req.ReferenceID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	cond := src.Condition
	res, err := s.selector.Compare(srcCurve, refCurve, &cond)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, compareResponse{
		Correlation:        res.Correlation,
		RMSE:               res.RMSE,
		DataPointsCompared: res.DataPointsCompared,
		Method:             res.Method,
		Tier:               res.Tier,
	})
}

func (s *Server) train(c *gin.Context) {
	ctx := c.Request.Context()
	agg, err := s.dataset.Pool(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}

	run, err := s.trainer.Run(ctx, agg.Pools())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, trainResponse{
		RunID:      run.RunID,
		Status:     run.Status,
		Accepted:   run.Accepted,
		Rejected:   run.Rejected,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Outcomes:   run.Outcomes,
	})
}
