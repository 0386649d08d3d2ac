// Package features computes quantitative descriptors of peak candidates.
package features

import (
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"voltammetry-lab/internal/domain"
	"voltammetry-lab/internal/preprocess"
)

// Extractor computes FeatureVectors. It holds no per-waveform state and is
// safe for concurrent use.
type Extractor struct {
	cfg Config
}

// New creates an Extractor.
func New(cfg Config) *Extractor {
	return &Extractor{cfg: cfg}
}

// Config returns the extractor configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// Frame is the per-waveform state shared by all candidates of one sweep.
type Frame struct {
	cfg      Config
	nw       *preprocess.NormalizedWaveform
	windows  AnalyteWindows
	smoothed []float64    // µA
	path     []float64    // cumulative |dV| along the sweep
	signed   [2][]float64 // smoothed/maxAbs, [0] as measured, [1] negated
}

// Prepare smooths the waveform once for the given analyte ("" = defaults).
func (e *Extractor) Prepare(nw *preprocess.NormalizedWaveform, analyte string) *Frame {
	smoothed := preprocess.GaussianSmooth(nw.Current, e.cfg.SmoothingSigma)

	pos := make([]float64, len(smoothed))
	neg := make([]float64, len(smoothed))
	for i, v := range smoothed {
		pos[i] = v / nw.MaxAbsCurrent
		neg[i] = -pos[i]
	}

	path := make([]float64, len(nw.Voltage))
	for i := 1; i < len(path); i++ {
		path[i] = path[i-1] + math.Abs(nw.Voltage[i]-nw.Voltage[i-1])
	}

	return &Frame{
		cfg:      e.cfg,
		nw:       nw,
		windows:  e.cfg.windowsFor(analyte),
		smoothed: smoothed,
		path:     path,
		signed:   [2][]float64{pos, neg},
	}
}

// ExtractAll attaches features to every candidate.
func (e *Extractor) ExtractAll(nw *preprocess.NormalizedWaveform, analyte string, cands []domain.PeakCandidate) []domain.PeakCandidate {
	if len(cands) == 0 {
		return nil
	}
	f := e.Prepare(nw, analyte)
	out := make([]domain.PeakCandidate, len(cands))
	for i, c := range cands {
		out[i] = f.Extract(c)
	}
	return out
}

// Extract re-centres the candidate on the smoothed apex and computes its
// features. Windows that cannot be formed degrade to neutral values.
func (f *Frame) Extract(c domain.PeakCandidate) domain.PeakCandidate {
	n := len(f.smoothed)
	if n == 0 {
		return c
	}
	sig := f.signed[0]
	if c.Polarity == domain.PolarityNegative {
		sig = f.signed[1]
	}

	apex := f.refineApex(sig, clamp(c.Index, 0, n-1))
	fwhm, left, right := f.fwhm(sig, apex)
	width := right - left

	noise := f.noise(apex, width)
	peak := f.smoothed[apex]

	fv := domain.FeatureVector{
		FWHM:          fwhm,
		Asymmetry:     f.asymmetry(apex, width),
		Area:          f.area(apex, width),
		NoiseLevel:    noise,
		SNR:           math.Abs(peak) / math.Max(noise, f.cfg.Epsilon),
		PositionScore: f.PositionScore(f.nw.Voltage[apex], c.Polarity),
		Prominence:    preprocess.Prominence(sig, apex),
		SpanStart:     left,
		SpanEnd:       right,
	}

	c.Index = apex
	c.Voltage = f.nw.Voltage[apex]
	c.Current = f.nw.Current[apex]
	c.Prominence = fv.Prominence
	c.Features = &fv
	return c
}

// PositionScore is 1 inside the expected window for the polarity and falls
// off as a Gaussian of the distance outside it.
func (f *Frame) PositionScore(v float64, p domain.Polarity) float64 {
	w := f.windows.Oxidation
	if p == domain.PolarityNegative {
		w = f.windows.Reduction
	}
	d := w.Distance(v)
	if d == 0 {
		return 1
	}
	s := f.cfg.PositionFalloff
	return math.Exp(-d * d / (2 * s * s))
}

func (f *Frame) refineApex(sig []float64, idx int) int {
	lo := clamp(idx-f.cfg.ApexSearch, 0, len(sig)-1)
	hi := clamp(idx+f.cfg.ApexSearch, 0, len(sig)-1)
	best := idx
	for j := lo; j <= hi; j++ {
		if sig[j] > sig[best] {
			best = j
		}
	}
	return best
}

// fwhm walks outward from apex until the signal drops below half the apex
// height. Crossings are linearly interpolated; an unreached crossing falls
// back to the array edge.
func (f *Frame) fwhm(sig []float64, apex int) (width float64, left, right int) {
	half := sig[apex] / 2
	path := f.path

	leftPos := path[0]
	left = 0
	for j := apex - 1; j >= 0; j-- {
		if sig[j] < half {
			left = j
			leftPos = interpolate(path[j], path[j+1], sig[j], sig[j+1], half)
			break
		}
	}

	rightPos := path[len(path)-1]
	right = len(sig) - 1
	for j := apex + 1; j < len(sig); j++ {
		if sig[j] < half {
			right = j
			rightPos = interpolate(path[j-1], path[j], sig[j-1], sig[j], half)
			break
		}
	}
	return rightPos - leftPos, left, right
}

// asymmetry is left slope / (left + right slope) over a symmetric window.
func (f *Frame) asymmetry(apex, width int) float64 {
	h := max(f.cfg.MinWindow, int(math.Round(float64(width)/2)))
	if apex-h < 0 || apex+h >= len(f.smoothed) {
		return 0.5
	}
	l := math.Abs(f.smoothed[apex] - f.smoothed[apex-h])
	r := math.Abs(f.smoothed[apex] - f.smoothed[apex+h])
	if l+r == 0 {
		return 0.5
	}
	return l / (l + r)
}

// area integrates |I - baseline| over the peak window, with the baseline
// drawn between the window end points. Simpson's rule when the abscissae
// allow it, trapezoid otherwise.
func (f *Frame) area(apex, width int) float64 {
	hw := max(f.cfg.MinWindow, int(math.Ceil(f.cfg.AreaHalfWidth*float64(width))))
	a0 := max(0, apex-hw)
	a1 := min(len(f.smoothed)-1, apex+hw)
	if a1-a0 < 1 {
		return 0
	}

	x := f.path[a0 : a1+1]
	y0, y1 := f.smoothed[a0], f.smoothed[a1]
	x0, x1 := x[0], x[len(x)-1]
	ys := make([]float64, len(x))
	for k := range x {
		base := y0
		if x1 > x0 {
			base = y0 + (y1-y0)*(x[k]-x0)/(x1-x0)
		}
		ys[k] = math.Abs(f.smoothed[a0+k] - base)
	}

	if len(x) >= 3 && strictlyIncreasing(x) {
		return integrate.Simpsons(x, ys)
	}
	return trapezoid(x, ys)
}

// noise is the pooled standard deviation of two detrended raw-current
// windows flanking the peak. Falls back to the global estimate.
func (f *Frame) noise(apex, width int) float64 {
	cur := f.nw.Current
	w := f.cfg.NoiseWindow
	off := max(f.cfg.MinWindow, int(math.Ceil(f.cfg.NoiseOffsetFWHM*float64(width))))

	var residuals []float64
	if hi := apex - off; hi >= 0 {
		lo := max(0, hi-w+1)
		residuals = appendResiduals(residuals, cur[lo:hi+1])
	}
	if lo := apex + off; lo < len(cur) {
		hi := min(len(cur)-1, lo+w-1)
		residuals = appendResiduals(residuals, cur[lo:hi+1])
	}

	if len(residuals) < 3 {
		return f.nw.NoiseSigma
	}
	return stat.StdDev(residuals, nil)
}

func appendResiduals(dst, window []float64) []float64 {
	if len(window) < 3 {
		return dst
	}
	return append(dst, preprocess.Detrend(window)...)
}

func interpolate(x0, x1, y0, y1, level float64) float64 {
	if y1 == y0 {
		return (x0 + x1) / 2
	}
	return x0 + (x1-x0)*(level-y0)/(y1-y0)
}

func strictlyIncreasing(x []float64) bool {
	for i := 1; i < len(x); i++ {
		if x[i] <= x[i-1] {
			return false
		}
	}
	return true
}

func trapezoid(x, y []float64) float64 {
	sum := 0.0
	for i := 1; i < len(x); i++ {
		sum += (x[i] - x[i-1]) * (y[i] + y[i-1]) / 2
	}
	return sum
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
