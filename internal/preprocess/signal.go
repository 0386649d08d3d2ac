package preprocess

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// GaussianSmooth convolves data with a normalized Gaussian kernel.
// Edges are padded with the nearest sample. sigma is in samples; sigma <= 0 returns a copy.
func GaussianSmooth(data []float64, sigma float64) []float64 {
	out := make([]float64, len(data))
	if sigma <= 0 || len(data) == 0 {
		copy(out, data)
		return out
	}

	size := int(math.Ceil(sigma * 6))
	if size%2 == 0 {
		size++
	}
	half := size / 2
	kernel := make([]float64, size)
	sum := 0.0
	for i := range kernel {
		x := float64(i - half)
		kernel[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	last := len(data) - 1
	for i := range data {
		val := 0.0
		for j, k := range kernel {
			idx := i + j - half
			if idx < 0 {
				idx = 0
			} else if idx > last {
				idx = last
			}
			val += data[idx] * k
		}
		out[i] = val
	}
	return out
}

// Prominence returns the height of values[i] above the higher of the two
// lowest points reached on each side before a higher sample is met.
func Prominence(values []float64, i int) float64 {
	if i < 0 || i >= len(values) {
		return 0
	}
	peak := values[i]

	leftMin := peak
	for j := i - 1; j >= 0; j-- {
		if values[j] > peak {
			break
		}
		if values[j] < leftMin {
			leftMin = values[j]
		}
	}

	rightMin := peak
	for j := i + 1; j < len(values); j++ {
		if values[j] > peak {
			break
		}
		if values[j] < rightMin {
			rightMin = values[j]
		}
	}

	return peak - math.Max(leftMin, rightMin)
}

// HalfProminenceWidth returns the width in samples of the peak at i, measured
// where the signal drops below peak - prominence/2. Array edges bound the walk.
func HalfProminenceWidth(values []float64, i int, prominence float64) int {
	level := values[i] - prominence/2

	left := 0
	for j := i - 1; j >= 0; j-- {
		if values[j] < level {
			left = j
			break
		}
	}
	right := len(values) - 1
	for j := i + 1; j < len(values); j++ {
		if values[j] < level {
			right = j
			break
		}
	}
	return right - left
}

// Detrend subtracts the least-squares line fitted against sample index.
func Detrend(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) < 2 {
		copy(out, values)
		return out
	}
	alpha, beta := FitIndexLine(values, 0)
	for i, v := range values {
		out[i] = v - (alpha + beta*float64(i))
	}
	return out
}

// Baseline fit tuning for DetrendSweep.
const (
	baselineIterations = 5
	baselineClip       = 3.0 // robust sigmas
)

// DetrendSweep removes a baseline from each monotone run of the sweep. The
// line of each run is refitted with points more than baselineClip robust
// sigmas off the previous fit excluded, so peaks do not tilt it.
func DetrendSweep(values, voltage []float64) []float64 {
	out := make([]float64, len(values))
	for _, seg := range Segments(voltage) {
		run := values[seg[0]:seg[1]]
		if len(run) < MinSamples {
			m := Median(run)
			for k := seg[0]; k < seg[1]; k++ {
				out[k] = values[k] - m
			}
			continue
		}
		alpha, beta := FitBaseline(run, seg[0])
		for k := seg[0]; k < seg[1]; k++ {
			out[k] = values[k] - (alpha + beta*float64(k))
		}
	}
	return out
}

// Segments splits a sweep into half-open [start, end) index ranges of
// monotone voltage. The vertex sample starts the next run.
func Segments(voltage []float64) [][2]int {
	if len(voltage) == 0 {
		return nil
	}
	var out [][2]int
	start, dir := 0, 0
	for i := 1; i < len(voltage); i++ {
		d := 0
		switch {
		case voltage[i] > voltage[i-1]:
			d = 1
		case voltage[i] < voltage[i-1]:
			d = -1
		default:
			continue
		}
		if dir != 0 && d != dir {
			out = append(out, [2]int{start, i - 1})
			start = i - 1
		}
		dir = d
	}
	return append(out, [2]int{start, len(voltage)})
}

// FitBaseline fits values[k] = alpha + beta*(offset+k) by iteratively
// reweighted least squares with 0/1 weights.
func FitBaseline(values []float64, offset int) (alpha, beta float64) {
	n := len(values)
	if n < 2 {
		return FitIndexLine(values, offset)
	}
	xs := make([]float64, n)
	for k := range xs {
		xs[k] = float64(offset + k)
	}
	weights := make([]float64, n)
	for k := range weights {
		weights[k] = 1
	}
	alpha, beta = stat.LinearRegression(xs, values, nil, false)

	residuals := make([]float64, n)
	next := make([]float64, n)
	for it := 0; it < baselineIterations; it++ {
		var inliers []float64
		for k, v := range values {
			residuals[k] = v - (alpha + beta*xs[k])
			if weights[k] > 0 {
				inliers = append(inliers, math.Abs(residuals[k]))
			}
		}
		scale := Median(inliers) / 0.6745
		if scale <= 1e-12 {
			break
		}

		kept, changed := 0, false
		for k, r := range residuals {
			next[k] = 0
			if math.Abs(r) <= baselineClip*scale {
				next[k] = 1
				kept++
			}
			if next[k] != weights[k] {
				changed = true
			}
		}
		if kept < 2 || !changed {
			break
		}
		copy(weights, next)
		alpha, beta = stat.LinearRegression(xs, values, weights, false)
	}
	return alpha, beta
}

// FitIndexLine fits values[k] = alpha + beta*(offset+k) by ordinary least squares.
func FitIndexLine(values []float64, offset int) (alpha, beta float64) {
	xs := make([]float64, len(values))
	for k := range values {
		xs[k] = float64(offset + k)
	}
	if len(values) < 2 {
		if len(values) == 1 {
			return values[0], 0
		}
		return 0, 0
	}
	return stat.LinearRegression(xs, values, nil, false)
}

// Median returns the median of values without modifying them.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// MaxAbs returns the largest absolute value in values.
func MaxAbs(values []float64) float64 {
	m := 0.0
	for _, v := range values {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}
