package detection

import (
	"math"
	"sort"
)

// The detectors share a small set of estimators. Percentile interpolation,
// sample variance and rolling/gradient NaN handling follow the conventions of
// the analytics tooling the thresholds were calibrated against, so the fences
// reproduce exactly.

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// medianAbsoluteDeviation is the median of absolute deviations from the
// median: the robust scale estimator behind the modified z-score.
func medianAbsoluteDeviation(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	center := median(values)
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - center)
	}
	return median(deviations)
}

// sampleStdDev is the ddof=1 standard deviation. Returns 0 for fewer than two
// samples.
func sampleStdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	m := mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// percentile computes the p-th percentile with linear interpolation between
// order statistics: rank = p/100 * (n-1).
func percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if n == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// rollingMean computes a trailing-window mean. Positions before the window
// fills are NaN, matching the smoothing the sentiment baseline was tuned on.
func rollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if window <= 0 || len(values) < window {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// gradient is the central-difference derivative with one-sided differences at
// the edges. NaN inputs propagate into every difference that touches them.
func gradient(values []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	switch n {
	case 0:
		return out
	case 1:
		out[0] = 0
		return out
	}
	out[0] = values[1] - values[0]
	out[n-1] = values[n-1] - values[n-2]
	for i := 1; i < n-1; i++ {
		out[i] = (values[i+1] - values[i-1]) / 2
	}
	return out
}
