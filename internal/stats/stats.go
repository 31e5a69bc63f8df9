// Package stats provides the statistical primitives shared by the feature
// engineer, the score calibrator and the population analyzer. Everything is
// computed directly over float64 slices; no input slice is ever mutated.
package stats

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance returns the population variance (divisor n, not n-1).
// Returns 0 for slices with fewer than 2 elements.
func Variance(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0.0
	}
	mean := Mean(values)
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return ss / float64(n)
}

// Std returns the population standard deviation.
func Std(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// Median returns the middle value (mean of the two middle values for even
// lengths), or 0 for an empty slice. The input is not reordered.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0.0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2.0
}

// MinMax returns the smallest and largest values, or (0, 0) for an empty
// slice.
func MinMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0.0, 0.0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Sum returns the total of all values.
func Sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// CV returns the coefficient of variation (population std / mean), or 0 when
// the mean is not strictly positive.
func CV(values []float64) float64 {
	mean := Mean(values)
	if mean <= 0 {
		return 0.0
	}
	return Std(values) / mean
}

// Pearson computes the Pearson correlation coefficient between two series.
//
//	r = cov(x, y) / (std(x) * std(y))
//
// Returns 0 when the series differ in length, have fewer than 2 points, or
// when either series has zero variance.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0.0
	}

	meanX := Mean(x)
	meanY := Mean(y)

	cov := 0.0
	varX := 0.0
	varY := 0.0
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX < 1e-12 || varY < 1e-12 {
		return 0.0
	}
	return cov / math.Sqrt(varX*varY)
}

// Round2 rounds to 2 decimal places, the precision used for reported
// percentages and ratios.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
