package stats

import (
	"math"
	"sort"
)

// Summary holds basic statistical measures for a series
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Mean returns the arithmetic mean, or 0 for an empty series
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if isConstant(values) {
		return values[0]
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance returns the population variance (divides by n)
func Variance(values []float64) float64 {
	if len(values) < 2 || isConstant(values) {
		return 0
	}
	mean := Mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(len(values))
}

// StdDev returns the population standard deviation; 0 for empty or singleton input
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// Describe summarizes a series
func Describe(values []float64) Summary {
	s := Summary{N: len(values)}
	if len(values) == 0 {
		return s
	}
	s.Mean = Mean(values)
	s.StdDev = StdDev(values)
	s.Min, s.Max = values[0], values[0]
	for _, v := range values[1:] {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	return s
}

// Median returns the middle value, averaging the two central values for even n
func Median(values []float64) float64 {
	return Percentile(values, 50)
}

// Percentile returns the p-th percentile (0-100) using linear interpolation between ranks
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	p = Clamp(p, 0, 100)
	pos := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// PercentileRank returns the share (0-100) of values strictly below v, counting ties as half
func PercentileRank(values []float64, v float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var below, equal int
	for _, x := range values {
		switch {
		case x < v:
			below++
		case x == v:
			equal++
		}
	}
	return (float64(below) + 0.5*float64(equal)) / float64(len(values)) * 100
}

// Clamp bounds v to [min, max]
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Remap linearly maps v from [inMin, inMax] to [outMin, outMax].
// A zero-width input range maps to the output midpoint.
func Remap(v, inMin, inMax, outMin, outMax float64) float64 {
	if inMax == inMin {
		return (outMin + outMax) / 2
	}
	t := (v - inMin) / (inMax - inMin)
	return outMin + t*(outMax-outMin)
}
