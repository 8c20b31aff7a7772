package stats

import (
	"fmt"
	"math"
)

// madScale converts a median absolute deviation into a normal-consistent sigma
const madScale = 1.4826

// InterpolationMethod selects how missing values are filled
type InterpolationMethod string

const (
	InterpolateForward  InterpolationMethod = "forward"
	InterpolateBackward InterpolationMethod = "backward"
	InterpolateLinear   InterpolationMethod = "linear"
	InterpolateMean     InterpolationMethod = "mean"
)

func isConstant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// MedianAbsoluteDeviation returns median(|x - median(x)|)
func MedianAbsoluteDeviation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	med := Median(values)
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - med)
	}
	return Median(deviations)
}

// SmoothOutliers replaces values further than k robust sigmas from the median with the median.
// A series with zero MAD is returned unchanged.
func SmoothOutliers(values []float64, k float64) []float64 {
	out := append([]float64(nil), values...)
	if len(values) < 3 {
		return out
	}
	med := Median(values)
	sigma := madScale * MedianAbsoluteDeviation(values)
	if sigma == 0 {
		return out
	}
	for i, v := range out {
		if math.Abs(v-med) > k*sigma {
			out[i] = med
		}
	}
	return out
}

// Interpolate fills NaN gaps in values using the chosen method.
// Leading or trailing gaps that a directional method cannot reach fall back
// to the nearest known value; an all-missing series is returned unchanged.
func Interpolate(values []float64, method InterpolationMethod) ([]float64, error) {
	out := append([]float64(nil), values...)
	known := make([]int, 0, len(values))
	for i, v := range values {
		if !math.IsNaN(v) {
			known = append(known, i)
		}
	}
	if len(known) == 0 || len(known) == len(values) {
		return out, nil
	}

	switch method {
	case InterpolateForward:
		fillForward(out)
		fillBackward(out)
	case InterpolateBackward:
		fillBackward(out)
		fillForward(out)
	case InterpolateLinear:
		fillLinear(out, known)
	case InterpolateMean:
		present := make([]float64, len(known))
		for i, idx := range known {
			present[i] = values[idx]
		}
		mean := Mean(present)
		for i, v := range out {
			if math.IsNaN(v) {
				out[i] = mean
			}
		}
	default:
		return nil, fmt.Errorf("unknown interpolation method: %q", method)
	}
	return out, nil
}

func fillForward(values []float64) {
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = last
			continue
		}
		last = v
	}
}

func fillBackward(values []float64) {
	next := math.NaN()
	for i := len(values) - 1; i >= 0; i-- {
		if math.IsNaN(values[i]) {
			values[i] = next
			continue
		}
		next = values[i]
	}
}

func fillLinear(values []float64, known []int) {
	first, last := known[0], known[len(known)-1]
	for i := 0; i < first; i++ {
		values[i] = values[first]
	}
	for i := last + 1; i < len(values); i++ {
		values[i] = values[last]
	}
	for k := 0; k+1 < len(known); k++ {
		lo, hi := known[k], known[k+1]
		for i := lo + 1; i < hi; i++ {
			values[i] = Remap(float64(i), float64(lo), float64(hi), values[lo], values[hi])
		}
	}
}
