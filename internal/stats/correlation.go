// Package stats provides the descriptive statistics the scoring engine is built on.
// Degenerate inputs (empty, singleton, constant) produce neutral zero values
// instead of NaN so a steady metric never halts the pipeline.
package stats

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrLengthMismatch = errors.New("input arrays differ in length")
	ErrEmptyInput     = errors.New("input is empty")
)

// Spearman computes the Spearman rank correlation of x and y.
// Ties receive their average rank. Returns 0 for n == 1 or when either
// series has no rank variance.
func Spearman(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("spearman: %w (%d vs %d)", ErrLengthMismatch, len(x), len(y))
	}
	n := len(x)
	if n == 0 {
		return 0, fmt.Errorf("spearman: %w", ErrEmptyInput)
	}
	if n == 1 {
		return 0, nil
	}

	xRanks := Ranks(x)
	yRanks := Ranks(y)
	if Variance(xRanks) == 0 || Variance(yRanks) == 0 {
		return 0, nil
	}

	var sumDiff2 float64
	for i := 0; i < n; i++ {
		diff := xRanks[i] - yRanks[i]
		sumDiff2 += diff * diff
	}

	nf := float64(n)
	rho := 1.0 - (6.0*sumDiff2)/(nf*(nf*nf-1))

	// the closed form drifts slightly past the bounds when ties are present
	return Clamp(rho, -1, 1), nil
}

// Ranks converts values to 1-based ranks, averaging the ranks of tied values
func Ranks(values []float64) []float64 {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] < values[order[b]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[order[j+1]] == values[order[i]] {
			j++
		}
		// positions i..j share the mean of ranks i+1..j+1
		avg := float64(i+j+2) / 2.0
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}
	return ranks
}
