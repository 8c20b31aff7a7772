package smoothing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlpha(t *testing.T) {
	assert.InDelta(t, 0.25, Alpha(7), 1e-12)
	assert.InDelta(t, 2.0/29.0, Alpha(28), 1e-12)
	assert.Equal(t, 1.0, Alpha(0))
}

func TestEMA_FixedPoint(t *testing.T) {
	for _, v := range []float64{0, 0.3, 0.123456789, 1} {
		for _, a := range []float64{0.01, Alpha(7), Alpha(28), 0.9} {
			assert.Equal(t, v, EMA(v, v, a))
		}
	}
}

func TestTracker_Seed(t *testing.T) {
	tr := NewTracker()
	p := tr.Step(nil, 0.42)
	assert.Equal(t, Pair{Short: 0.42, Long: 0.42}, p)

	series := tr.Series([]float64{0.42})
	assert.Equal(t, []Pair{{Short: 0.42, Long: 0.42}}, series)
}

func TestTracker_OnlineMatchesOffline(t *testing.T) {
	tr := NewTracker()
	raws := []float64{0.31, 0.44, 0.52, 0.38, 0.61, 0.7, 0.29, 0.33, 0.5}

	offline := tr.Series(raws)

	var prev *Pair
	for i, raw := range raws {
		next := tr.Step(prev, raw)
		assert.Equal(t, offline[i], next, "step %d", i)
		prev = &next
	}
}

func TestTracker_StepValues(t *testing.T) {
	tr := NewTracker()
	p := tr.Step(&Pair{Short: 0.4, Long: 0.4}, 0.8)
	assert.InDelta(t, 0.5, p.Short, 1e-12)
	assert.InDelta(t, 0.4+(2.0/29.0)*0.4, p.Long, 1e-12)
}

func TestClassifyTrend(t *testing.T) {
	tr := NewTracker()
	base := Pair{Short: 0.5, Long: 0.5}

	assert.Equal(t, TrendRising, tr.ClassifyTrend(base, Pair{Short: 0.53}))
	assert.Equal(t, TrendFalling, tr.ClassifyTrend(base, Pair{Short: 0.47}))
	assert.Equal(t, TrendStable, tr.ClassifyTrend(base, Pair{Short: 0.51}))
	assert.Equal(t, TrendStable, tr.ClassifyTrend(base, Pair{Short: 0.49}))
}

func TestDetectCrossover(t *testing.T) {
	below := Pair{Short: 0.4, Long: 0.5}
	above := Pair{Short: 0.6, Long: 0.5}

	assert.Equal(t, CrossoverAbove, DetectCrossover(below, above))
	assert.Equal(t, CrossoverBelow, DetectCrossover(above, below))
	assert.Equal(t, CrossoverNone, DetectCrossover(above, above))
	assert.Equal(t, CrossoverNone, DetectCrossover(below, below))
}

func TestCrossovers(t *testing.T) {
	tr := NewTracker()
	raws := []float64{0.2, 0.2, 0.2, 0.9, 0.9, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1}
	found := Crossovers(tr.Series(raws))

	assert.Equal(t, CrossoverAbove, found[3])
	assert.Len(t, found, 2)

	var sawBelow bool
	for idx, c := range found {
		if c == CrossoverBelow {
			sawBelow = true
			assert.Greater(t, idx, 5)
		}
	}
	assert.True(t, sawBelow)
}

func TestVolatility(t *testing.T) {
	flat := []Pair{{0.5, 0.5}, {0.5, 0.5}}
	assert.Equal(t, 0.0, Volatility(flat))
	assert.Greater(t, Volatility([]Pair{{0.6, 0.5}, {0.3, 0.5}}), 0.0)
}
