// Package smoothing tracks short and long exponential moving averages over a raw score series.
package smoothing

import (
	"github.com/sawpanic/allostat/internal/stats"
)

const (
	DefaultShortPeriod    = 7
	DefaultLongPeriod     = 28
	DefaultTrendThreshold = 0.02
)

// Alpha returns the EMA smoothing factor 2/(period+1)
func Alpha(period int) float64 {
	if period < 1 {
		period = 1
	}
	return 2.0 / float64(period+1)
}

// EMA folds one observation into a previous average: alpha*current + (1-alpha)*previous.
// Written in incremental form so an unchanged value is an exact fixed point.
func EMA(current, previous, alpha float64) float64 {
	return previous + alpha*(current-previous)
}

// Pair holds the short and long averages for one point in the series
type Pair struct {
	Short float64 `json:"short"`
	Long  float64 `json:"long"`
}

// Spread is short minus long; positive means recent strain above baseline
func (p Pair) Spread() float64 {
	return p.Short - p.Long
}

// Tracker maintains dual EMAs over the same raw series
type Tracker struct {
	ShortPeriod    int     `yaml:"short_period"`
	LongPeriod     int     `yaml:"long_period"`
	TrendThreshold float64 `yaml:"trend_threshold"`
}

// NewTracker creates a tracker with the 7/28 periods and 0.02 trend threshold
func NewTracker() Tracker {
	return Tracker{
		ShortPeriod:    DefaultShortPeriod,
		LongPeriod:     DefaultLongPeriod,
		TrendThreshold: DefaultTrendThreshold,
	}
}

// Step performs the online update. A nil prev seeds both averages with raw.
func (t Tracker) Step(prev *Pair, raw float64) Pair {
	if prev == nil {
		return Pair{Short: raw, Long: raw}
	}
	return Pair{
		Short: EMA(raw, prev.Short, Alpha(t.ShortPeriod)),
		Long:  EMA(raw, prev.Long, Alpha(t.LongPeriod)),
	}
}

// Series recomputes the full smoothed series offline. It folds Step over the
// input so it matches a sequence of online updates exactly.
func (t Tracker) Series(raws []float64) []Pair {
	out := make([]Pair, len(raws))
	var prev *Pair
	for i, raw := range raws {
		out[i] = t.Step(prev, raw)
		prev = &out[i]
	}
	return out
}

// Trend is the local direction of the short-term average
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// ClassifyTrend compares consecutive short averages; changes smaller than the
// threshold are reported as stable
func (t Tracker) ClassifyTrend(prev, curr Pair) Trend {
	delta := curr.Short - prev.Short
	switch {
	case delta > t.TrendThreshold:
		return TrendRising
	case delta < -t.TrendThreshold:
		return TrendFalling
	default:
		return TrendStable
	}
}

// Crossover reports the short average crossing the long one
type Crossover string

const (
	CrossoverNone  Crossover = "none"
	CrossoverAbove Crossover = "above"
	CrossoverBelow Crossover = "below"
)

// DetectCrossover reports whether short crossed long between prev and curr
func DetectCrossover(prev, curr Pair) Crossover {
	before := prev.Spread()
	after := curr.Spread()
	switch {
	case before <= 0 && after > 0:
		return CrossoverAbove
	case before >= 0 && after < 0:
		return CrossoverBelow
	default:
		return CrossoverNone
	}
}

// Crossovers scans a smoothed series and returns the index and direction of every crossing
func Crossovers(series []Pair) map[int]Crossover {
	found := make(map[int]Crossover)
	for i := 1; i < len(series); i++ {
		if c := DetectCrossover(series[i-1], series[i]); c != CrossoverNone {
			found[i] = c
		}
	}
	return found
}

// Volatility returns the standard deviation of the short-long spread over a series
func Volatility(series []Pair) float64 {
	spreads := make([]float64, len(series))
	for i, p := range series {
		spreads[i] = p.Spread()
	}
	return stats.StdDev(spreads)
}
