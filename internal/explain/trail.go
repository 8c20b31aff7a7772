package explain

import (
	"math"
	"sort"
	"time"

	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/smoothing"
	"github.com/sawpanic/allostat/internal/stats"
)

// outlierSigmas is how many robust sigmas from the median flag a raw score
const outlierSigmas = 3.0

// CrossoverPoint marks a score where the short average crossed the long one
type CrossoverPoint struct {
	EntryID   string              `json:"entryId"`
	Date      time.Time           `json:"date"`
	Direction smoothing.Crossover `json:"direction"`
}

// TrailSummary describes a whole score trail
type TrailSummary struct {
	Raw              stats.Summary    `json:"raw"`
	LatestPercentile float64          `json:"latestPercentile"`
	SpreadVolatility float64          `json:"spreadVolatility"`
	Crossovers       []CrossoverPoint `json:"crossovers"`
	Outliers         []string         `json:"outliers"`
	// Daily is one raw score per calendar day from the first score to the
	// last, with missing days filled linearly. A day with several entries
	// keeps the last one.
	Daily []float64 `json:"daily"`
}

// Summarize describes scores given in history order
func Summarize(scores []domain.ScoreEntry) (*TrailSummary, error) {
	summary := &TrailSummary{
		Crossovers: []CrossoverPoint{},
		Outliers:   []string{},
	}
	if len(scores) == 0 {
		return summary, nil
	}

	raws := make([]float64, len(scores))
	pairs := make([]smoothing.Pair, len(scores))
	for i, s := range scores {
		raws[i] = s.RawScore
		pairs[i] = s.EMAPair()
	}

	summary.Raw = stats.Describe(raws)
	summary.LatestPercentile = stats.PercentileRank(raws, raws[len(raws)-1])
	summary.SpreadVolatility = smoothing.Volatility(pairs)

	crossings := smoothing.Crossovers(pairs)
	indices := make([]int, 0, len(crossings))
	for i := range crossings {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	for _, i := range indices {
		summary.Crossovers = append(summary.Crossovers, CrossoverPoint{
			EntryID:   scores[i].EntryID,
			Date:      scores[i].Date,
			Direction: crossings[i],
		})
	}

	for i, v := range stats.SmoothOutliers(raws, outlierSigmas) {
		if v != raws[i] {
			summary.Outliers = append(summary.Outliers, scores[i].EntryID)
		}
	}

	daily, err := dailySeries(scores)
	if err != nil {
		return nil, err
	}
	summary.Daily = daily
	return summary, nil
}

func dailySeries(scores []domain.ScoreEntry) ([]float64, error) {
	first := scores[0].Date
	span := dayIndex(first, scores[len(scores)-1].Date)
	if span < 0 {
		span = 0
	}

	daily := make([]float64, span+1)
	for i := range daily {
		daily[i] = math.NaN()
	}
	for _, s := range scores {
		if d := dayIndex(first, s.Date); d >= 0 && d <= span {
			daily[d] = s.RawScore
		}
	}
	return stats.Interpolate(daily, stats.InterpolateLinear)
}

func dayIndex(first, date time.Time) int {
	return int(math.Round(date.Sub(first).Hours() / 24))
}
