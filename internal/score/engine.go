// Package score computes the sALI composite strain index for a single entry.
package score

import (
	"fmt"
	"math"

	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/smoothing"
	"github.com/sawpanic/allostat/internal/stats"
)

// weightSumTolerance bounds how far a weight snapshot may drift from 1.0
const weightSumTolerance = 1e-6

// Engine turns an entry and a weight state into a chained ScoreEntry
type Engine struct {
	tracker smoothing.Tracker
}

// NewEngine creates a score engine with the given EMA tracker
func NewEngine(tracker smoothing.Tracker) *Engine {
	return &Engine{tracker: tracker}
}

// Tracker returns the EMA configuration in use
func (e *Engine) Tracker() smoothing.Tracker {
	return e.tracker
}

// Orient maps a raw 0-10 reading onto 0-1 strain: good-when-high metrics are
// inverted, bad-when-high metrics map directly
func Orient(m domain.Metric, value float64) float64 {
	if m.HigherIsBetter() {
		return (domain.MetricMax - value) / domain.MetricMax
	}
	return value / domain.MetricMax
}

// Components returns the oriented value of every metric for an entry
func Components(entry domain.Entry) map[domain.Metric]float64 {
	components := make(map[domain.Metric]float64, domain.MetricCount)
	for _, m := range domain.AllMetrics {
		components[m] = Orient(m, entry.Value(m))
	}
	return components
}

// Score computes the raw score and both EMA trends for entry. prev is the most
// recent earlier ScoreEntry, or nil for the first scored entry.
func (e *Engine) Score(entry domain.Entry, ws *domain.WeightState, prev *domain.ScoreEntry) (*domain.ScoreEntry, error) {
	if ws == nil {
		return nil, fmt.Errorf("scoring entry %s: no weight state", entry.ID)
	}
	if err := checkWeights(ws.NormalizedWeights); err != nil {
		return nil, fmt.Errorf("scoring entry %s: %w", entry.ID, err)
	}

	components := Components(entry)
	snapshot := make(map[domain.Metric]float64, domain.MetricCount)

	var raw float64
	for _, m := range domain.AllMetrics {
		w := ws.NormalizedWeights[m]
		snapshot[m] = w
		raw += w * components[m]
	}
	raw = stats.Clamp(raw, 0, 1)

	var prevPair *smoothing.Pair
	if prev != nil {
		p := prev.EMAPair()
		prevPair = &p
	}
	pair := e.tracker.Step(prevPair, raw)

	result := &domain.ScoreEntry{
		EntryID:         entry.ID,
		Date:            entry.Date,
		RawScore:        raw,
		EMAShort:        pair.Short,
		EMALong:         pair.Long,
		Components:      components,
		WeightsSnapshot: snapshot,
		Trend:           smoothing.TrendStable,
		Crossover:       smoothing.CrossoverNone,
	}
	if prevPair != nil {
		result.Trend = e.tracker.ClassifyTrend(*prevPair, pair)
		result.Crossover = smoothing.DetectCrossover(*prevPair, pair)
	}
	return result, nil
}

func checkWeights(normalized map[domain.Metric]float64) error {
	var total float64
	for _, m := range domain.AllMetrics {
		w, ok := normalized[m]
		if !ok {
			return fmt.Errorf("missing weight for %s", m)
		}
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("invalid weight %.4f for %s", w, m)
		}
		total += w
	}
	if math.Abs(total-1) > weightSumTolerance {
		return fmt.Errorf("weights sum to %.6f, expected 1.000", total)
	}
	return nil
}
