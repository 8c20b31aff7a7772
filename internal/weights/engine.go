// Package weights adapts per-metric weights from correlation, volatility and conflict signals.
package weights

import (
	"fmt"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/sawpanic/allostat/internal/conflict"
	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/stats"
)

// fingerprintVersion is bumped whenever the weight formulas change
const fingerprintVersion = 2

const (
	DefaultMinEntries        = 7
	DefaultVolatilityDivisor = 3.0
	DefaultImbalanceStep     = 0.5
)

// Config tunes the weight adaptation
type Config struct {
	MinEntries        int     `yaml:"min_entries"`        // Default: 7
	VolatilityDivisor float64 `yaml:"volatility_divisor"` // Default: 3 (stdDev that earns full volatility weight)
	ImbalanceStep     float64 `yaml:"imbalance_step"`     // Default: 0.5 per active pattern
}

// DefaultConfig returns the stock weight configuration
func DefaultConfig() Config {
	return Config{
		MinEntries:        DefaultMinEntries,
		VolatilityDivisor: DefaultVolatilityDivisor,
		ImbalanceStep:     DefaultImbalanceStep,
	}
}

// Validate checks the configuration is usable
func (c Config) Validate() error {
	if c.MinEntries < 2 {
		return fmt.Errorf("min_entries must be at least 2, got %d", c.MinEntries)
	}
	if c.VolatilityDivisor <= 0 {
		return fmt.Errorf("volatility_divisor must be positive, got %.3f", c.VolatilityDivisor)
	}
	if c.ImbalanceStep < 0 {
		return fmt.Errorf("imbalance_step cannot be negative, got %.3f", c.ImbalanceStep)
	}
	return nil
}

// Engine computes WeightState values for entry windows
type Engine struct {
	config Config
}

// NewEngine creates a weight engine
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.config
}

// Compute derives the weight state for a window of ordered entries. active is
// the conflict set detected over the full history ending at the window's last
// entry; it drives the imbalance weights. The same inputs always yield the
// same normalized weights.
func (e *Engine) Compute(window []domain.Entry, active []domain.ConflictPattern) (*domain.WeightState, error) {
	if len(window) < e.config.MinEntries {
		return nil, &domain.InsufficientDataError{Have: len(window), Need: e.config.MinEntries}
	}

	anchor := domain.Series(window, domain.AnchorMetric)

	state := &domain.WeightState{
		Metrics:           make(map[domain.Metric]domain.MetricWeight, domain.MetricCount),
		NormalizedWeights: make(map[domain.Metric]float64, domain.MetricCount),
		Window: domain.DataWindow{
			Start:      window[0].Date,
			End:        window[len(window)-1].Date,
			EntryCount: len(window),
			Hash:       e.Fingerprint(window, active),
		},
	}

	for _, m := range domain.WeightedMetrics {
		series := domain.Series(window, m)

		rho, err := stats.Spearman(series, anchor)
		if err != nil {
			return nil, fmt.Errorf("correlating %s with %s: %w", m, domain.AnchorMetric, err)
		}
		sd := stats.StdDev(series)
		patterns := conflict.ActiveFor(active, m)

		mw := domain.MetricWeight{
			ImpactWeight:           ImpactWeight(rho),
			VolatilityWeight:       e.volatilityWeight(sd),
			ImbalanceWeight:        e.imbalanceWeight(len(patterns)),
			Correlation:            rho,
			StdDev:                 sd,
			ActiveConflictPatterns: patterns,
		}
		mw.CombinedWeight = mw.ImpactWeight * mw.VolatilityWeight * mw.ImbalanceWeight
		state.Metrics[m] = mw
	}

	state.Metrics[domain.AnchorMetric] = domain.MetricWeight{
		ImpactWeight:           1,
		VolatilityWeight:       1,
		ImbalanceWeight:        1,
		CombinedWeight:         1,
		Correlation:            1,
		StdDev:                 stats.StdDev(anchor),
		ActiveConflictPatterns: conflict.ActiveFor(active, domain.AnchorMetric),
	}

	state.NormalizedWeights = Normalize(state.Metrics)
	return state, nil
}

// ImpactWeight rescales correlation magnitude from [0,1] to [0.5,1]
func ImpactWeight(rho float64) float64 {
	return (math.Abs(rho) + 1) / 2
}

func (e *Engine) volatilityWeight(sd float64) float64 {
	return math.Min(1, sd/e.config.VolatilityDivisor)
}

func (e *Engine) imbalanceWeight(activePatterns int) float64 {
	return 1 + e.config.ImbalanceStep*float64(activePatterns)
}

// Normalize rescales the combined weights so they sum to 1.
// The anchor's fixed weight of 1 keeps the total positive.
func Normalize(metrics map[domain.Metric]domain.MetricWeight) map[domain.Metric]float64 {
	var total float64
	for _, m := range domain.AllMetrics {
		total += metrics[m].CombinedWeight
	}

	normalized := make(map[domain.Metric]float64, domain.MetricCount)
	if total == 0 {
		for _, m := range domain.AllMetrics {
			normalized[m] = 1.0 / domain.MetricCount
		}
		return normalized
	}
	for _, m := range domain.AllMetrics {
		normalized[m] = metrics[m].CombinedWeight / total
	}
	return normalized
}

// Sum adds the normalized weights in canonical metric order
func Sum(normalized map[domain.Metric]float64) float64 {
	var total float64
	for _, m := range domain.AllMetrics {
		total += normalized[m]
	}
	return total
}

// Fingerprint hashes everything a WeightState depends on: the engine
// configuration, the identity and readings of each window entry in order, and
// the active pattern names. Notes and capture times do not contribute.
func (e *Engine) Fingerprint(window []domain.Entry, active []domain.ConflictPattern) string {
	d := xxhash.New()
	buf := make([]byte, 0, 64)

	buf = append(buf, 'v')
	buf = strconv.AppendInt(buf, fingerprintVersion, 10)
	buf = append(buf, '|')
	buf = strconv.AppendInt(buf, int64(e.config.MinEntries), 10)
	buf = append(buf, '|')
	buf = strconv.AppendFloat(buf, e.config.VolatilityDivisor, 'g', -1, 64)
	buf = append(buf, '|')
	buf = strconv.AppendFloat(buf, e.config.ImbalanceStep, 'g', -1, 64)
	buf = append(buf, ';')
	_, _ = d.Write(buf)

	for _, en := range window {
		buf = buf[:0]
		buf = append(buf, en.ID...)
		buf = append(buf, '|')
		buf = strconv.AppendInt(buf, en.Date.Unix(), 10)
		for _, m := range domain.AllMetrics {
			buf = append(buf, '|')
			buf = strconv.AppendFloat(buf, en.Value(m), 'g', -1, 64)
		}
		buf = append(buf, ';')
		_, _ = d.Write(buf)
	}

	for _, p := range active {
		buf = append(buf[:0], "p:"...)
		buf = append(buf, p.Pattern...)
		buf = append(buf, ';')
		_, _ = d.Write(buf)
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
