package domain

import (
	"fmt"
)

// Metric identifies one of the five self-reported daily measurements
type Metric int

const (
	SleepRecovery Metric = iota
	PhysicalLoad
	RecoveryFromLoad
	PsychologicalStress
	EnergyLevel
)

// AnchorMetric is the fixed reference every other metric is correlated against
const AnchorMetric = EnergyLevel

// MetricCount is the number of tracked metrics
const MetricCount = 5

// AllMetrics lists every metric in canonical order
var AllMetrics = [MetricCount]Metric{
	SleepRecovery,
	PhysicalLoad,
	RecoveryFromLoad,
	PsychologicalStress,
	EnergyLevel,
}

// WeightedMetrics lists the four metrics that compete for adaptive weight
var WeightedMetrics = [MetricCount - 1]Metric{
	SleepRecovery,
	PhysicalLoad,
	RecoveryFromLoad,
	PsychologicalStress,
}

// MetricMin and MetricMax bound every metric value
const (
	MetricMin = 0.0
	MetricMax = 10.0
)

func (m Metric) String() string {
	switch m {
	case SleepRecovery:
		return "sleepRecovery"
	case PhysicalLoad:
		return "physicalLoad"
	case RecoveryFromLoad:
		return "recoveryFromLoad"
	case PsychologicalStress:
		return "psychologicalStress"
	case EnergyLevel:
		return "energyLevel"
	default:
		return "unknown"
	}
}

// HigherIsBetter reports whether a high reading means less strain
func (m Metric) HigherIsBetter() bool {
	switch m {
	case SleepRecovery, RecoveryFromLoad, EnergyLevel:
		return true
	default:
		return false
	}
}

// IsAnchor reports whether m is the reference metric
func (m Metric) IsAnchor() bool {
	return m == AnchorMetric
}

// Valid reports whether m is a known metric
func (m Metric) Valid() bool {
	return m >= SleepRecovery && m <= EnergyLevel
}

// ParseMetric converts a metric name back to its enumeration value
func ParseMetric(name string) (Metric, error) {
	for _, m := range AllMetrics {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown metric: %q", name)
}

// MarshalText lets metrics serve as JSON object keys
func (m Metric) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("cannot marshal metric %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *Metric) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
