package domain

import (
	"time"

	"github.com/sawpanic/allostat/internal/smoothing"
)

// MetricWeight is the weight breakdown for a single metric within a window
type MetricWeight struct {
	ImpactWeight           float64       `json:"impactWeight"`
	VolatilityWeight       float64       `json:"volatilityWeight"`
	ImbalanceWeight        float64       `json:"imbalanceWeight"`
	CombinedWeight         float64       `json:"combinedWeight"`
	Correlation            float64       `json:"correlation"`
	StdDev                 float64       `json:"stdDev"`
	ActiveConflictPatterns []PatternName `json:"activeConflictPatterns"`
}

// DataWindow describes the entries a WeightState was computed from
type DataWindow struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	EntryCount int       `json:"entryCount"`
	Hash       string    `json:"hash"`
}

// WeightState is the adaptive weight vector for one computation window
type WeightState struct {
	Metrics           map[Metric]MetricWeight `json:"metrics"`
	NormalizedWeights map[Metric]float64      `json:"normalizedWeights"`
	Window            DataWindow              `json:"dataWindow"`
}

// ScoreEntry is the sALI result for one entry. Never mutated after creation.
type ScoreEntry struct {
	EntryID         string              `json:"entryId" db:"entry_id"`
	Date            time.Time           `json:"date" db:"entry_date"`
	RawScore        float64             `json:"rawScore" db:"raw_score"`
	EMAShort        float64             `json:"emaShort" db:"ema_short"`
	EMALong         float64             `json:"emaLong" db:"ema_long"`
	Components      map[Metric]float64  `json:"components"`
	WeightsSnapshot map[Metric]float64  `json:"weightsSnapshot"`
	Trend           smoothing.Trend     `json:"trend" db:"trend"`
	Crossover       smoothing.Crossover `json:"crossover" db:"crossover"`
}

// EMAPair returns the smoothed trends as a smoothing pair
func (s *ScoreEntry) EMAPair() smoothing.Pair {
	return smoothing.Pair{Short: s.EMAShort, Long: s.EMALong}
}

// Contribution returns weight x oriented component for metric m
func (s *ScoreEntry) Contribution(m Metric) float64 {
	return s.WeightsSnapshot[m] * s.Components[m]
}

// ConflictType separates single-day from sustained patterns
type ConflictType string

const (
	ConflictAcute   ConflictType = "acute"
	ConflictChronic ConflictType = "chronic"
)

// PatternName names one of the eight detectable conflict patterns
type PatternName string

const (
	PatternHighLoadLowRecovery PatternName = "high_load_low_recovery"
	PatternPoorSleepHighStress PatternName = "poor_sleep_high_stress"
	PatternOverwork            PatternName = "overwork"
	PatternFatigueWithLoad     PatternName = "fatigue_with_load"

	PatternProlongedStress     PatternName = "prolonged_stress"
	PatternChronicSleepDeficit PatternName = "chronic_sleep_deficit"
	PatternProlongedFatigue    PatternName = "prolonged_fatigue"
	PatternBrainFog            PatternName = "brain_fog"
)

// Severity grades a conflict pattern
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ConflictPattern is one detected risk condition
type ConflictPattern struct {
	ID              string       `json:"id"`
	Type            ConflictType `json:"type"`
	Pattern         PatternName  `json:"pattern"`
	Severity        Severity     `json:"severity"`
	AffectedMetrics []Metric     `json:"affectedMetrics"`
	DetectedAt      time.Time    `json:"detectedAt"`
	DurationDays    int          `json:"duration,omitempty"`
	Description     string       `json:"description"`
}

// Affects reports whether the pattern names metric m
func (c ConflictPattern) Affects(m Metric) bool {
	for _, am := range c.AffectedMetrics {
		if am == m {
			return true
		}
	}
	return false
}
