package pipeline

import "math"

// Status is the outcome of one orchestration call
type Status string

const (
	StatusScored           Status = "scored"
	StatusRefreshed        Status = "refreshed" // weights and conflicts recomputed, no entry scored
	StatusInsufficientData Status = "insufficient_data"
)

// Progress reports how close a history is to the minimum-data gate
type Progress struct {
	CanCalculate       bool    `json:"canCalculate"`
	EntriesNeeded      int     `json:"entriesNeeded"`
	ProgressPercentage float64 `json:"progressPercentage"`
}

// CalculationStatus is a pure function of the entry count and the minimum
func CalculationStatus(entryCount, minEntries int) Progress {
	if minEntries <= 0 {
		return Progress{CanCalculate: true, ProgressPercentage: 100}
	}
	if entryCount < 0 {
		entryCount = 0
	}

	needed := minEntries - entryCount
	if needed < 0 {
		needed = 0
	}
	pct := math.Min(100, math.Round(float64(entryCount)/float64(minEntries)*100))

	return Progress{
		CanCalculate:       needed == 0,
		EntriesNeeded:      needed,
		ProgressPercentage: pct,
	}
}
