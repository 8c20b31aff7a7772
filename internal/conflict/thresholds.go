package conflict

import (
	"fmt"
)

// Thresholds holds every domain-tuned constant the detector uses.
// Values have no documented derivation and are kept as configuration for expert review.
type Thresholds struct {
	// Acute, evaluated against the latest entry
	HighLoad    float64 `yaml:"high_load"`    // Default: 7
	LowRecovery float64 `yaml:"low_recovery"` // Default: 4
	HighStress  float64 `yaml:"high_stress"`  // Default: 7
	LowSleep    float64 `yaml:"low_sleep"`    // Default: 4
	LowEnergy   float64 `yaml:"low_energy"`   // Default: 4

	// Acute severity bands on the combined factor sum
	HighSeveritySum   float64 `yaml:"high_severity_sum"`   // Default: 16
	MediumSeveritySum float64 `yaml:"medium_severity_sum"` // Default: 13

	// Chronic, evaluated against rolling-window means
	ChronicStress         float64 `yaml:"chronic_stress"`          // Default: 7
	ChronicSleep          float64 `yaml:"chronic_sleep"`           // Default: 4
	ChronicFatigue        float64 `yaml:"chronic_fatigue"`         // Default: 4
	BrainFogEnergy        float64 `yaml:"brain_fog_energy"`        // Default: 4.5
	BrainFogStress        float64 `yaml:"brain_fog_stress"`        // Default: 6
	SevereChronicStress   float64 `yaml:"severe_chronic_stress"`   // Default: 8
	SevereChronicSleep    float64 `yaml:"severe_chronic_sleep"`    // Default: 3
	SevereChronicFatigue  float64 `yaml:"severe_chronic_fatigue"`  // Default: 3
	SevereBrainFogEnergy  float64 `yaml:"severe_brain_fog_energy"` // Default: 3.5

	ChronicWindow  int `yaml:"chronic_window"`   // Default: 14 entries
	BrainFogWindow int `yaml:"brain_fog_window"` // Default: 60 entries
}

// DefaultThresholds returns the stock threshold set
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighLoad:    7,
		LowRecovery: 4,
		HighStress:  7,
		LowSleep:    4,
		LowEnergy:   4,

		HighSeveritySum:   16,
		MediumSeveritySum: 13,

		ChronicStress:        7,
		ChronicSleep:         4,
		ChronicFatigue:       4,
		BrainFogEnergy:       4.5,
		BrainFogStress:       6,
		SevereChronicStress:  8,
		SevereChronicSleep:   3,
		SevereChronicFatigue: 3,
		SevereBrainFogEnergy: 3.5,

		ChronicWindow:  14,
		BrainFogWindow: 60,
	}
}

// Validate checks that thresholds sit on the metric scale and windows are usable
func (t Thresholds) Validate() error {
	levels := map[string]float64{
		"high_load":               t.HighLoad,
		"low_recovery":            t.LowRecovery,
		"high_stress":             t.HighStress,
		"low_sleep":               t.LowSleep,
		"low_energy":              t.LowEnergy,
		"chronic_stress":          t.ChronicStress,
		"chronic_sleep":           t.ChronicSleep,
		"chronic_fatigue":         t.ChronicFatigue,
		"brain_fog_energy":        t.BrainFogEnergy,
		"brain_fog_stress":        t.BrainFogStress,
		"severe_chronic_stress":   t.SevereChronicStress,
		"severe_chronic_sleep":    t.SevereChronicSleep,
		"severe_chronic_fatigue":  t.SevereChronicFatigue,
		"severe_brain_fog_energy": t.SevereBrainFogEnergy,
	}
	for name, v := range levels {
		if v < 0 || v > 10 {
			return fmt.Errorf("threshold %s=%.2f outside metric scale [0,10]", name, v)
		}
	}

	if t.MediumSeveritySum > t.HighSeveritySum {
		return fmt.Errorf("medium_severity_sum %.2f exceeds high_severity_sum %.2f", t.MediumSeveritySum, t.HighSeveritySum)
	}
	if t.ChronicWindow < 2 {
		return fmt.Errorf("chronic_window must be at least 2, got %d", t.ChronicWindow)
	}
	if t.BrainFogWindow < t.ChronicWindow {
		return fmt.Errorf("brain_fog_window %d shorter than chronic_window %d", t.BrainFogWindow, t.ChronicWindow)
	}
	return nil
}
