// Package conflict detects acute and chronic strain patterns in an entry history.
//
// Detection is a pure function of the history: the full pattern set is
// regenerated on every call and there is no incremental state.
package conflict

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/stats"
)

// Detector evaluates the acute and chronic rule tables
type Detector struct {
	thresholds Thresholds
	newID      func() string
}

// NewDetector creates a detector with default thresholds
func NewDetector() *Detector {
	return NewDetectorWithThresholds(DefaultThresholds())
}

// NewDetectorWithThresholds creates a detector with custom thresholds
func NewDetectorWithThresholds(t Thresholds) *Detector {
	return &Detector{
		thresholds: t,
		newID:      uuid.NewString,
	}
}

// Thresholds returns the active threshold set
func (d *Detector) Thresholds() Thresholds {
	return d.thresholds
}

// Detect returns acute patterns for the latest entry followed by chronic patterns
// over rolling windows. The entries must be ordered by date.
func (d *Detector) Detect(entries []domain.Entry) []domain.ConflictPattern {
	if len(entries) == 0 {
		return []domain.ConflictPattern{}
	}

	patterns := d.detectAcute(entries[len(entries)-1])
	patterns = append(patterns, d.detectChronic(entries)...)
	return patterns
}

// ActiveFor returns the pattern names among patterns that name metric m
func ActiveFor(patterns []domain.ConflictPattern, m domain.Metric) []domain.PatternName {
	names := make([]domain.PatternName, 0)
	for _, p := range patterns {
		if p.Affects(m) {
			names = append(names, p.Pattern)
		}
	}
	return names
}

type acuteRule struct {
	pattern  domain.PatternName
	affected []domain.Metric
	triggers func(e domain.Entry, t Thresholds) bool
	// factors returns the two contributing values, with low-triggered ones inverted
	factors  func(e domain.Entry) (float64, float64)
	describe string
}

var acuteRules = []acuteRule{
	{
		pattern:  domain.PatternHighLoadLowRecovery,
		affected: []domain.Metric{domain.PhysicalLoad, domain.RecoveryFromLoad},
		triggers: func(e domain.Entry, t Thresholds) bool {
			return e.PhysicalLoad > t.HighLoad && e.RecoveryFromLoad < t.LowRecovery
		},
		factors: func(e domain.Entry) (float64, float64) {
			return e.PhysicalLoad, invert(e.RecoveryFromLoad)
		},
		describe: "High physical load (%.1f) with low recovery (%.1f)",
	},
	{
		pattern:  domain.PatternPoorSleepHighStress,
		affected: []domain.Metric{domain.PsychologicalStress, domain.SleepRecovery},
		triggers: func(e domain.Entry, t Thresholds) bool {
			return e.PsychologicalStress > t.HighStress && e.SleepRecovery < t.LowSleep
		},
		factors: func(e domain.Entry) (float64, float64) {
			return e.PsychologicalStress, invert(e.SleepRecovery)
		},
		describe: "High stress (%.1f) with poor sleep (%.1f)",
	},
	{
		pattern:  domain.PatternOverwork,
		affected: []domain.Metric{domain.PhysicalLoad, domain.PsychologicalStress},
		triggers: func(e domain.Entry, t Thresholds) bool {
			return e.PhysicalLoad > t.HighLoad && e.PsychologicalStress > t.HighStress
		},
		factors: func(e domain.Entry) (float64, float64) {
			return e.PhysicalLoad, e.PsychologicalStress
		},
		describe: "High physical load (%.1f) combined with high stress (%.1f)",
	},
	{
		pattern:  domain.PatternFatigueWithLoad,
		affected: []domain.Metric{domain.EnergyLevel, domain.PhysicalLoad},
		triggers: func(e domain.Entry, t Thresholds) bool {
			return e.EnergyLevel < t.LowEnergy && e.PhysicalLoad > t.HighLoad
		},
		factors: func(e domain.Entry) (float64, float64) {
			return invert(e.EnergyLevel), e.PhysicalLoad
		},
		describe: "Low energy (%.1f) while carrying high load (%.1f)",
	},
}

func invert(v float64) float64 {
	return domain.MetricMax - v
}

func (d *Detector) detectAcute(latest domain.Entry) []domain.ConflictPattern {
	patterns := make([]domain.ConflictPattern, 0, len(acuteRules))
	for _, rule := range acuteRules {
		if !rule.triggers(latest, d.thresholds) {
			continue
		}
		a, b := rule.factors(latest)
		patterns = append(patterns, domain.ConflictPattern{
			ID:              d.newID(),
			Type:            domain.ConflictAcute,
			Pattern:         rule.pattern,
			Severity:        d.acuteSeverity(a + b),
			AffectedMetrics: append([]domain.Metric(nil), rule.affected...),
			DetectedAt:      latest.Date,
			Description: fmt.Sprintf(rule.describe,
				latest.Value(rule.affected[0]), latest.Value(rule.affected[1])),
		})
	}
	return patterns
}

func (d *Detector) acuteSeverity(combined float64) domain.Severity {
	switch {
	case combined >= d.thresholds.HighSeveritySum:
		return domain.SeverityHigh
	case combined >= d.thresholds.MediumSeveritySum:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func (d *Detector) detectChronic(entries []domain.Entry) []domain.ConflictPattern {
	patterns := make([]domain.ConflictPattern, 0)
	t := d.thresholds
	if len(entries) < t.ChronicWindow {
		return patterns
	}

	latest := entries[len(entries)-1]
	window := entries[len(entries)-t.ChronicWindow:]

	stress := stats.Mean(domain.Series(window, domain.PsychologicalStress))
	if stress > t.ChronicStress {
		patterns = append(patterns, d.chronic(latest, domain.PatternProlongedStress, t.ChronicWindow,
			escalate(stress > t.SevereChronicStress),
			[]domain.Metric{domain.PsychologicalStress},
			fmt.Sprintf("Average stress %.1f over the last %d days", stress, t.ChronicWindow)))
	}

	sleep := stats.Mean(domain.Series(window, domain.SleepRecovery))
	if sleep < t.ChronicSleep {
		patterns = append(patterns, d.chronic(latest, domain.PatternChronicSleepDeficit, t.ChronicWindow,
			escalate(sleep < t.SevereChronicSleep),
			[]domain.Metric{domain.SleepRecovery},
			fmt.Sprintf("Average sleep recovery %.1f over the last %d days", sleep, t.ChronicWindow)))
	}

	energy := stats.Mean(domain.Series(window, domain.EnergyLevel))
	if energy < t.ChronicFatigue {
		patterns = append(patterns, d.chronic(latest, domain.PatternProlongedFatigue, t.ChronicWindow,
			escalate(energy < t.SevereChronicFatigue),
			[]domain.Metric{domain.EnergyLevel},
			fmt.Sprintf("Average energy %.1f over the last %d days", energy, t.ChronicWindow)))
	}

	if len(entries) >= t.BrainFogWindow {
		long := entries[len(entries)-t.BrainFogWindow:]
		fogEnergy := stats.Mean(domain.Series(long, domain.EnergyLevel))
		fogStress := stats.Mean(domain.Series(long, domain.PsychologicalStress))
		if fogEnergy < t.BrainFogEnergy && fogStress > t.BrainFogStress {
			patterns = append(patterns, d.chronic(latest, domain.PatternBrainFog, t.BrainFogWindow,
				escalate(fogEnergy < t.SevereBrainFogEnergy),
				[]domain.Metric{domain.EnergyLevel, domain.PsychologicalStress},
				fmt.Sprintf("Low energy (%.1f) and elevated stress (%.1f) sustained over %d days",
					fogEnergy, fogStress, t.BrainFogWindow)))
		}
	}

	return patterns
}

func escalate(severe bool) domain.Severity {
	if severe {
		return domain.SeverityHigh
	}
	return domain.SeverityMedium
}

func (d *Detector) chronic(latest domain.Entry, name domain.PatternName, days int, sev domain.Severity, affected []domain.Metric, desc string) domain.ConflictPattern {
	return domain.ConflictPattern{
		ID:              d.newID(),
		Type:            domain.ConflictChronic,
		Pattern:         name,
		Severity:        sev,
		AffectedMetrics: affected,
		DetectedAt:      latest.Date,
		DurationDays:    days,
		Description:     desc,
	}
}
