package domain

import (
	"sort"
	"time"
)

// Entry is one daily wellbeing observation
type Entry struct {
	ID        string    `json:"id" db:"id"`
	Date      time.Time `json:"date" db:"entry_date"`
	Timestamp time.Time `json:"timestamp" db:"captured_at"`

	SleepRecovery       float64 `json:"sleepRecovery" db:"sleep_recovery" validate:"gte=0,lte=10"`
	PhysicalLoad        float64 `json:"physicalLoad" db:"physical_load" validate:"gte=0,lte=10"`
	RecoveryFromLoad    float64 `json:"recoveryFromLoad" db:"recovery_from_load" validate:"gte=0,lte=10"`
	PsychologicalStress float64 `json:"psychologicalStress" db:"psychological_stress" validate:"gte=0,lte=10"`
	EnergyLevel         float64 `json:"energyLevel" db:"energy_level" validate:"gte=0,lte=10"`

	Note string `json:"note,omitempty" db:"note"`
}

// Value returns the reading for metric m
func (e Entry) Value(m Metric) float64 {
	switch m {
	case SleepRecovery:
		return e.SleepRecovery
	case PhysicalLoad:
		return e.PhysicalLoad
	case RecoveryFromLoad:
		return e.RecoveryFromLoad
	case PsychologicalStress:
		return e.PsychologicalStress
	case EnergyLevel:
		return e.EnergyLevel
	default:
		return 0
	}
}

// WithValue returns a copy of e with metric m set to v
func (e Entry) WithValue(m Metric, v float64) Entry {
	switch m {
	case SleepRecovery:
		e.SleepRecovery = v
	case PhysicalLoad:
		e.PhysicalLoad = v
	case RecoveryFromLoad:
		e.RecoveryFromLoad = v
	case PsychologicalStress:
		e.PsychologicalStress = v
	case EnergyLevel:
		e.EnergyLevel = v
	}
	return e
}

// Series extracts the values of metric m across entries, in order
func Series(entries []Entry, m Metric) []float64 {
	values := make([]float64, len(entries))
	for i, e := range entries {
		values[i] = e.Value(m)
	}
	return values
}

// Before reports whether e sorts ahead of other in history order
func (e Entry) Before(other Entry) bool {
	if !e.Date.Equal(other.Date) {
		return e.Date.Before(other.Date)
	}
	return e.Timestamp.Before(other.Timestamp)
}

// SortEntries orders entries by date, then capture timestamp
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Before(entries[j])
	})
}

// IsOrdered reports whether entries are already in history order
func IsOrdered(entries []Entry) bool {
	for i := 1; i < len(entries); i++ {
		if entries[i].Before(entries[i-1]) {
			return false
		}
	}
	return true
}

// IndexOf returns the position of the entry with the given ID, or -1
func IndexOf(entries []Entry, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// DateOnly truncates t to midnight UTC of its calendar day
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
