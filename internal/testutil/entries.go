// Package testutil builds entry histories for tests across the engine packages.
package testutil

import (
	"fmt"
	"time"

	"github.com/sawpanic/allostat/internal/domain"
)

// Start is the date of the first generated entry
var Start = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

// Moderate returns an entry with every metric at 5
func Moderate(day int) domain.Entry {
	date := Start.AddDate(0, 0, day)
	return domain.Entry{
		ID:                  fmt.Sprintf("entry-%03d", day),
		Date:                date,
		Timestamp:           date.Add(20 * time.Hour),
		SleepRecovery:       5,
		PhysicalLoad:        5,
		RecoveryFromLoad:    5,
		PsychologicalStress: 5,
		EnergyLevel:         5,
	}
}

// History builds n consecutive daily entries; mutate may adjust each one
func History(n int, mutate func(i int, e *domain.Entry)) []domain.Entry {
	entries := make([]domain.Entry, n)
	for i := range entries {
		entries[i] = Moderate(i)
		if mutate != nil {
			mutate(i, &entries[i])
		}
	}
	return entries
}

// Varied builds n entries whose metrics move on distinct deterministic cycles,
// so every metric has non-zero variance and no perfect correlation
func Varied(n int) []domain.Entry {
	return History(n, func(i int, e *domain.Entry) {
		e.SleepRecovery = float64(3 + (i*3)%6)
		e.PhysicalLoad = float64(2 + (i*5)%7)
		e.RecoveryFromLoad = float64(4 + (i*2)%5)
		e.PsychologicalStress = float64(1 + (i*7)%8)
		e.EnergyLevel = float64(2 + (i*4)%7)
	})
}
