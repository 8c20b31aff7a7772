package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/sawpanic/allostat/internal/domain"
)

// DateLayout is the calendar date format accepted on input
const DateLayout = "2006-01-02"

// EntryInput is the wire shape of a submitted entry. Metrics are pointers so
// an omitted reading is reported instead of being read as zero.
type EntryInput struct {
	ID        string     `json:"id,omitempty"`
	Date      string     `json:"date"`
	Timestamp *time.Time `json:"timestamp,omitempty"`

	SleepRecovery       *float64 `json:"sleepRecovery"`
	PhysicalLoad        *float64 `json:"physicalLoad"`
	RecoveryFromLoad    *float64 `json:"recoveryFromLoad"`
	PsychologicalStress *float64 `json:"psychologicalStress"`
	EnergyLevel         *float64 `json:"energyLevel"`

	Note string `json:"note,omitempty"`
}

// ParseDate accepts YYYY-MM-DD or RFC3339 and returns the UTC calendar day
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD", s)
	}
	return domain.DateOnly(t), nil
}

// Entry converts the input, reporting unparseable dates and missing metrics.
// Range checks are left to the validator.
func (in EntryInput) Entry() (domain.Entry, domain.ValidationErrors) {
	var errs domain.ValidationErrors
	e := domain.Entry{ID: strings.TrimSpace(in.ID), Note: in.Note}

	if in.Date != "" {
		date, err := ParseDate(in.Date)
		if err != nil {
			errs = append(errs, domain.FieldError{Field: "date", Message: err.Error()})
		}
		e.Date = date
	}
	if in.Timestamp != nil {
		e.Timestamp = in.Timestamp.UTC()
	}

	readings := []struct {
		metric domain.Metric
		value  *float64
	}{
		{domain.SleepRecovery, in.SleepRecovery},
		{domain.PhysicalLoad, in.PhysicalLoad},
		{domain.RecoveryFromLoad, in.RecoveryFromLoad},
		{domain.PsychologicalStress, in.PsychologicalStress},
		{domain.EnergyLevel, in.EnergyLevel},
	}
	for _, r := range readings {
		if r.value == nil {
			errs = append(errs, domain.FieldError{
				Field:   r.metric.String(),
				Message: fmt.Sprintf("%s is required", r.metric),
			})
			continue
		}
		e = e.WithValue(r.metric, *r.value)
	}

	return e, errs
}

// InputFrom converts a stored entry back to its wire shape
func InputFrom(e domain.Entry) EntryInput {
	ts := e.Timestamp
	value := func(m domain.Metric) *float64 {
		v := e.Value(m)
		return &v
	}
	return EntryInput{
		ID:                  e.ID,
		Date:                e.Date.Format(DateLayout),
		Timestamp:           &ts,
		SleepRecovery:       value(domain.SleepRecovery),
		PhysicalLoad:        value(domain.PhysicalLoad),
		RecoveryFromLoad:    value(domain.RecoveryFromLoad),
		PsychologicalStress: value(domain.PsychologicalStress),
		EnergyLevel:         value(domain.EnergyLevel),
		Note:                e.Note,
	}
}
