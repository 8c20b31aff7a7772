package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ValidationResult is the outcome of checking a candidate entry before it is persisted
type ValidationResult struct {
	Valid  bool             `json:"valid"`
	Errors ValidationErrors `json:"errors,omitempty"`
}

// Err returns the collected errors, or nil when the candidate is valid
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return r.Errors
}

// Validator checks metric ranges and entry dates. Values are never clamped.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewValidator creates a validator that uses the wall clock for the future-date check
func NewValidator() *Validator {
	return NewValidatorWithClock(time.Now)
}

// NewValidatorWithClock creates a validator with an injectable clock
func NewValidatorWithClock(now func() time.Time) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v, now: now}
}

// ValidateEntry checks every metric is within [0,10] and the date is set and not in the future
func (v *Validator) ValidateEntry(candidate Entry) ValidationResult {
	var errs ValidationErrors

	if err := v.validate.Struct(candidate); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			errs = append(errs, FieldError{Field: "entry", Message: err.Error()})
		}
		for _, fe := range fieldErrs {
			errs = append(errs, FieldError{
				Field:   fe.Field(),
				Message: rangeMessage(fe),
			})
		}
	}

	switch {
	case candidate.Date.IsZero():
		errs = append(errs, FieldError{Field: "date", Message: "date is required"})
	case DateOnly(candidate.Date).After(DateOnly(v.now())):
		errs = append(errs, FieldError{Field: "date", Message: "date cannot be in the future"})
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func rangeMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("must be at least %s (got %v)", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be at most %s (got %v)", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}
