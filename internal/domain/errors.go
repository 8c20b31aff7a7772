package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInsufficientData matches any *InsufficientDataError via errors.Is
	ErrInsufficientData = errors.New("insufficient data")
	ErrEntryNotFound    = errors.New("entry not found")
	ErrUnorderedHistory = errors.New("entry history is not ordered by date")
)

// InsufficientDataError reports that fewer entries exist than a computation needs.
// Callers should defer rather than retry.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: have %d entries, need %d", e.Have, e.Need)
}

// Is lets errors.Is(err, ErrInsufficientData) match
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// FieldError is a single field-level validation message
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects every problem found with a candidate entry
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, fe := range v {
		msgs[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}
