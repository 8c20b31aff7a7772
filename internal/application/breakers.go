package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/allostat/internal/domain"
)

// Breaker names, one per repository
const (
	BreakerEntries   = "entries"
	BreakerScores    = "scores"
	BreakerConflicts = "conflicts"
	BreakerWeights   = "weights"
)

// BreakerConfig tunes the repository circuit breakers
type BreakerConfig struct {
	MaxRequests         uint32        `yaml:"max_requests"`         // Requests allowed while half-open
	Interval            time.Duration `yaml:"interval"`             // Closed-state count reset period
	Timeout             time.Duration `yaml:"timeout"`              // Open-state duration before probing
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"` // Failures that trip the breaker
}

// DefaultBreakerConfig returns the stock breaker settings
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// Validate checks the breaker settings
func (c BreakerConfig) Validate() error {
	if c.MaxRequests == 0 {
		return fmt.Errorf("max_requests must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.ConsecutiveFailures == 0 {
		return fmt.Errorf("consecutive_failures must be positive")
	}
	return nil
}

// BreakerObserver is notified when a breaker changes state.
// state is 0 closed, 1 half-open, 2 open.
type BreakerObserver interface {
	BreakerStateChanged(name string, state float64)
}

type breakerSet struct {
	breakers map[string]*gobreaker.CircuitBreaker
	mutex    sync.RWMutex
}

func newBreakerSet(config BreakerConfig, observer BreakerObserver) *breakerSet {
	set := &breakerSet{breakers: make(map[string]*gobreaker.CircuitBreaker)}
	for _, name := range []string{BreakerEntries, BreakerScores, BreakerConflicts, BreakerWeights} {
		set.breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: config.MaxRequests,
			Interval:    config.Interval,
			Timeout:     config.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.ConsecutiveFailures
			},
			IsSuccessful:  isSuccessful,
			OnStateChange: stateChangeHandler(observer),
		})
	}
	return set
}

// isSuccessful keeps expected outcomes from counting against the store
func isSuccessful(err error) bool {
	return err == nil ||
		errors.Is(err, domain.ErrEntryNotFound) ||
		errors.Is(err, context.Canceled)
}

func stateChangeHandler(observer BreakerObserver) func(string, gobreaker.State, gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		event := log.Info()
		if to == gobreaker.StateOpen {
			event = log.Warn()
		}
		event.
			Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Repository circuit breaker state change")

		if observer != nil {
			observer.BreakerStateChanged(name, stateValue(to))
		}
	}
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (s *breakerSet) get(name string) *gobreaker.CircuitBreaker {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.breakers[name]
}

// States reports every breaker's current state
func (s *breakerSet) States() map[string]string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	states := make(map[string]string, len(s.breakers))
	for name, b := range s.breakers {
		states[name] = b.State().String()
	}
	return states
}

// guard runs fn through the named breaker
func guard[T any](s *breakerSet, name string, fn func() (T, error)) (T, error) {
	var zero T
	out, err := s.get(name).Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%s repository unavailable: %w", name, err)
		}
		return zero, err
	}
	return out.(T), nil
}

// guardErr runs an error-only fn through the named breaker
func guardErr(s *breakerSet, name string, fn func() error) error {
	_, err := guard(s, name, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
