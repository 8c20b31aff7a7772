package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/allostat/internal/application"
	"github.com/sawpanic/allostat/internal/cache"
	"github.com/sawpanic/allostat/internal/config"
	"github.com/sawpanic/allostat/internal/conflict"
	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/infrastructure/db"
	"github.com/sawpanic/allostat/internal/metrics"
	"github.com/sawpanic/allostat/internal/pipeline"
	"github.com/sawpanic/allostat/internal/score"
	"github.com/sawpanic/allostat/internal/weights"
)

// app holds the wired service graph for commands that touch the store
type app struct {
	config       *config.Config
	manager      *db.Manager
	registry     *metrics.Registry
	redis        *redis.Client
	weightCache  *cache.WeightCache
	orchestrator *pipeline.Orchestrator
	tracker      *application.Tracker
}

// newOrchestrator builds the engines from the engine and conflict sections
func newOrchestrator(cfg *config.Config, opts ...pipeline.Option) *pipeline.Orchestrator {
	detector := conflict.NewDetectorWithThresholds(cfg.Conflicts)
	return pipeline.NewOrchestrator(
		cfg.Engine.Pipeline,
		weights.NewEngine(cfg.Engine.Weights),
		score.NewEngine(cfg.Engine.Smoothing),
		detector,
		opts...,
	)
}

// openApp connects the store and optional Redis cache and builds the tracker
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	manager, err := db.NewManager(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	a := &app{config: cfg, manager: manager, registry: metrics.NewRegistry()}
	opts := []pipeline.Option{pipeline.WithRecorder(a.registry)}

	if cfg.Redis.Enabled {
		client, err := cache.Dial(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, using in-process weight cache")
		} else {
			a.redis = client
			a.weightCache = cache.NewWeightCache(client, cfg.Redis.Prefix, cfg.Redis.TTL)
			opts = append(opts, pipeline.WithCache(a.weightCache))
		}
	}

	a.orchestrator = newOrchestrator(cfg, opts...)
	a.tracker = application.NewTracker(
		manager.Repository(),
		a.orchestrator,
		domain.NewValidator(),
		application.WithBreakers(cfg.Breaker, a.registry),
	)

	log.Info().
		Bool("postgres", manager.IsEnabled()).
		Bool("redis", a.redis != nil).
		Int("min_entries", a.orchestrator.MinEntries()).
		Msg("Tracker ready")
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
	if err := a.manager.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close store")
	}
}

// readEntriesFile loads a JSON array of entries. Entries without an ID are
// keyed by their date; a missing timestamp defaults to the date.
func readEntriesFile(path string) ([]domain.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entries %s: %w", path, err)
	}

	var inputs []application.EntryInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("failed to parse entries %s: %w", path, err)
	}

	var errs domain.ValidationErrors
	entries := make([]domain.Entry, 0, len(inputs))
	seen := make(map[string]int, len(inputs))
	for i, in := range inputs {
		entry, fieldErrs := in.Entry()
		for _, fe := range fieldErrs {
			errs = append(errs, domain.FieldError{Field: fmt.Sprintf("[%d].%s", i, fe.Field), Message: fe.Message})
		}
		if len(fieldErrs) > 0 {
			continue
		}

		if entry.ID == "" {
			entry.ID = entry.Date.Format(application.DateLayout)
			if n := seen[entry.ID]; n > 0 {
				entry.ID = fmt.Sprintf("%s-%d", entry.ID, n)
			}
		}
		seen[entry.Date.Format(application.DateLayout)]++
		if entry.Timestamp.IsZero() {
			entry.Timestamp = entry.Date
		}
		entries = append(entries, entry)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return entries, nil
}

// validateAll runs range and date checks over every entry
func validateAll(v *domain.Validator, entries []domain.Entry) domain.ValidationErrors {
	var errs domain.ValidationErrors
	for _, e := range entries {
		result := v.ValidateEntry(e)
		for _, fe := range result.Errors {
			errs = append(errs, domain.FieldError{Field: e.ID + "." + fe.Field, Message: fe.Message})
		}
	}
	return errs
}
