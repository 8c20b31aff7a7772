package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/allostat/internal/application"
	"github.com/sawpanic/allostat/internal/cache"
	"github.com/sawpanic/allostat/internal/config"
	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/infrastructure/db"
	"github.com/sawpanic/allostat/internal/pipeline"
	"github.com/sawpanic/allostat/internal/testutil"
)

func newCachedApp(t *testing.T) (*app, redismock.ClientMock) {
	t.Helper()
	cfg := config.Default()
	manager, err := db.NewManager(db.Config{Enabled: false})
	require.NoError(t, err)

	client, mock := redismock.NewClientMock()
	a := &app{
		config:      cfg,
		manager:     manager,
		weightCache: cache.NewWeightCache(client, cfg.Redis.Prefix, time.Hour),
	}
	a.orchestrator = newOrchestrator(cfg)
	a.tracker = application.NewTracker(manager.Repository(), a.orchestrator, domain.NewValidator())
	return a, mock
}

func TestAppBackfill_ClearsWeightCache(t *testing.T) {
	a, mock := newCachedApp(t)
	ctx := context.Background()
	for _, e := range testutil.Varied(8) {
		_, err := a.tracker.AddEntry(ctx, e)
		require.NoError(t, err)
	}

	prefix := a.config.Redis.Prefix
	mock.ExpectKeys(prefix + "*").SetVal([]string{prefix + "stale"})
	mock.ExpectDel(prefix + "stale").SetVal(1)

	result, err := a.backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusScored, result.Status)
	assert.Len(t, result.Scores, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppBackfill_CacheFailureStopsBackfill(t *testing.T) {
	a, mock := newCachedApp(t)
	mock.ExpectKeys(a.config.Redis.Prefix + "*").SetErr(errors.New("connection refused"))

	_, err := a.backfill(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to clear weight cache")
}
