package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/allostat/internal/conflict"
	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/testutil"
	"github.com/sawpanic/allostat/internal/weights"
)

const prefix = "allostat:weights:"

func sampleState(t *testing.T) *domain.WeightState {
	t.Helper()
	window := testutil.Varied(14)
	ws, err := weights.NewEngine(weights.DefaultConfig()).Compute(window, conflict.NewDetector().Detect(window))
	require.NoError(t, err)
	return ws
}

func TestWeightCache_Get(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewWeightCache(db, prefix, time.Hour)
	ctx := context.Background()
	state := sampleState(t)

	t.Run("hit decodes state", func(t *testing.T) {
		data, err := json.Marshal(state)
		require.NoError(t, err)
		mock.ExpectGet(prefix + state.Window.Hash).SetVal(string(data))

		got, ok, err := c.Get(ctx, state.Window.Hash)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, state.NormalizedWeights, got.NormalizedWeights)
		assert.Equal(t, state.Metrics, got.Metrics)
		assert.Equal(t, state.Window, got.Window)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss is not an error", func(t *testing.T) {
		mock.ExpectGet(prefix + "missing").RedisNil()

		got, ok, err := c.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("backend error surfaces", func(t *testing.T) {
		mock.ExpectGet(prefix + "broken").SetErr(redis.TxFailedErr)

		_, ok, err := c.Get(ctx, "broken")
		assert.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("corrupt payload surfaces", func(t *testing.T) {
		mock.ExpectGet(prefix + "corrupt").SetVal("{not json")

		_, _, err := c.Get(ctx, "corrupt")
		assert.Error(t, err)
	})
}

func TestWeightCache_Put(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewWeightCache(db, prefix, time.Hour)
	state := sampleState(t)

	data, err := json.Marshal(state)
	require.NoError(t, err)
	mock.ExpectSet(prefix+state.Window.Hash, data, time.Hour).SetVal("OK")

	require.NoError(t, c.Put(context.Background(), state))
	assert.NoError(t, mock.ExpectationsWereMet())

	err = c.Put(context.Background(), &domain.WeightState{})
	assert.Error(t, err)
}

func TestWeightCache_Invalidate(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewWeightCache(db, prefix, time.Hour)

	mock.ExpectKeys(prefix + "*").SetVal([]string{prefix + "a", prefix + "b"})
	mock.ExpectDel(prefix+"a", prefix+"b").SetVal(2)
	require.NoError(t, c.Invalidate(context.Background()))

	mock.ExpectKeys(prefix + "*").SetVal([]string{})
	require.NoError(t, c.Invalidate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv("ALLOSTAT_REDIS_ADDR", "redis.internal:6380")
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)

	cfg.ApplyEnv()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "redis.internal:6380", cfg.Addr)
}
