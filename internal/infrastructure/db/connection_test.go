package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 10, config.MaxOpenConns)
	assert.Equal(t, 5, config.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, config.ConnMaxLifetime)
	assert.Equal(t, 5*time.Minute, config.ConnMaxIdleTime)
	assert.Equal(t, 30*time.Second, config.QueryTimeout)
	assert.False(t, config.Enabled)
	assert.NoError(t, config.Validate())
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv("ALLOSTAT_PG_DSN", "postgres://allostat@localhost/allostat?sslmode=disable")
	t.Setenv("ALLOSTAT_PG_QUERY_TIMEOUT", "5s")

	config := DefaultConfig()
	config.ApplyEnv()

	assert.True(t, config.Enabled)
	assert.Equal(t, "postgres://allostat@localhost/allostat?sslmode=disable", config.DSN)
	assert.Equal(t, 5*time.Second, config.QueryTimeout)
}

func TestConfig_Validate(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = true
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.MaxIdleConns = 20
	assert.Error(t, config.Validate())
}

func TestNewManager_Disabled(t *testing.T) {
	manager, err := NewManager(Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, manager.IsEnabled())
	assert.Nil(t, manager.DB())
	require.NotNil(t, manager.Repository())
	assert.NotNil(t, manager.Repository().Entries)
	assert.NoError(t, manager.Migrate(context.Background()))

	check := manager.Health().Health(context.Background())
	assert.True(t, check.Healthy)
	assert.Contains(t, check.Errors[0], "disabled")
	assert.NoError(t, manager.Health().Ping(context.Background()))
	assert.NoError(t, manager.Close())
}

func TestNewManager_MissingDSN(t *testing.T) {
	_, err := NewManager(Config{Enabled: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN is required")
}

func TestHealthChecker_Enabled(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()

	config := DefaultConfig()
	config.Enabled = true
	manager := NewManagerWithDB(sqlx.NewDb(mockDB, "postgres"), config)
	assert.True(t, manager.IsEnabled())

	mock.ExpectPing()
	check := manager.Health().Health(context.Background())
	assert.True(t, check.Healthy)
	assert.Empty(t, check.Errors)
	assert.Contains(t, check.ConnectionPool, "max_open")

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	check = manager.Health().Health(context.Background())
	assert.False(t, check.Healthy)
	require.Len(t, check.Errors, 1)
	assert.Contains(t, check.Errors[0], "ping failed")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_Migrate(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	config := DefaultConfig()
	config.Enabled = true
	manager := NewManagerWithDB(sqlx.NewDb(mockDB, "postgres"), config)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS entries").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, manager.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
