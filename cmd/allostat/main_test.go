package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/allostat/internal/application"
	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/explain"
	"github.com/sawpanic/allostat/internal/pipeline"
	"github.com/sawpanic/allostat/internal/testutil"
)

func writeEntries(t *testing.T, inputs interface{}) string {
	t.Helper()
	data, err := json.Marshal(inputs)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "entries.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func inputs(entries []domain.Entry) []application.EntryInput {
	out := make([]application.EntryInput, len(entries))
	for i, e := range entries {
		out[i] = application.InputFrom(e)
	}
	return out
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ALLOSTAT_PG_DSN", "")
	t.Setenv("ALLOSTAT_REDIS_ADDR", "")
	t.Setenv("ALLOSTAT_LOG_LEVEL", "")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{
		"--config", filepath.Join(t.TempDir(), "absent.yaml"),
		"--log-level", "error",
	}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestScore_JSON(t *testing.T) {
	history := testutil.Varied(8)
	// out of order on disk
	history[2], history[5] = history[5], history[2]
	path := writeEntries(t, inputs(history))

	out, err := run(t, "score", "--format", "json", "--file", path)
	require.NoError(t, err)

	var result pipeline.BackfillResult
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	assert.Equal(t, pipeline.StatusScored, result.Status)
	require.Len(t, result.Scores, 2)
	assert.Equal(t, "entry-006", result.Scores[0].EntryID)
	assert.Equal(t, "entry-007", result.Scores[1].EntryID)
	require.NotNil(t, result.Weights)

	var report struct {
		Summary explain.TrailSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Summary.Raw.N)
	assert.Equal(t, result.Scores[1].RawScore, report.Summary.Daily[len(report.Summary.Daily)-1])
	assert.NotNil(t, report.Summary.Crossovers)
}

func TestScore_InsufficientTable(t *testing.T) {
	path := writeEntries(t, inputs(testutil.Varied(3)))

	out, err := run(t, "score", "--format", "table", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Insufficient data: 43% of the minimum, 4 more entries needed")
	assert.NotContains(t, out, "DATE")
	assert.NotContains(t, out, "sALI range:")
}

func TestScore_Table(t *testing.T) {
	path := writeEntries(t, inputs(testutil.Varied(8)))

	out, err := run(t, "score", "--format", "table", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "DATE")
	assert.Contains(t, out, "entry-007")
	assert.Contains(t, out, "METRIC")
	assert.Contains(t, out, "sALI range:")
	assert.Contains(t, out, "Latest percentile:")
}

func TestValidate(t *testing.T) {
	path := writeEntries(t, inputs(testutil.Varied(4)))
	out, err := run(t, "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "4 entries valid")

	bad := testutil.Moderate(0)
	bad.PhysicalLoad = 12
	path = writeEntries(t, inputs([]domain.Entry{bad}))
	_, err = run(t, "validate", "-f", path)
	var verrs domain.ValidationErrors
	require.True(t, errors.As(err, &verrs), "got %v", err)
	require.Len(t, verrs, 1)
	assert.Equal(t, "entry-000.physicalLoad", verrs[0].Field)

	path = writeEntries(t, []map[string]interface{}{{"date": "2024-03-01", "sleepRecovery": 5}})
	_, err = run(t, "validate", "-f", path)
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 4)
	assert.Equal(t, "[0].physicalLoad", verrs[0].Field)
}

func TestConflicts_JSON(t *testing.T) {
	path := writeEntries(t, inputs(testutil.Varied(2)))

	out, err := run(t, "conflicts", "--format", "json", "-f", path)
	require.NoError(t, err)

	var patterns []domain.ConflictPattern
	require.NoError(t, json.Unmarshal([]byte(out), &patterns), out)
	assert.NotNil(t, patterns)
}

func TestStatus_MemoryStore(t *testing.T) {
	out, err := run(t, "status", "--format", "json")
	require.NoError(t, err)

	var report application.StatusReport
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.Equal(t, 0, report.Entries)
	assert.Equal(t, 7, report.MinEntries)
	assert.False(t, report.Progress.CanCalculate)
}

func TestMigrate_RequiresDatabase(t *testing.T) {
	_, err := run(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is not enabled")
}

func TestReadEntriesFile_AssignsIDs(t *testing.T) {
	five := 5.0
	in := application.EntryInput{
		Date:                "2024-03-01",
		SleepRecovery:       &five,
		PhysicalLoad:        &five,
		RecoveryFromLoad:    &five,
		PsychologicalStress: &five,
		EnergyLevel:         &five,
	}
	path := writeEntries(t, []application.EntryInput{in, in})

	entries, err := readEntriesFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2024-03-01", entries[0].ID)
	assert.Equal(t, "2024-03-01-1", entries[1].ID)
	assert.Equal(t, entries[0].Date, entries[0].Timestamp)
}
