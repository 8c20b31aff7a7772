package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/pipeline"
)

var _ pipeline.Recorder = (*Registry)(nil)

func TestRegistry_CacheHitRatio(t *testing.T) {
	r := NewRegistry()

	r.CacheLookup(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.CacheHitRatio))

	r.CacheLookup(true)
	r.CacheLookup(true)
	r.CacheLookup(true)

	assert.Equal(t, 3.0, testutil.ToFloat64(r.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheLookups.WithLabelValues("miss")))
	assert.InDelta(t, 0.75, testutil.ToFloat64(r.CacheHitRatio), 1e-12)
}

func TestRegistry_ScoreComputed(t *testing.T) {
	r := NewRegistry()

	r.ScoreComputed(&domain.ScoreEntry{RawScore: 0.6, EMAShort: 0.55, EMALong: 0.5})
	r.ScoreComputed(&domain.ScoreEntry{RawScore: 0.7, EMAShort: 0.6, EMALong: 0.52})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.ScoresTotal))
	assert.Equal(t, 0.7, testutil.ToFloat64(r.LatestScore.WithLabelValues("raw")))
	assert.Equal(t, 0.6, testutil.ToFloat64(r.LatestScore.WithLabelValues("ema_short")))
	assert.Equal(t, 0.52, testutil.ToFloat64(r.LatestScore.WithLabelValues("ema_long")))
}

func TestRegistry_ConflictsDetectedReplaces(t *testing.T) {
	r := NewRegistry()

	r.ConflictsDetected([]domain.ConflictPattern{
		{Type: domain.ConflictAcute, Severity: domain.SeverityHigh},
		{Type: domain.ConflictAcute, Severity: domain.SeverityHigh},
		{Type: domain.ConflictChronic, Severity: domain.SeverityMedium},
	})
	assert.Equal(t, 2.0, testutil.ToFloat64(r.ActiveConflicts.WithLabelValues("acute", "high")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.ActiveConflicts))

	r.ConflictsDetected(nil)
	assert.Equal(t, 0, testutil.CollectAndCount(r.ActiveConflicts))
}

func TestRegistry_Counters(t *testing.T) {
	r := NewRegistry()

	r.InsufficientData()
	r.ObserveStage(pipeline.StageWeights, 2*time.Millisecond)
	r.ObserveStage(pipeline.StageScore, time.Millisecond)
	r.BreakerStateChanged("entries", 2)
	r.HTTPRequest("/status", "200")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.InsufficientTotal))
	assert.Equal(t, 2, testutil.CollectAndCount(r.StageDuration))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.BreakerState.WithLabelValues("entries")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.HTTPRequests.WithLabelValues("/status", "200")))
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.ScoreComputed(&domain.ScoreEntry{RawScore: 0.4})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "allostat_scores_total 1")

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
