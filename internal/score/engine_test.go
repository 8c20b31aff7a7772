package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/smoothing"
	"github.com/sawpanic/allostat/internal/testutil"
)

func uniformWeights() *domain.WeightState {
	ws := &domain.WeightState{NormalizedWeights: map[domain.Metric]float64{}}
	for _, m := range domain.AllMetrics {
		ws.NormalizedWeights[m] = 0.2
	}
	return ws
}

func TestOrient(t *testing.T) {
	assert.Equal(t, 0.8, Orient(domain.SleepRecovery, 2))
	assert.Equal(t, 0.0, Orient(domain.EnergyLevel, 10))
	assert.Equal(t, 1.0, Orient(domain.RecoveryFromLoad, 0))
	assert.Equal(t, 0.9, Orient(domain.PhysicalLoad, 9))
	assert.Equal(t, 0.0, Orient(domain.PsychologicalStress, 0))
}

func TestScore_FirstEntrySeedsEMA(t *testing.T) {
	engine := NewEngine(smoothing.NewTracker())
	e := testutil.Moderate(0)

	s, err := engine.Score(e, uniformWeights(), nil)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, s.RawScore, 1e-12)
	assert.Equal(t, s.RawScore, s.EMAShort)
	assert.Equal(t, s.RawScore, s.EMALong)
	assert.Equal(t, smoothing.TrendStable, s.Trend)
	assert.Equal(t, smoothing.CrossoverNone, s.Crossover)
	assert.Equal(t, e.ID, s.EntryID)
	assert.Equal(t, e.Date, s.Date)
}

func TestScore_Extremes(t *testing.T) {
	engine := NewEngine(smoothing.NewTracker())

	worst := testutil.Moderate(0)
	worst.SleepRecovery, worst.RecoveryFromLoad, worst.EnergyLevel = 0, 0, 0
	worst.PhysicalLoad, worst.PsychologicalStress = 10, 10
	s, err := engine.Score(worst, uniformWeights(), nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.RawScore, 1e-12)

	best := testutil.Moderate(1)
	best.SleepRecovery, best.RecoveryFromLoad, best.EnergyLevel = 10, 10, 10
	best.PhysicalLoad, best.PsychologicalStress = 0, 0
	s, err = engine.Score(best, uniformWeights(), nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, s.RawScore, 1e-12)
}

func TestScore_ChainsFromPrevious(t *testing.T) {
	engine := NewEngine(smoothing.NewTracker())
	prev := &domain.ScoreEntry{RawScore: 0.3, EMAShort: 0.3, EMALong: 0.3}

	e := testutil.Moderate(1)
	e.PsychologicalStress = 10
	e.PhysicalLoad = 10

	s, err := engine.Score(e, uniformWeights(), prev)
	require.NoError(t, err)

	// components: 0.5, 1, 0.5, 1, 0.5 at 0.2 each
	assert.InDelta(t, 0.7, s.RawScore, 1e-12)
	assert.InDelta(t, 0.3+0.25*0.4, s.EMAShort, 1e-12)
	assert.InDelta(t, 0.3+(2.0/29.0)*0.4, s.EMALong, 1e-12)
	assert.Equal(t, smoothing.TrendRising, s.Trend)
	assert.Equal(t, smoothing.CrossoverAbove, s.Crossover)
}

func TestScore_WeightsSnapshot(t *testing.T) {
	engine := NewEngine(smoothing.NewTracker())
	ws := &domain.WeightState{NormalizedWeights: map[domain.Metric]float64{
		domain.SleepRecovery:       0.1,
		domain.PhysicalLoad:        0.4,
		domain.RecoveryFromLoad:    0.1,
		domain.PsychologicalStress: 0.2,
		domain.EnergyLevel:         0.2,
	}}

	s, err := engine.Score(testutil.Moderate(0), ws, nil)
	require.NoError(t, err)
	assert.Equal(t, ws.NormalizedWeights, s.WeightsSnapshot)

	// snapshot is a copy
	ws.NormalizedWeights[domain.PhysicalLoad] = 0
	assert.Equal(t, 0.4, s.WeightsSnapshot[domain.PhysicalLoad])
	assert.InDelta(t, 0.4*0.5, s.Contribution(domain.PhysicalLoad), 1e-12)
}

func TestScore_RejectsBadWeights(t *testing.T) {
	engine := NewEngine(smoothing.NewTracker())
	e := testutil.Moderate(0)

	_, err := engine.Score(e, nil, nil)
	assert.Error(t, err)

	ws := uniformWeights()
	ws.NormalizedWeights[domain.EnergyLevel] = 0.5
	_, err = engine.Score(e, ws, nil)
	assert.Error(t, err)

	ws = uniformWeights()
	delete(ws.NormalizedWeights, domain.SleepRecovery)
	_, err = engine.Score(e, ws, nil)
	assert.Error(t, err)
}
