package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/testutil"
)

func find(patterns []domain.ConflictPattern, name domain.PatternName) *domain.ConflictPattern {
	for i := range patterns {
		if patterns[i].Pattern == name {
			return &patterns[i]
		}
	}
	return nil
}

func stripIDs(patterns []domain.ConflictPattern) []domain.ConflictPattern {
	out := make([]domain.ConflictPattern, len(patterns))
	for i, p := range patterns {
		p.ID = ""
		out[i] = p
	}
	return out
}

func TestDetect_Empty(t *testing.T) {
	d := NewDetector()
	patterns := d.Detect(nil)
	assert.NotNil(t, patterns)
	assert.Empty(t, patterns)
}

func TestDetect_HighLoadLowRecovery(t *testing.T) {
	d := NewDetector()
	entries := testutil.History(3, func(i int, e *domain.Entry) {
		if i == 2 {
			e.PhysicalLoad = 9
			e.RecoveryFromLoad = 1
		}
	})

	patterns := d.Detect(entries)
	p := find(patterns, domain.PatternHighLoadLowRecovery)
	require.NotNil(t, p)
	assert.Equal(t, domain.ConflictAcute, p.Type)
	assert.Equal(t, domain.SeverityHigh, p.Severity)
	assert.Equal(t, []domain.Metric{domain.PhysicalLoad, domain.RecoveryFromLoad}, p.AffectedMetrics)
	assert.Equal(t, entries[2].Date, p.DetectedAt)
	assert.Zero(t, p.DurationDays)
	assert.NotEmpty(t, p.ID)
}

func TestDetect_AcuteOnlyLatestEntry(t *testing.T) {
	d := NewDetector()
	entries := testutil.History(3, func(i int, e *domain.Entry) {
		if i == 0 {
			e.PhysicalLoad = 9
			e.RecoveryFromLoad = 1
		}
	})
	assert.Empty(t, d.Detect(entries))
}

func TestDetect_AcuteSeverityBands(t *testing.T) {
	d := NewDetector()
	cases := []struct {
		load, stress float64
		expected     domain.Severity
	}{
		{8, 8, domain.SeverityHigh},   // 16
		{9, 9.5, domain.SeverityHigh}, // 18.5
		{7.5, 7.5, domain.SeverityMedium},
		{7.1, 7.1, domain.SeverityMedium},
	}
	for _, c := range cases {
		e := testutil.Moderate(0)
		e.PhysicalLoad = c.load
		e.PsychologicalStress = c.stress
		p := find(d.Detect([]domain.Entry{e}), domain.PatternOverwork)
		require.NotNil(t, p, "load=%v stress=%v", c.load, c.stress)
		assert.Equal(t, c.expected, p.Severity, "load=%v stress=%v", c.load, c.stress)
	}

	// inverted factor: load 7.5 + (10 - recovery 3.9) = 13.6
	e := testutil.Moderate(0)
	e.PhysicalLoad = 7.5
	e.RecoveryFromLoad = 3.9
	p := find(d.Detect([]domain.Entry{e}), domain.PatternHighLoadLowRecovery)
	require.NotNil(t, p)
	assert.Equal(t, domain.SeverityMedium, p.Severity)
}

func TestDetect_LowSeverityWithLooseThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.HighLoad = 3
	th.HighStress = 3
	d := NewDetectorWithThresholds(th)

	e := testutil.Moderate(0)
	p := find(d.Detect([]domain.Entry{e}), domain.PatternOverwork)
	require.NotNil(t, p)
	assert.Equal(t, domain.SeverityLow, p.Severity)
}

func TestDetect_AllAcutePatterns(t *testing.T) {
	d := NewDetector()
	e := testutil.Moderate(0)
	e.PhysicalLoad = 9
	e.RecoveryFromLoad = 2
	e.PsychologicalStress = 8
	e.SleepRecovery = 2
	e.EnergyLevel = 2

	patterns := d.Detect([]domain.Entry{e})
	require.Len(t, patterns, 4)
	assert.Equal(t, domain.PatternHighLoadLowRecovery, patterns[0].Pattern)
	assert.Equal(t, domain.PatternPoorSleepHighStress, patterns[1].Pattern)
	assert.Equal(t, domain.PatternOverwork, patterns[2].Pattern)
	assert.Equal(t, domain.PatternFatigueWithLoad, patterns[3].Pattern)
	for _, p := range patterns {
		assert.Equal(t, domain.ConflictAcute, p.Type)
	}
}

func TestDetect_ProlongedStress(t *testing.T) {
	d := NewDetector()
	entries := testutil.History(14, func(i int, e *domain.Entry) {
		e.PsychologicalStress = 9
	})

	patterns := d.Detect(entries)
	p := find(patterns, domain.PatternProlongedStress)
	require.NotNil(t, p)
	assert.Equal(t, domain.ConflictChronic, p.Type)
	assert.Equal(t, domain.SeverityHigh, p.Severity)
	assert.Equal(t, 14, p.DurationDays)
	assert.Equal(t, []domain.Metric{domain.PsychologicalStress}, p.AffectedMetrics)

	assert.Nil(t, find(patterns, domain.PatternChronicSleepDeficit))
	assert.Nil(t, find(patterns, domain.PatternProlongedFatigue))
	assert.Nil(t, find(patterns, domain.PatternBrainFog))
}

func TestDetect_ChronicNeedsFullWindow(t *testing.T) {
	d := NewDetector()
	entries := testutil.History(13, func(i int, e *domain.Entry) {
		e.PsychologicalStress = 9
	})
	assert.Nil(t, find(d.Detect(entries), domain.PatternProlongedStress))
}

func TestDetect_ChronicMediumSeverity(t *testing.T) {
	d := NewDetector()
	entries := testutil.History(20, func(i int, e *domain.Entry) {
		e.SleepRecovery = 3.5
		e.EnergyLevel = 3.5
	})

	patterns := d.Detect(entries)
	sleep := find(patterns, domain.PatternChronicSleepDeficit)
	require.NotNil(t, sleep)
	assert.Equal(t, domain.SeverityMedium, sleep.Severity)

	fatigue := find(patterns, domain.PatternProlongedFatigue)
	require.NotNil(t, fatigue)
	assert.Equal(t, domain.SeverityMedium, fatigue.Severity)
}

func TestDetect_ChronicUsesTrailingWindow(t *testing.T) {
	d := NewDetector()
	entries := testutil.History(30, func(i int, e *domain.Entry) {
		if i < 16 {
			e.PsychologicalStress = 10
		}
	})
	assert.Nil(t, find(d.Detect(entries), domain.PatternProlongedStress))
}

func TestDetect_BrainFog(t *testing.T) {
	d := NewDetector()
	fog := func(i int, e *domain.Entry) {
		e.EnergyLevel = 3
		e.PsychologicalStress = 6.5
	}

	assert.Nil(t, find(d.Detect(testutil.History(59, fog)), domain.PatternBrainFog))

	patterns := d.Detect(testutil.History(60, fog))
	p := find(patterns, domain.PatternBrainFog)
	require.NotNil(t, p)
	assert.Equal(t, domain.SeverityHigh, p.Severity)
	assert.Equal(t, 60, p.DurationDays)
	assert.ElementsMatch(t, []domain.Metric{domain.EnergyLevel, domain.PsychologicalStress}, p.AffectedMetrics)

	// prolonged fatigue fires alongside on the 14-day window
	assert.NotNil(t, find(patterns, domain.PatternProlongedFatigue))
}

func TestDetect_Deterministic(t *testing.T) {
	d := NewDetector()
	entries := testutil.History(60, func(i int, e *domain.Entry) {
		e.EnergyLevel = 3
		e.PsychologicalStress = 8.5
		e.PhysicalLoad = 8
		e.SleepRecovery = 2
	})

	first := d.Detect(entries)
	second := d.Detect(entries)
	require.NotEmpty(t, first)
	assert.Equal(t, stripIDs(first), stripIDs(second))
}

func TestActiveFor(t *testing.T) {
	d := NewDetector()
	e := testutil.Moderate(0)
	e.PhysicalLoad = 9
	e.PsychologicalStress = 9

	patterns := d.Detect([]domain.Entry{e})
	assert.Equal(t, []domain.PatternName{domain.PatternOverwork}, ActiveFor(patterns, domain.PhysicalLoad))
	assert.Empty(t, ActiveFor(patterns, domain.SleepRecovery))
}

func TestThresholds_Validate(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())

	th := DefaultThresholds()
	th.HighLoad = 12
	assert.Error(t, th.Validate())

	th = DefaultThresholds()
	th.MediumSeveritySum = 20
	assert.Error(t, th.Validate())

	th = DefaultThresholds()
	th.BrainFogWindow = 7
	assert.Error(t, th.Validate())
}
