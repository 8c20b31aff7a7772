package pipeline

import (
	"time"

	"github.com/sawpanic/allostat/internal/domain"
)

// Stage names passed to Recorder.ObserveStage
const (
	StageWeights   = "weights"
	StageScore     = "score"
	StageConflicts = "conflicts"
	StageBackfill  = "backfill"
)

// Recorder receives pipeline measurements
type Recorder interface {
	ObserveStage(stage string, elapsed time.Duration)
	CacheLookup(hit bool)
	ScoreComputed(score *domain.ScoreEntry)
	ConflictsDetected(patterns []domain.ConflictPattern)
	InsufficientData()
}

type noopRecorder struct{}

func (noopRecorder) ObserveStage(string, time.Duration) {}
func (noopRecorder) CacheLookup(bool) {}
func (noopRecorder) ScoreComputed(*domain.ScoreEntry) {}
func (noopRecorder) ConflictsDetected([]domain.ConflictPattern) {}
func (noopRecorder) InsufficientData() {}
