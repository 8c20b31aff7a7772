// Package explain attributes score changes between two ScoreEntry values to
// individual metrics using the weight snapshots stored on each score.
package explain

import (
	"fmt"
	"math"
	"sort"

	"github.com/sawpanic/allostat/internal/domain"
)

// flatTolerance is the smallest contribution change reported as movement
const flatTolerance = 1e-9

// Direction of a metric's contribution change
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

// MetricDelta splits one metric's contribution change into the part caused
// by its weight moving and the part caused by its reading moving.
// WeightEffect + ValueEffect == Delta.
type MetricDelta struct {
	Metric       domain.Metric `json:"metric"`
	Before       float64       `json:"before"`
	After        float64       `json:"after"`
	Delta        float64       `json:"delta"`
	WeightEffect float64       `json:"weightEffect"`
	ValueEffect  float64       `json:"valueEffect"`
	Direction    Direction     `json:"direction"`
	Hint         string        `json:"hint"`
}

// Attribution explains the change from one score to the next
type Attribution struct {
	FromEntryID   string        `json:"fromEntryId"`
	ToEntryID     string        `json:"toEntryId"`
	RawDelta      float64       `json:"rawDelta"`
	EMAShortDelta float64       `json:"emaShortDelta"`
	EMALongDelta  float64       `json:"emaLongDelta"`
	Drivers       []MetricDelta `json:"drivers"` // sorted by |Delta| descending
	TopDriver     *MetricDelta  `json:"topDriver,omitempty"`
}

// Attribute compares two scores. Both must carry components and weight snapshots.
func Attribute(prev, curr *domain.ScoreEntry) (*Attribution, error) {
	if prev == nil || curr == nil {
		return nil, fmt.Errorf("attribution needs two scores")
	}
	if len(prev.WeightsSnapshot) == 0 || len(curr.WeightsSnapshot) == 0 {
		return nil, fmt.Errorf("score %s or %s has no weight snapshot", prev.EntryID, curr.EntryID)
	}

	a := &Attribution{
		FromEntryID:   prev.EntryID,
		ToEntryID:     curr.EntryID,
		RawDelta:      curr.RawScore - prev.RawScore,
		EMAShortDelta: curr.EMAShort - prev.EMAShort,
		EMALongDelta:  curr.EMALong - prev.EMALong,
		Drivers:       make([]MetricDelta, 0, domain.MetricCount),
	}

	for _, m := range domain.AllMetrics {
		w0, w1 := prev.WeightsSnapshot[m], curr.WeightsSnapshot[m]
		c0, c1 := prev.Components[m], curr.Components[m]

		d := MetricDelta{
			Metric:       m,
			Before:       w0 * c0,
			After:        w1 * c1,
			WeightEffect: (w1 - w0) * c0,
			ValueEffect:  w1 * (c1 - c0),
		}
		d.Delta = d.After - d.Before
		d.Direction = direction(d.Delta)
		d.Hint = hint(d)
		a.Drivers = append(a.Drivers, d)
	}

	// stable keeps canonical metric order among equal magnitudes
	sort.SliceStable(a.Drivers, func(i, j int) bool {
		return math.Abs(a.Drivers[i].Delta) > math.Abs(a.Drivers[j].Delta)
	})

	if a.Drivers[0].Direction != DirectionFlat {
		top := a.Drivers[0]
		a.TopDriver = &top
	}
	return a, nil
}

func direction(delta float64) Direction {
	switch {
	case delta > flatTolerance:
		return DirectionUp
	case delta < -flatTolerance:
		return DirectionDown
	default:
		return DirectionFlat
	}
}

func hint(d MetricDelta) string {
	if d.Direction == DirectionFlat {
		return fmt.Sprintf("%s unchanged", d.Metric)
	}

	verb := "raised"
	if d.Direction == DirectionDown {
		verb = "lowered"
	}
	cause := "reading"
	if math.Abs(d.WeightEffect) > math.Abs(d.ValueEffect) {
		cause = "weight"
	}
	return fmt.Sprintf("%s %s strain by %.3f, mostly from its %s", d.Metric, verb, math.Abs(d.Delta), cause)
}
