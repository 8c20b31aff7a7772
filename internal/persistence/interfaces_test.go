package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeRange_Contains(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name     string
		tr       TimeRange
		at       time.Time
		expected bool
	}{
		{"inside", TimeRange{From: day(1), To: day(10)}, day(5), true},
		{"lower_bound_inclusive", TimeRange{From: day(1), To: day(10)}, day(1), true},
		{"upper_bound_inclusive", TimeRange{From: day(1), To: day(10)}, day(10), true},
		{"before", TimeRange{From: day(2), To: day(10)}, day(1), false},
		{"after", TimeRange{From: day(1), To: day(10)}, day(11), false},
		{"open_lower", TimeRange{To: day(10)}, day(1), true},
		{"open_upper", TimeRange{From: day(1)}, day(28), true},
		{"zero_range", TimeRange{}, day(15), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.tr.Contains(tt.at))
		})
	}
}
