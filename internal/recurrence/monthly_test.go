package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNthWeekdayInMonth(t *testing.T) {
	tests := []struct {
		name  string
		month time.Time
		dow   time.Weekday
		n     int
		want  time.Time
	}{
		{
			name:  "first friday of a month starting on friday",
			month: date(2026, time.May, 1),
			dow:   time.Friday,
			n:     0,
			want:  date(2026, time.May, 1),
		},
		{
			name:  "fourth friday in a five-friday month stays fourth",
			month: date(2026, time.May, 1),
			dow:   time.Friday,
			n:     3,
			want:  date(2026, time.May, 22),
		},
		{
			name:  "fourth friday in a four-friday month",
			month: date(2026, time.June, 1),
			dow:   time.Friday,
			n:     3,
			want:  date(2026, time.June, 26),
		},
		{
			name:  "last friday in a five-friday month",
			month: date(2026, time.May, 1),
			dow:   time.Friday,
			n:     4,
			want:  date(2026, time.May, 29),
		},
		{
			name:  "last friday in a four-friday month backs off a week",
			month: date(2026, time.June, 1),
			dow:   time.Friday,
			n:     4,
			want:  date(2026, time.June, 26),
		},
		{
			name:  "leap february fourth friday",
			month: date(2028, time.February, 1),
			dow:   time.Friday,
			n:     3,
			want:  date(2028, time.February, 25),
		},
		{
			name:  "leap february last tuesday lands on the 29th",
			month: date(2028, time.February, 1),
			dow:   time.Tuesday,
			n:     4,
			want:  date(2028, time.February, 29),
		},
		{
			name:  "second monday",
			month: date(2026, time.January, 1),
			dow:   time.Monday,
			n:     1,
			want:  date(2026, time.January, 12),
		},
		{
			name:  "n above four clamps to last",
			month: date(2026, time.May, 1),
			dow:   time.Friday,
			n:     9,
			want:  date(2026, time.May, 29),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NthWeekdayInMonth(tt.month, tt.dow, tt.n)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.dow, got.Weekday())
			assert.Equal(t, tt.month.Month(), got.Month())
		})
	}
}

func TestNthWeekdayInMonth_NegativeN(t *testing.T) {
	_, ok := NthWeekdayInMonth(date(2026, time.May, 1), time.Friday, -1)
	assert.False(t, ok)
}
