package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alwaysAvailable struct{}

func (alwaysAvailable) Available(time.Time, int) bool { return true }

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestIsBusinessHours(t *testing.T) {
	cal := MustCalendar(DefaultTimezone)

	tests := []struct {
		name string
		at   string
		want bool
	}{
		{"weekday morning", "2024-03-20T17:00:00Z", true},
		{"weekday before open", "2024-03-20T11:00:00Z", false},
		{"weekday after close", "2024-03-21T03:00:00Z", false},
		{"weekday open boundary", "2024-03-20T12:00:00Z", true},
		{"weekday close boundary", "2024-03-21T02:00:00Z", true},
		{"saturday inside short window", "2024-03-23T17:00:00Z", true},
		{"saturday before open", "2024-03-23T14:00:00Z", false},
		{"saturday after close", "2024-03-23T23:00:00Z", false},
		{"sunday", "2024-03-24T17:00:00Z", false},
		{"independence day", "2024-07-04T17:00:00Z", false},
		{"thanksgiving", "2024-11-28T18:00:00Z", false},
		{"day after thanksgiving open", "2024-11-29T17:00:00Z", true},
		{"day after thanksgiving early", "2024-11-29T15:00:00Z", false},
		{"christmas eve afternoon", "2024-12-24T23:30:00Z", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.IsBusinessHours(mustParse(t, tt.at)))
		})
	}
}

func TestIsHoliday(t *testing.T) {
	holidays := []string{
		"2024-01-01", "2024-01-15", "2024-02-19", "2024-05-27", "2024-07-04",
		"2024-09-02", "2024-10-14", "2024-11-11", "2024-11-28", "2024-12-25",
	}
	for _, d := range holidays {
		day, err := time.Parse("2006-01-02", d)
		require.NoError(t, err)
		assert.True(t, IsHoliday(day), d)
	}

	for _, d := range []string{"2024-01-08", "2024-05-20", "2024-09-09", "2024-11-21", "2024-12-24"} {
		day, err := time.Parse("2006-01-02", d)
		require.NoError(t, err)
		assert.False(t, IsHoliday(day), d)
	}
}

func TestAvailableTimeSlots_MidWeek(t *testing.T) {
	cal := MustCalendar(DefaultTimezone)
	now := mustParse(t, "2024-03-20T17:10:00Z") // 10:10 local

	slots := cal.AvailableTimeSlots(now, alwaysAvailable{})

	require.NotEmpty(t, slots.All)
	assert.Equal(t, mustParse(t, "2024-03-20T17:30:00Z"), slots.All[0])
	// 10:30 to 18:30 today, 05:00 to 18:30 tomorrow.
	assert.Len(t, slots.All, 17+28)
	assert.Equal(t, slots.All, slots.Available)
	assert.Equal(t, mustParse(t, "2024-03-22T01:30:00Z"), slots.All[len(slots.All)-1])
}

func TestAvailableTimeSlots_RespectsCalendar(t *testing.T) {
	cal := MustCalendar(DefaultTimezone)
	now := mustParse(t, "2024-03-23T03:00:00Z") // Friday 20:00 local

	slots := cal.AvailableTimeSlots(now, alwaysAvailable{})

	// Friday is already closed and counts as one business day.
	assert.Len(t, slots.All, 14)
	for _, s := range slots.All {
		local := s.In(cal.Location())
		assert.NotEqual(t, time.Sunday, local.Weekday())
		w, ok := WindowFor(local)
		require.True(t, ok)
		assert.GreaterOrEqual(t, local.Hour(), w.Open)
		assert.Less(t, local.Hour(), w.Close)
		assert.Contains(t, []int{0, 30}, local.Minute())
	}
}

func TestAvailableTimeSlots_SkipsSundayAndHoliday(t *testing.T) {
	cal := MustCalendar(DefaultTimezone)
	now := mustParse(t, "2024-05-26T17:00:00Z") // Sunday before Memorial Day

	slots := cal.AvailableTimeSlots(now, alwaysAvailable{})

	require.NotEmpty(t, slots.All)
	first := slots.All[0].In(cal.Location())
	assert.Equal(t, time.Tuesday, first.Weekday())
	assert.Equal(t, 5, first.Hour())
}

func TestSeededAvailability_Stable(t *testing.T) {
	cal := MustCalendar(DefaultTimezone)
	now := mustParse(t, "2024-03-20T17:10:00Z")
	avail := SeededAvailability{Seed: 0.42}

	a := cal.AvailableTimeSlots(now, avail)
	b := cal.AvailableTimeSlots(now, avail)

	assert.Equal(t, a.Available, b.Available)
	assert.Less(t, len(a.Available), len(a.All))
	for _, s := range a.Available {
		assert.True(t, a.Contains(s))
	}
	assert.False(t, a.Contains(now))
}
