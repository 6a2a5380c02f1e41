package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirection(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected Direction
		err      bool
	}{
		{"kokusai_to_seika", DirectionAToB, false},
		{"A_TO_B", DirectionAToB, false},
		{" seika_to_kokusai ", DirectionBToA, false},
		{"b", DirectionBToA, false},
		{"north", 0, true},
		{"", 0, true},
	} {
		d, err := ParseDirection(tc.in)
		if tc.err {
			assert.ErrorIs(t, err, ErrUnknownDirection, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.expected, d)
	}

	assert.Equal(t, DirectionBToA, DirectionAToB.Opposite())
	assert.Equal(t, DirectionAToB, DirectionBToA.Opposite())
	assert.Equal(t, "seika_to_kokusai", DirectionBToA.String())
}

func TestDirectionTableEntry(t *testing.T) {
	table := &DirectionTable{}
	table[9] = Specific{Minutes: []int{0, 30}}

	assert.Equal(t, NoBus{}, table.Entry(8))
	assert.Equal(t, Specific{Minutes: []int{0, 30}}, table.Entry(9))
	assert.Equal(t, NoBus{}, table.Entry(-1))
	assert.Equal(t, NoBus{}, table.Entry(24))

	var missing *DirectionTable
	assert.Equal(t, NoBus{}, missing.Entry(9))
}

func TestTimetableValidate(t *testing.T) {
	for _, tc := range []struct {
		name  string
		entry HourEntry
		err   bool
	}{
		{"nobus", NoBus{}, false},
		{"interval", Interval{Description: "every 8 min"}, false},
		{"interval with start", Interval{Description: "every 8 min", StartMinute: 30, HasStart: true}, false},
		{"interval without description", Interval{}, true},
		{"interval bad start", Interval{Description: "x", StartMinute: 60, HasStart: true}, true},
		{"specific", Specific{Minutes: []int{0, 10, 59}}, false},
		{"specific empty", Specific{}, true},
		{"specific unordered", Specific{Minutes: []int{10, 0}}, true},
		{"specific duplicate", Specific{Minutes: []int{10, 10}}, true},
		{"specific out of range", Specific{Minutes: []int{60}}, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tt := NewTimetable()
			tt.Ensure(VariantWeekday, DirectionAToB)[12] = tc.entry
			err := tt.Validate()
			if tc.err {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	tt := NewTimetable()
	tt.Ensure(VariantNoService, DirectionAToB)
	assert.Error(t, tt.Validate())
}

func TestDepartureEqual(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	a := SpecificDeparture(time.Date(2025, 6, 2, 14, 10, 0, 0, tokyo))
	b := SpecificDeparture(time.Date(2025, 6, 2, 5, 10, 0, 0, time.UTC))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(NoDeparture()))
	assert.True(t, IntervalDeparture("x", "").Equal(IntervalDeparture("x", "")))
	assert.False(t, IntervalDeparture("x", "").Equal(IntervalDeparture("x", "13:00")))
}

func TestEventOverlaps(t *testing.T) {
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	next := day.AddDate(0, 0, 1)

	assert.True(t, Event{Start: day, End: next}.Overlaps(day, next))
	assert.True(t, Event{Start: day.Add(-time.Hour), End: day.Add(time.Minute)}.Overlaps(day, next))
	assert.False(t, Event{Start: day.Add(-time.Hour), End: day}.Overlaps(day, next))
	assert.False(t, Event{Start: next, End: next.Add(time.Hour)}.Overlaps(day, next))
}
