package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seikabus.dev/shuttle"
	"seikabus.dev/shuttle/config"
	"seikabus.dev/shuttle/model"
)

func TestApplyCommand(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	cfg = &config.Config{Location: jst}

	now := time.Date(2025, 6, 2, 14, 5, 30, 0, jst)
	reference := shuttle.FixedClock{Instant: now}
	start := shuttle.Query{Date: now, Direction: model.DirectionAToB}

	for _, tc := range []struct {
		line     string
		expected shuttle.Query
	}{
		{"", start},
		{"n", shuttle.Query{Date: now.AddDate(0, 0, 1), Direction: model.DirectionAToB}},
		{"p", shuttle.Query{Date: now.AddDate(0, 0, -1), Direction: model.DirectionAToB}},
		{"b", shuttle.Query{Date: now, Direction: model.DirectionBToA}},
		{" d 2025-07-01 ", shuttle.Query{Date: time.Date(2025, 7, 1, 14, 5, 30, 0, jst), Direction: model.DirectionAToB}},
	} {
		got, quit, err := applyCommand(tc.line, start, reference)
		require.NoError(t, err, tc.line)
		assert.False(t, quit)
		assert.Equal(t, tc.expected.Direction, got.Direction, tc.line)
		assert.True(t, tc.expected.Date.Equal(got.Date), "%q: got %s", tc.line, got.Date)
	}

	// Back to today from another day.
	other := shuttle.Query{Date: now.AddDate(0, 0, 5), Direction: model.DirectionBToA}
	got, _, err := applyCommand("t", other, reference)
	require.NoError(t, err)
	assert.True(t, now.Equal(got.Date))
	assert.Equal(t, model.DirectionBToA, got.Direction)

	_, quit, err := applyCommand("q", start, reference)
	require.NoError(t, err)
	assert.True(t, quit)

	for _, line := range []string{"x", "d", "d 2025-13-01"} {
		_, _, err := applyCommand(line, start, reference)
		assert.Error(t, err, line)
	}
}

func TestFormatEntry(t *testing.T) {
	assert.Equal(t, "00 05 30", formatEntry(14, model.Specific{Minutes: []int{0, 5, 30}}))
	assert.Equal(t, "every 7-8 min (08:30～)", formatEntry(8, model.Interval{Description: "every 7-8 min", StartMinute: 30, HasStart: true}))
	assert.Equal(t, "every 7-8 min", formatEntry(9, model.Interval{Description: "every 7-8 min"}))
	assert.Equal(t, "-", formatEntry(10, model.NoBus{}))
}

func TestFormatStatus(t *testing.T) {
	assert.Equal(t, "運休 台風のため運休", formatStatus(model.Status{Kind: model.StatusSuspended, Message: "台風のため運休"}))
	assert.Equal(t, "特別運行 オープンキャンパス https://special", formatStatus(model.Status{Kind: model.StatusSpecial, Message: "オープンキャンパス", URL: "https://special"}))
	assert.Equal(t, "通常運行です", formatStatus(model.Status{Kind: model.StatusNormal, Message: "通常運行です"}))
}

func TestCountdownView(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	cfg = &config.Config{Location: jst}

	now := time.Date(2025, 6, 2, 14, 5, 30, 0, jst)
	normal := model.Status{Kind: model.StatusNormal, Message: "通常運行です"}
	suspended := model.Status{Kind: model.StatusSuspended, Message: "台風のため運休"}

	today := shuttle.Query{Date: now, Direction: model.DirectionAToB}
	lines, live := countdownView(today, true, normal)
	assert.Equal(t, []string{"国際会館発", "通常運行です"}, lines)
	assert.True(t, live)

	lines, live = countdownView(today, true, suspended)
	assert.Equal(t, []string{"国際会館発", "運休 台風のため運休"}, lines)
	assert.False(t, live)

	// Other days don't count down.
	tomorrow := shuttle.Query{Date: now.AddDate(0, 0, 1), Direction: model.DirectionAToB}
	lines, live = countdownView(tomorrow, false, normal)
	assert.Equal(t, []string{"6/3 国際会館発", "通常運行です"}, lines)
	assert.False(t, live)

	lines, live = countdownView(shuttle.Query{Date: now.AddDate(0, 0, -3), Direction: model.DirectionAToB}, false, suspended)
	assert.Equal(t, []string{"5/30 国際会館発", "運休 台風のため運休"}, lines)
	assert.False(t, live)
}
