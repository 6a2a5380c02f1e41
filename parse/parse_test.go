package parse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seikabus.dev/shuttle/model"
)

func TestParseTimetable(t *testing.T) {
	for _, tc := range []struct {
		name     string
		content  string
		err      bool
		expected map[model.Variant]map[model.Direction]map[int]model.HourEntry
	}{
		{
			"minimal",
			`
variant,direction,hour,kind,text,start_minute,minutes
weekday,kokusai_to_seika,14,specific,,,0 10 20`,
			false,
			map[model.Variant]map[model.Direction]map[int]model.HourEntry{
				model.VariantWeekday: {
					model.DirectionAToB: {
						14: model.Specific{Minutes: []int{0, 10, 20}},
					},
				},
			},
		},

		{
			"intervals and both directions",
			`
variant,direction,hour,kind,text,start_minute,minutes
weekday,kokusai_to_seika,8,interval,every 8 min (first 8:00),0,
weekday,kokusai_to_seika,9,interval,every 8 min,,
weekday,seika_to_kokusai,8,none,,,
saturday,b_to_a,18,specific,,,0 20 40`,
			false,
			map[model.Variant]map[model.Direction]map[int]model.HourEntry{
				model.VariantWeekday: {
					model.DirectionAToB: {
						8: model.Interval{Description: "every 8 min (first 8:00)", StartMinute: 0, HasStart: true},
						9: model.Interval{Description: "every 8 min"},
					},
					model.DirectionBToA: {
						8: model.NoBus{},
					},
				},
				model.VariantSaturday: {
					model.DirectionBToA: {
						18: model.Specific{Minutes: []int{0, 20, 40}},
					},
				},
			},
		},

		{
			"quoted text with comma",
			`
variant,direction,hour,kind,text,start_minute,minutes
weekday,a_to_b,13,interval,"every 7, sometimes 8 min",,`,
			false,
			map[model.Variant]map[model.Direction]map[int]model.HourEntry{
				model.VariantWeekday: {
					model.DirectionAToB: {
						13: model.Interval{Description: "every 7, sometimes 8 min"},
					},
				},
			},
		},

		{
			"unknown variant",
			`
variant,direction,hour,kind,text,start_minute,minutes
holidayz,a_to_b,13,specific,,,0`,
			true, nil,
		},

		{
			"rows for no service day",
			`
variant,direction,hour,kind,text,start_minute,minutes
sunday,a_to_b,13,specific,,,0`,
			true, nil,
		},

		{
			"unknown direction",
			`
variant,direction,hour,kind,text,start_minute,minutes
weekday,north,13,specific,,,0`,
			true, nil,
		},

		{
			"hour out of range",
			`
variant,direction,hour,kind,text,start_minute,minutes
weekday,a_to_b,24,specific,,,0`,
			true, nil,
		},

		{
			"duplicate hour",
			`
variant,direction,hour,kind,text,start_minute,minutes
weekday,a_to_b,13,specific,,,0
weekday,a_to_b,13,specific,,,30`,
			true, nil,
		},

		{
			"minutes not ascending",
			`
variant,direction,hour,kind,text,start_minute,minutes
weekday,a_to_b,13,specific,,,30 10`,
			true, nil,
		},

		{
			"minute out of range",
			`
variant,direction,hour,kind,text,start_minute,minutes
weekday,a_to_b,13,specific,,,0 60`,
			true, nil,
		},

		{
			"specific without minutes",
			`
variant,direction,hour,kind,text,start_minute,minutes
weekday,a_to_b,13,specific,,,`,
			true, nil,
		},

		{
			"interval without text",
			`
variant,direction,hour,kind,text,start_minute,minutes
weekday,a_to_b,13,interval,,,`,
			true, nil,
		},

		{
			"interval with bad start",
			`
variant,direction,hour,kind,text,start_minute,minutes
weekday,a_to_b,13,interval,x,75,`,
			true, nil,
		},

		{
			"specific with text and start minute",
			`
variant,direction,hour,kind,text,start_minute,minutes
weekday,a_to_b,9,specific,every 7-8 min,15,0 20 40`,
			true, nil,
		},

		{
			"specific with text",
			`
variant,direction,hour,kind,text,start_minute,minutes
weekday,a_to_b,9,specific,every 7-8 min,,0 20 40`,
			true, nil,
		},

		{
			"specific with start minute",
			`
variant,direction,hour,kind,text,start_minute,minutes
weekday,a_to_b,9,specific,,15,0 20 40`,
			true, nil,
		},

		{
			"interval with minutes",
			`
variant,direction,hour,kind,text,start_minute,minutes
weekday,a_to_b,9,interval,every 7-8 min,,0 20 40`,
			true, nil,
		},

		{
			"no bus with minutes",
			`
variant,direction,hour,kind,text,start_minute,minutes
weekday,a_to_b,9,none,,,0 20 40`,
			true, nil,
		},

		{
			"unknown kind",
			`
variant,direction,hour,kind,text,start_minute,minutes
weekday,a_to_b,13,shuttle,,,`,
			true, nil,
		},

		{
			"header only",
			`
variant,direction,hour,kind,text,start_minute,minutes`,
			true, nil,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tt, err := ParseTimetable(bytes.NewBufferString(tc.content))
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			for variant, tables := range tc.expected {
				for direction, hours := range tables {
					table := tt.Table(variant, direction)
					require.NotNil(t, table, "%s %s", variant, direction)
					for hour := 0; hour < model.HoursPerDay; hour++ {
						expected, found := hours[hour]
						if !found {
							expected = model.NoBus{}
						}
						assert.Equal(t, expected, table.Entry(hour), "%s %s %d", variant, direction, hour)
					}
				}
			}
		})
	}
}

func TestParseTimetableBOM(t *testing.T) {
	content := "\xef\xbb\xbfvariant,direction,hour,kind,text,start_minute,minutes\nweekday,a_to_b,21,specific,,,0\n"

	tt, err := ParseTimetable(bytes.NewBufferString(content))
	require.NoError(t, err)
	assert.Equal(t, model.Specific{Minutes: []int{0}}, tt.Table(model.VariantWeekday, model.DirectionAToB).Entry(21))
}
