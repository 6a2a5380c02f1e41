package parse

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	ics "github.com/arran4/golang-ical"

	"seikabus.dev/shuttle/model"
)

func eventTimes(event *ics.VEvent, loc *time.Location) (time.Time, time.Time, bool, error) {
	allDay := false
	if prop := event.GetProperty(ics.ComponentPropertyDtStart); prop != nil {
		if values, ok := prop.ICalParameters["VALUE"]; ok && len(values) > 0 && values[0] == "DATE" {
			allDay = true
		}
	}

	var start, end time.Time
	var err error
	if allDay {
		start, err = event.GetAllDayStartAt()
	} else {
		start, err = event.GetStartAt()
	}
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("parsing DTSTART: %w", err)
	}

	if allDay {
		end, err = event.GetAllDayEndAt()
	} else {
		end, err = event.GetEndAt()
	}
	if err != nil {
		// DTEND is optional. A date-only event without one
		// lasts the day, anything else is instantaneous.
		if allDay {
			end = start.AddDate(0, 0, 1)
		} else {
			end = start
		}
	}

	if allDay {
		// Dates carry no zone, they are days in the line's zone.
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
	}

	return start, end, allDay, nil
}

// Parses an iCalendar document into events. All-day events are
// anchored to midnight in loc. Events without a usable DTSTART are
// skipped rather than failing the whole calendar.
func ParseCalendar(calendar string, data []byte, loc *time.Location) ([]model.Event, error) {
	cal, err := ics.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing calendar: %w", err)
	}

	events := []model.Event{}
	for _, vevent := range cal.Events() {
		start, end, allDay, err := eventTimes(vevent, loc)
		if err != nil {
			continue
		}

		event := model.Event{
			Calendar: calendar,
			UID:      vevent.Id(),
			Start:    start,
			End:      end,
			AllDay:   allDay,
		}
		if prop := vevent.GetProperty(ics.ComponentPropertySummary); prop != nil {
			event.Summary = prop.Value
		}
		if prop := vevent.GetProperty(ics.ComponentPropertyDescription); prop != nil {
			event.Description = prop.Value
		}

		events = append(events, event)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})

	return events, nil
}
