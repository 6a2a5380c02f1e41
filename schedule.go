package shuttle

import (
	"fmt"
	"time"

	"seikabus.dev/shuttle/model"
)

const DefaultTimezone = "Asia/Tokyo"

// Schedule resolves departures from an immutable timetable. It holds
// no mutable state and is safe for concurrent use.
type Schedule struct {
	Timetable *model.Timetable

	location *time.Location
}

// Creates a Schedule for the given timetable, authored in loc. A
// timetable violating its invariants is a configuration fault and is
// rejected here, so resolution itself never fails.
func NewSchedule(tt *model.Timetable, loc *time.Location) (*Schedule, error) {
	if loc == nil {
		return nil, fmt.Errorf("missing location")
	}
	if err := tt.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timetable: %w", err)
	}
	return &Schedule{
		Timetable: tt,
		location:  loc,
	}, nil
}

func (s *Schedule) Location() *time.Location {
	return s.location
}

// Maps the calendar day of date, as observed in the schedule's
// timezone, to the timetable variant in effect.
func (s *Schedule) ResolveVariant(date time.Time) model.Variant {
	switch date.In(s.location).Weekday() {
	case time.Sunday:
		return model.VariantNoService
	case time.Saturday:
		return model.VariantSaturday
	}
	return model.VariantWeekday
}

func (s *Schedule) table(date time.Time, direction model.Direction) *model.DirectionTable {
	variant := s.ResolveVariant(date)
	if variant == model.VariantNoService {
		return nil
	}
	return s.Timetable.Table(variant, direction)
}

// Returns hour:minute on the day of local.
func at(local time.Time, hour int, minute int) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, local.Location())
}

// Returns the next departure strictly after instant.
//
// All computations are done in the schedule's timezone, but a
// returned departure time is in the timezone used by the caller. A
// departure at exactly the queried instant counts as gone. Interval
// hours can't be counted down to, so they're reported as such: in
// progress if the instant falls within the hour, with a start label
// if the block starts later in the day. Schedules don't roll over
// into the next day.
func (s *Schedule) NextDeparture(instant time.Time, direction model.Direction) model.Departure {
	origTz := instant.Location()
	local := instant.In(s.location)

	if s.ResolveVariant(local) == model.VariantNoService {
		return model.NoDeparture()
	}

	table := s.table(local, direction)
	if table == nil {
		return model.NoDeparture()
	}

	hour, minute := local.Hour(), local.Minute()

	for h := hour; h < model.HoursPerDay; h++ {
		switch entry := table.Entry(h).(type) {
		case model.Interval:
			if h == hour {
				if entry.HasStart && minute < entry.StartMinute {
					// Service hasn't begun yet. The
					// nominal start is the first bus.
					return model.SpecificDeparture(at(local, h, entry.StartMinute).In(origTz))
				}
				return model.IntervalDeparture(entry.Description, "")
			}

			// Labelled with the top of the hour, even when the
			// block declares a later start minute.
			return model.IntervalDeparture(entry.Description, fmt.Sprintf("%02d:00", h))

		case model.Specific:
			for _, m := range entry.Minutes {
				if h > hour || m > minute {
					return model.SpecificDeparture(at(local, h, m).In(origTz))
				}
			}
		}
	}

	return model.NoDeparture()
}

// Returns the first departure of the day, regardless of time of
// day. Interval hours without a declared start have no absolute
// first time and are skipped.
func (s *Schedule) FirstDeparture(date time.Time, direction model.Direction) (time.Time, bool) {
	origTz := date.Location()
	local := date.In(s.location)

	table := s.table(local, direction)
	if table == nil {
		return time.Time{}, false
	}

	for h := 0; h < model.HoursPerDay; h++ {
		switch entry := table.Entry(h).(type) {
		case model.Interval:
			if !entry.HasStart {
				continue
			}
			return at(local, h, entry.StartMinute).In(origTz), true
		case model.Specific:
			if len(entry.Minutes) == 0 {
				continue
			}
			return at(local, h, entry.Minutes[0]).In(origTz), true
		}
	}

	return time.Time{}, false
}

// Returns the last departure of the day. Interval hours end at an
// unspecified minute, so a trailing interval hour yields false.
func (s *Schedule) LastDeparture(date time.Time, direction model.Direction) (time.Time, bool) {
	origTz := date.Location()
	local := date.In(s.location)

	table := s.table(local, direction)
	if table == nil {
		return time.Time{}, false
	}

	for h := model.HoursPerDay - 1; h >= 0; h-- {
		switch entry := table.Entry(h).(type) {
		case model.Interval:
			return time.Time{}, false
		case model.Specific:
			if len(entry.Minutes) == 0 {
				continue
			}
			return at(local, h, entry.Minutes[len(entry.Minutes)-1]).In(origTz), true
		}
	}

	return time.Time{}, false
}

// A line of the printed timetable.
type Row struct {
	Hour  int
	Entry model.HourEntry
}

// Returns the timetable for the day, from the first to the last hour
// with service. Hours in between without service are included as
// NoBus. Empty on days without service.
func (s *Schedule) Rows(date time.Time, direction model.Direction) []Row {
	table := s.table(date.In(s.location), direction)
	if table == nil {
		return nil
	}

	first, last := -1, -1
	for h := 0; h < model.HoursPerDay; h++ {
		if _, ok := table.Entry(h).(model.NoBus); ok {
			continue
		}
		if first < 0 {
			first = h
		}
		last = h
	}
	if first < 0 {
		return nil
	}

	rows := make([]Row, 0, last-first+1)
	for h := first; h <= last; h++ {
		rows = append(rows, Row{Hour: h, Entry: table.Entry(h)})
	}
	return rows
}
