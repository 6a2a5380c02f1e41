package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Holds all external facing types and constants.

const HoursPerDay = 24

var ErrUnknownDirection = errors.New("unknown direction")

type Variant int

const (
	VariantWeekday Variant = iota
	VariantSaturday
	VariantNoService
)

func (v Variant) String() string {
	switch v {
	case VariantWeekday:
		return "weekday"
	case VariantSaturday:
		return "saturday"
	case VariantNoService:
		return "no_service"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekday":
		return VariantWeekday, nil
	case "saturday":
		return VariantSaturday, nil
	case "no_service", "sunday", "holiday":
		return VariantNoService, nil
	}
	return 0, fmt.Errorf("unknown variant '%s'", s)
}

type Direction int

const (
	DirectionAToB Direction = iota
	DirectionBToA
)

// Both directions, in display order.
var Directions = []Direction{DirectionAToB, DirectionBToA}

func (d Direction) String() string {
	switch d {
	case DirectionAToB:
		return "kokusai_to_seika"
	case DirectionBToA:
		return "seika_to_kokusai"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Label is the stop the bus departs from.
func (d Direction) Label() string {
	switch d {
	case DirectionAToB:
		return "国際会館発"
	case DirectionBToA:
		return "京都精華大学発"
	}
	return d.String()
}

func (d Direction) Opposite() Direction {
	if d == DirectionAToB {
		return DirectionBToA
	}
	return DirectionAToB
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kokusai_to_seika", "a_to_b", "a":
		return DirectionAToB, nil
	case "seika_to_kokusai", "b_to_a", "b":
		return DirectionBToA, nil
	}
	return 0, fmt.Errorf("%w '%s'", ErrUnknownDirection, s)
}

// HourEntry is one of NoBus, Interval or Specific.
type HourEntry interface {
	isHourEntry()
}

type NoBus struct{}

// Buses run at a short, unspecified interval during the hour. Only
// the first operating hour of the day carries a start minute.
type Interval struct {
	Description string
	StartMinute int
	HasStart    bool
}

// Departures at exact minutes. Minutes are strictly ascending.
type Specific struct {
	Minutes []int
}

func (NoBus) isHourEntry()    {}
func (Interval) isHourEntry() {}
func (Specific) isHourEntry() {}

// Entries indexed by hour of day. A nil entry means no bus.
type DirectionTable [HoursPerDay]HourEntry

func (t *DirectionTable) Entry(hour int) HourEntry {
	if t == nil || hour < 0 || hour >= HoursPerDay || t[hour] == nil {
		return NoBus{}
	}
	return t[hour]
}

func (t *DirectionTable) Validate() error {
	if t == nil {
		return nil
	}
	for hour, entry := range t {
		switch e := entry.(type) {
		case nil, NoBus:
		case Interval:
			if e.Description == "" {
				return fmt.Errorf("hour %d: interval without description", hour)
			}
			if e.HasStart && (e.StartMinute < 0 || e.StartMinute > 59) {
				return fmt.Errorf("hour %d: invalid start minute %d", hour, e.StartMinute)
			}
		case Specific:
			if len(e.Minutes) == 0 {
				return fmt.Errorf("hour %d: no departure minutes", hour)
			}
			prev := -1
			for _, m := range e.Minutes {
				if m < 0 || m > 59 {
					return fmt.Errorf("hour %d: invalid minute %d", hour, m)
				}
				if m <= prev {
					return fmt.Errorf("hour %d: minutes not strictly ascending at %d", hour, m)
				}
				prev = m
			}
		default:
			return fmt.Errorf("hour %d: unexpected entry %T", hour, entry)
		}
	}
	return nil
}

// The complete timetable asset: one DirectionTable per variant and
// direction. Missing tables have no buses.
type Timetable struct {
	Tables map[Variant]map[Direction]*DirectionTable
}

func NewTimetable() *Timetable {
	return &Timetable{Tables: map[Variant]map[Direction]*DirectionTable{}}
}

func (tt *Timetable) Table(variant Variant, direction Direction) *DirectionTable {
	if tt == nil || tt.Tables == nil {
		return nil
	}
	return tt.Tables[variant][direction]
}

// Returns the table for variant and direction, creating it if needed.
func (tt *Timetable) Ensure(variant Variant, direction Direction) *DirectionTable {
	if tt.Tables == nil {
		tt.Tables = map[Variant]map[Direction]*DirectionTable{}
	}
	if tt.Tables[variant] == nil {
		tt.Tables[variant] = map[Direction]*DirectionTable{}
	}
	if tt.Tables[variant][direction] == nil {
		tt.Tables[variant][direction] = &DirectionTable{}
	}
	return tt.Tables[variant][direction]
}

func (tt *Timetable) Validate() error {
	if tt == nil {
		return fmt.Errorf("nil timetable")
	}
	for variant, tables := range tt.Tables {
		if variant == VariantNoService && len(tables) > 0 {
			return fmt.Errorf("%s: tables given for a day without service", variant)
		}
		for direction, table := range tables {
			if err := table.Validate(); err != nil {
				return fmt.Errorf("%s %s: %w", variant, direction, err)
			}
		}
	}
	return nil
}

type DepartureKind int

const (
	DepartureNone DepartureKind = iota
	DepartureSpecific
	DepartureInterval
)

func (k DepartureKind) String() string {
	switch k {
	case DepartureNone:
		return "none"
	case DepartureSpecific:
		return "specific"
	case DepartureInterval:
		return "interval"
	}
	return fmt.Sprintf("DepartureKind(%d)", int(k))
}

// Result of a next departure lookup.
type Departure struct {
	Kind DepartureKind

	// Set for DepartureSpecific.
	Time time.Time

	// Set for DepartureInterval. StartLabel ("HH:MM") is only
	// present when the interval block starts after the queried
	// instant.
	Description string
	StartLabel  string
}

func NoDeparture() Departure {
	return Departure{Kind: DepartureNone}
}

func SpecificDeparture(t time.Time) Departure {
	return Departure{Kind: DepartureSpecific, Time: t}
}

func IntervalDeparture(description, startLabel string) Departure {
	return Departure{Kind: DepartureInterval, Description: description, StartLabel: startLabel}
}

func (d Departure) Equal(o Departure) bool {
	return d.Kind == o.Kind &&
		d.Time.Equal(o.Time) &&
		d.Description == o.Description &&
		d.StartLabel == o.StartLabel
}

type StatusKind int

const (
	StatusNormal StatusKind = iota
	StatusSpecial
	StatusSuspended
	StatusLoading
)

func (k StatusKind) String() string {
	switch k {
	case StatusNormal:
		return "NORMAL"
	case StatusSpecial:
		return "SPECIAL"
	case StatusSuspended:
		return "SUSPENDED"
	case StatusLoading:
		return "LOADING"
	}
	return fmt.Sprintf("StatusKind(%d)", int(k))
}

// Operational status of the line on a given day.
type Status struct {
	Kind    StatusKind
	Message string
	URL     string
}

// An event in one of the operation calendars.
type Event struct {
	Calendar    string
	UID         string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
}

// Overlaps reports whether the event intersects [start, end).
func (e Event) Overlaps(start, end time.Time) bool {
	return e.Start.Before(end) && e.End.After(start)
}
