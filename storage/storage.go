package storage

import (
	"time"

	"seikabus.dev/shuttle/model"
)

// Storage keeps downloaded operation calendars, so that status can
// be answered without hitting the network on every lookup, and
// survives restarts with the on-disk backends.
type Storage interface {
	// Retrieves all calendar feed records matching the given
	// filter, most recently retrieved first.
	ListFeeds(filter ListFeedsFilter) ([]*CalendarFeed, error)

	// Writes a CalendarFeed record. If a record with the same URL
	// exists, it is replaced.
	WriteFeed(feed *CalendarFeed) error

	// Replaces all events of the calendar at url.
	WriteEvents(url string, events []model.Event) error

	// Lists events matching the filter, ordered by start time.
	ListEvents(filter ListEventsFilter) ([]model.Event, error)

	Close() error
}

type ListFeedsFilter struct {
	// If set, only include the feed with the given URL.
	URL string
}

type ListEventsFilter struct {
	// If set, only include events from this calendar.
	URL string

	// If set, only include events overlapping [Start, End). Either
	// bound may be left zero.
	Start time.Time
	End   time.Time
}

// A downloaded calendar. Hash identifies the content last stored
// for the URL; RetrievedAt is when that content was first seen, and
// RefreshedAt when the URL was last successfully fetched.
type CalendarFeed struct {
	URL         string
	Hash        string
	RetrievedAt time.Time
	RefreshedAt time.Time
}

func (f ListEventsFilter) match(e model.Event) bool {
	if f.URL != "" && e.Calendar != f.URL {
		return false
	}
	if !f.Start.IsZero() && !e.End.After(f.Start) {
		return false
	}
	if !f.End.IsZero() && !e.Start.Before(f.End) {
		return false
	}
	return true
}

// All backends hand back times in UTC.
func normalizeEvent(e model.Event) model.Event {
	e.Start = e.Start.UTC()
	e.End = e.End.UTC()
	return e
}
