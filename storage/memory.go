package storage

import (
	"sort"
	"sync"

	"seikabus.dev/shuttle/model"
)

// In memory implementation of Storage

type MemoryStorage struct {
	mutex  sync.RWMutex
	Feeds  map[string]*CalendarFeed
	Events map[string][]model.Event
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Feeds:  map[string]*CalendarFeed{},
		Events: map[string][]model.Event{},
	}
}

func (s *MemoryStorage) ListFeeds(filter ListFeedsFilter) ([]*CalendarFeed, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	feeds := []*CalendarFeed{}
	for _, feed := range s.Feeds {
		if filter.URL != "" && feed.URL != filter.URL {
			continue
		}
		f := *feed
		feeds = append(feeds, &f)
	}
	sort.Slice(feeds, func(i, j int) bool {
		return feeds[i].RetrievedAt.After(feeds[j].RetrievedAt)
	})
	return feeds, nil
}

func (s *MemoryStorage) WriteFeed(feed *CalendarFeed) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	f := *feed
	f.RetrievedAt = f.RetrievedAt.UTC()
	f.RefreshedAt = f.RefreshedAt.UTC()
	s.Feeds[feed.URL] = &f
	return nil
}

func (s *MemoryStorage) WriteEvents(url string, events []model.Event) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stored := make([]model.Event, 0, len(events))
	for _, e := range events {
		e.Calendar = url
		stored = append(stored, normalizeEvent(e))
	}
	s.Events[url] = stored
	return nil
}

func (s *MemoryStorage) ListEvents(filter ListEventsFilter) ([]model.Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	events := []model.Event{}
	for _, calendar := range s.Events {
		for _, e := range calendar {
			if filter.match(e) {
				events = append(events, e)
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		if events[i].Calendar != events[j].Calendar {
			return events[i].Calendar < events[j].Calendar
		}
		return events[i].UID < events[j].UID
	})

	return events, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
