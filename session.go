package shuttle

import (
	"context"
	"sync"
	"time"
)

const DefaultTickInterval = time.Second

// Session drives the countdown for whatever is currently being
// displayed. Starting a new query, or switching reference clock, ends
// the previous countdown before the next one begins, so a value from
// an old query is never published after the switch.
type Session struct {
	Resolver  Resolver
	Wall      Clock
	Reference Clock
	Interval  time.Duration
	Publish   func(Display)
	Observer  CountdownObserver

	newTicker func(time.Duration) (<-chan time.Time, func())

	mutex   sync.Mutex
	parent  context.Context
	query   Query
	running bool
	epoch   uint64
	cancel  context.CancelFunc
	done    chan struct{}
}

func systemTicker(interval time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(interval)
	return ticker.C, ticker.Stop
}

// Starts counting down for q, replacing any running countdown.
func (s *Session) Start(ctx context.Context, q Query) uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.parent = ctx
	s.query = q
	return s.startLocked()
}

// Switches the reference-time source and restarts the current query,
// if any.
func (s *Session) SetReference(reference Clock) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Reference = reference
	if s.running {
		s.startLocked()
	}
}

// Ends the running countdown. Blocks until its goroutine has exited.
func (s *Session) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.stopLocked()
	s.running = false
}

// Returns the current query, and whether a countdown is running.
func (s *Session) Query() (Query, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.query, s.running
}

func (s *Session) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

func (s *Session) startLocked() uint64 {
	s.stopLocked()

	s.epoch++
	epoch := s.epoch

	wall := s.Wall
	if wall == nil {
		wall = SystemClock{}
	}
	reference := s.Reference
	if reference == nil {
		reference = wall
	}
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	newTicker := s.newTicker
	if newTicker == nil {
		newTicker = systemTicker
	}
	publish := s.Publish

	countdown := NewCountdown(s.Resolver, wall, reference, s.query, s.Observer)

	ctx, cancel := context.WithCancel(s.parent)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.running = true

	go func() {
		defer close(done)
		ticks, stop := newTicker(interval)
		defer stop()

		countdown.Run(ctx, ticks, func(d Display) {
			d.Epoch = epoch
			if publish != nil {
				publish(d)
			}
		})
	}()

	return epoch
}
