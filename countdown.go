package shuttle

import (
	"context"
	"fmt"
	"time"

	"seikabus.dev/shuttle/model"
)

// What's being counted down to.
type Query struct {
	Date      time.Time
	Direction model.Direction
}

type Resolver interface {
	NextDeparture(instant time.Time, direction model.Direction) model.Departure
}

// Receives countdown lifecycle events. Implementations must be safe
// for concurrent use, as every active countdown reports to the same
// observer.
type CountdownObserver interface {
	ObserveTick()
	ObserveResolution(kind model.DepartureKind)
	ObserveRetarget()
}

type DisplayKind int

const (
	DisplayCountdown DisplayKind = iota
	DisplayInterval
	DisplayEnded
)

func (k DisplayKind) String() string {
	switch k {
	case DisplayCountdown:
		return "countdown"
	case DisplayInterval:
		return "interval"
	case DisplayEnded:
		return "ended"
	}
	return fmt.Sprintf("DisplayKind(%d)", int(k))
}

// A countdown value as published once per tick.
type Display struct {
	Kind DisplayKind

	// "MM:SS", minutes unbounded. Countdown only.
	Remaining string
	Seconds   int64

	Departure model.Departure

	// Set by Session. Identifies the query the value belongs to.
	Epoch uint64
}

func (d Display) String() string {
	switch d.Kind {
	case DisplayCountdown:
		return fmt.Sprintf("次は %s あと %s", d.Departure.Time.Format("15:04"), d.Remaining)
	case DisplayInterval:
		if d.Departure.StartLabel != "" {
			return fmt.Sprintf("%s (%s～)", d.Departure.Description, d.Departure.StartLabel)
		}
		return d.Departure.Description
	}
	return "本日の運行は終了しました"
}

func formatRemaining(seconds int64) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

type countdownState struct {
	target model.Departure

	// Wall clock instant and the virtual instant it corresponds
	// to. Captured when the current target was resolved.
	realRef    time.Time
	virtualRef time.Time

	remaining int64
}

// Countdown tracks the time left until the next departure for a
// query. It's not safe for concurrent use; Session serializes access
// by owning each Countdown from a single goroutine.
type Countdown struct {
	resolver Resolver
	wall     Clock
	query    Query
	observer CountdownObserver

	state countdownState
}

// Creates a Countdown and resolves its first target.
//
// If the query is for the reference instant's calendar day, the
// countdown runs from the reference instant. For any other day it
// runs from the queried instant itself. Either way, the virtual clock
// then advances with the wall clock. The observer may be nil.
func NewCountdown(resolver Resolver, wall Clock, reference Clock, q Query, observer CountdownObserver) *Countdown {
	base := q.Date
	if ref := reference.Now(); SameDay(ref, q.Date, q.Date.Location()) {
		base = ref
	}

	c := &Countdown{
		resolver: resolver,
		wall:     wall,
		query:    q,
		observer: observer,
	}

	c.state = countdownState{
		target:     c.resolve(base),
		realRef:    wall.Now(),
		virtualRef: base,
	}

	return c
}

func (c *Countdown) resolve(instant time.Time) model.Departure {
	departure := c.resolver.NextDeparture(instant, c.query.Direction)
	if c.observer != nil {
		c.observer.ObserveResolution(departure.Kind)
	}
	return departure
}

func (c *Countdown) Query() Query {
	return c.query
}

func (c *Countdown) Target() model.Departure {
	return c.state.target
}

// Maps a wall clock instant to the countdown's virtual clock.
func (c *Countdown) VirtualNow(wallNow time.Time) time.Time {
	return c.state.virtualRef.Add(wallNow.Sub(c.state.realRef))
}

// Advances the countdown to the current wall clock instant. Returns
// false if there's nothing to publish this tick, which happens when
// the target expired and a new one was picked.
func (c *Countdown) Tick() (Display, bool) {
	if c.observer != nil {
		c.observer.ObserveTick()
	}

	target := c.state.target
	switch target.Kind {
	case model.DepartureInterval:
		return Display{Kind: DisplayInterval, Departure: target}, true
	case model.DepartureNone:
		return Display{Kind: DisplayEnded, Departure: target}, true
	}

	wallNow := c.wall.Now()
	now := c.VirtualNow(wallNow)

	remaining := int64(target.Time.Sub(now).Truncate(time.Second) / time.Second)
	if remaining > 0 {
		c.state.remaining = remaining
		return Display{
			Kind:      DisplayCountdown,
			Remaining: formatRemaining(remaining),
			Seconds:   remaining,
			Departure: target,
		}, true
	}

	next := c.resolve(now)
	if !next.Equal(target) {
		c.state = countdownState{
			target:     next,
			realRef:    wallNow,
			virtualRef: now,
		}
		if c.observer != nil {
			c.observer.ObserveRetarget()
		}
		return Display{}, false
	}

	c.state.remaining = 0
	return Display{
		Kind:      DisplayCountdown,
		Remaining: formatRemaining(0),
		Departure: target,
	}, true
}

// Publishes the current value, then a new one for every tick
// received, until ctx is done. Nothing is published once ctx is done.
func (c *Countdown) Run(ctx context.Context, ticks <-chan time.Time, publish func(Display)) {
	emit := func() {
		d, ok := c.Tick()
		if !ok || ctx.Err() != nil {
			return
		}
		publish(d)
	}

	emit()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			if ctx.Err() != nil {
				return
			}
			emit()
		}
	}
}
