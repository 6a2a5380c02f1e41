package shuttle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seikabus.dev/shuttle/model"
	"seikabus.dev/shuttle/testutil"
)

// Counts calls to the wrapped resolver.
type countingResolver struct {
	Resolver

	mutex sync.Mutex
	calls []time.Time
}

func (r *countingResolver) NextDeparture(instant time.Time, direction model.Direction) model.Departure {
	r.mutex.Lock()
	r.calls = append(r.calls, instant)
	r.mutex.Unlock()
	return r.Resolver.NextDeparture(instant, direction)
}

func (r *countingResolver) Calls() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.calls)
}

type fixedResolver struct {
	departure model.Departure
}

func (r fixedResolver) NextDeparture(time.Time, model.Direction) model.Departure {
	return r.departure
}

type recordingObserver struct {
	mutex       sync.Mutex
	ticks       int
	resolutions map[model.DepartureKind]int
	retargets   int
}

func (o *recordingObserver) ObserveTick() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.ticks++
}

func (o *recordingObserver) ObserveResolution(kind model.DepartureKind) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if o.resolutions == nil {
		o.resolutions = map[model.DepartureKind]int{}
	}
	o.resolutions[kind]++
}

func (o *recordingObserver) ObserveRetarget() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.retargets++
}

// Some arbitrary real-world instant, far from the virtual ones.
var wallStart = time.Date(2026, 1, 15, 3, 17, 42, 250_000_000, time.UTC)

func TestVirtualNowFromFixedReference(t *testing.T) {
	s := testSchedule(t)

	t0 := monday(10, 30, 0)
	wall := testutil.NewManualClock(wallStart)
	c := NewCountdown(s, wall, FixedClock{Instant: t0}, Query{Date: t0, Direction: model.DirectionAToB}, nil)

	assert.True(t, t0.Equal(c.VirtualNow(wall.Now())))

	wall.Advance(65 * time.Second)
	virtual := c.VirtualNow(wall.Now())
	assert.True(t, t0.Add(65*time.Second).Equal(virtual), "got %s", virtual)
	assert.False(t, virtual.Equal(wall.Now()))
}

func TestCountdownTick(t *testing.T) {
	s := testSchedule(t)

	wall := testutil.NewManualClock(wallStart)
	ref := testutil.NewManualClock(monday(14, 9, 0))
	c := NewCountdown(s, wall, ref, Query{Date: monday(0, 0, 0), Direction: model.DirectionAToB}, nil)

	require.True(t, model.SpecificDeparture(monday(14, 10, 0)).Equal(c.Target()))

	for _, tc := range []struct {
		advance   time.Duration
		remaining string
		seconds   int64
	}{
		{0, "01:00", 60},
		{500 * time.Millisecond, "00:59", 59},
		{29 * time.Second, "00:30", 30},
		{29 * time.Second, "00:01", 1},
		{400 * time.Millisecond, "00:01", 1},
	} {
		wall.Advance(tc.advance)
		d, ok := c.Tick()
		require.True(t, ok)
		assert.Equal(t, DisplayCountdown, d.Kind)
		assert.Equal(t, tc.remaining, d.Remaining)
		assert.Equal(t, tc.seconds, d.Seconds)
	}

	// The reference clock isn't consulted after targeting.
	ref.Advance(time.Hour)
	d, ok := c.Tick()
	require.True(t, ok)
	assert.Equal(t, "00:01", d.Remaining)
	assert.Equal(t, "次は 14:10 あと 00:01", d.String())
}

func TestCountdownRetargetsExactlyOnce(t *testing.T) {
	resolver := &countingResolver{Resolver: testSchedule(t)}
	observer := &recordingObserver{}

	wall := testutil.NewManualClock(wallStart)
	ref := FixedClock{Instant: monday(14, 9, 0)}
	c := NewCountdown(resolver, wall, ref, Query{Date: monday(14, 9, 0), Direction: model.DirectionAToB}, observer)
	require.Equal(t, 1, resolver.Calls())

	// Cross the 14:10 boundary.
	wall.Advance(60*time.Second + 300*time.Millisecond)
	_, ok := c.Tick()
	assert.False(t, ok, "no value published on the retargeting tick")
	assert.Equal(t, 2, resolver.Calls())
	assert.Equal(t, 1, observer.retargets)
	assert.True(t, monday(14, 10, 0).Add(300*time.Millisecond).Equal(resolver.calls[1]))
	assert.True(t, model.SpecificDeparture(monday(14, 20, 0)).Equal(c.Target()))

	// Following ticks count down to the new target without
	// resolving again.
	for i := 0; i < 5; i++ {
		d, ok := c.Tick()
		require.True(t, ok)
		assert.Equal(t, "09:59", d.Remaining)
	}
	wall.Advance(10 * time.Second)
	d, ok := c.Tick()
	require.True(t, ok)
	assert.Equal(t, "09:49", d.Remaining)

	assert.Equal(t, 2, resolver.Calls())
	assert.Equal(t, 1, observer.retargets)
	assert.Equal(t, 7, observer.ticks)
	assert.Equal(t, 2, observer.resolutions[model.DepartureSpecific])

	// Reference pair was reset from the retargeting tick's wall
	// sample, so virtual time stays continuous.
	assert.True(t, monday(14, 10, 10).Add(300*time.Millisecond).Equal(c.VirtualNow(wall.Now())))
}

func TestCountdownIdenticalTargetPublishesZero(t *testing.T) {
	departure := model.SpecificDeparture(monday(14, 10, 0))
	observer := &recordingObserver{}

	wall := testutil.NewManualClock(wallStart)
	c := NewCountdown(fixedResolver{departure}, wall, FixedClock{Instant: monday(14, 9, 0)}, Query{Date: monday(14, 9, 0), Direction: model.DirectionAToB}, observer)

	wall.Advance(2 * time.Minute)
	for i := 0; i < 3; i++ {
		d, ok := c.Tick()
		require.True(t, ok)
		assert.Equal(t, DisplayCountdown, d.Kind)
		assert.Equal(t, "00:00", d.Remaining)
		assert.Equal(t, int64(0), d.Seconds)
	}
	assert.Equal(t, 0, observer.retargets)
	assert.True(t, departure.Equal(c.Target()))
}

func TestCountdownWithoutTarget(t *testing.T) {
	s := testSchedule(t)

	for _, tc := range []struct {
		name     string
		when     time.Time
		kind     DisplayKind
		rendered string
	}{
		{"interval in progress", monday(8, 5, 0), DisplayInterval, "every 7-8 min (first 8:00)"},
		{"interval later", monday(12, 58, 0), DisplayInterval, "every 7-8 min (13:00～)"},
		{"ended", monday(21, 1, 0), DisplayEnded, "本日の運行は終了しました"},
		{"no service", sunday(9, 0, 0), DisplayEnded, "本日の運行は終了しました"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			resolver := &countingResolver{Resolver: s}
			wall := testutil.NewManualClock(wallStart)
			c := NewCountdown(resolver, wall, FixedClock{Instant: tc.when}, Query{Date: tc.when, Direction: model.DirectionAToB}, nil)

			for i := 0; i < 3; i++ {
				wall.Advance(time.Hour)
				d, ok := c.Tick()
				require.True(t, ok)
				assert.Equal(t, tc.kind, d.Kind)
				assert.Equal(t, tc.rendered, d.String())
				assert.Empty(t, d.Remaining)
			}
			assert.Equal(t, 1, resolver.Calls())
		})
	}
}

func TestCountdownOtherDay(t *testing.T) {
	s := testSchedule(t)

	// Today is Monday, but Saturday is being looked at. The
	// countdown runs from the start of Saturday.
	wall := testutil.NewManualClock(wallStart)
	c := NewCountdown(s, wall, FixedClock{Instant: monday(14, 9, 0)}, Query{Date: saturday(0, 0, 0), Direction: model.DirectionAToB}, nil)

	require.True(t, model.SpecificDeparture(saturday(9, 0, 0)).Equal(c.Target()))

	d, ok := c.Tick()
	require.True(t, ok)
	assert.Equal(t, "540:00", d.Remaining)

	wall.Advance(time.Minute)
	d, ok = c.Tick()
	require.True(t, ok)
	assert.Equal(t, "539:00", d.Remaining)
}

func TestCountdownRun(t *testing.T) {
	s := testSchedule(t)

	wall := testutil.NewManualClock(wallStart)
	c := NewCountdown(s, wall, FixedClock{Instant: monday(14, 9, 0)}, Query{Date: monday(14, 9, 0), Direction: model.DirectionAToB}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan time.Time)
	published := make(chan Display, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx, ticks, func(d Display) { published <- d })
	}()

	assert.Equal(t, "01:00", (<-published).Remaining)

	wall.Advance(time.Second)
	ticks <- wall.Now()
	assert.Equal(t, "00:59", (<-published).Remaining)

	// Expiry: the retargeting tick publishes nothing, the next one
	// counts down to 14:20.
	wall.Advance(59 * time.Second)
	ticks <- wall.Now()
	ticks <- wall.Now()
	assert.Equal(t, "10:00", (<-published).Remaining)

	cancel()
	<-done
	assert.Len(t, published, 0)
}
