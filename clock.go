package shuttle

import "time"

// Clock reports the current instant. It serves both as the wall clock
// that measures elapsed time and as the reference-time source a
// countdown is anchored to.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant. Used as a debug
// reference: a countdown anchored to it still advances in real time
// from the moment it starts.
type FixedClock struct {
	Instant time.Time
}

func (c FixedClock) Now() time.Time { return c.Instant }

// Reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
