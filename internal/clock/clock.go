// Package clock decides what "today" means for the exchange.
//
// Nothing here caches a boundary: every StartOfToday call reads the clock
// again. A flow that needs the boundary and the calendar day to agree takes
// one Now() reading and derives both from it with StartOfDay and DayOf.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// DayLayout is the persisted form of a calendar day.
const DayLayout = "2006-01-02"

type Clock interface {
	Now() time.Time
}

// System reads the wall clock in Location (time.Local when nil).
type System struct {
	Location *time.Location
}

func (s System) Now() time.Time {
	if s.Location == nil {
		return time.Now()
	}
	return time.Now().In(s.Location)
}

// Day identifies a calendar day independent of time of day.
type Day string

func (d Day) String() string { return string(d) }

// DayOf returns the calendar day of t in t's own location.
func DayOf(t time.Time) Day {
	return Day(t.Format(DayLayout))
}

func ParseDay(s string) (Day, error) {
	if _, err := time.Parse(DayLayout, s); err != nil {
		return "", fmt.Errorf("parse day %q: %w", s, err)
	}
	return Day(s), nil
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func StartOfToday(c Clock) time.Time {
	return StartOfDay(c.Now())
}

func Today(c Clock) Day {
	return DayOf(c.Now())
}

// Manual is a settable clock for tests and replays.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
