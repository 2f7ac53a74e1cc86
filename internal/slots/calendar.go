// Package slots computes the free appointment slots for a calendar date
// from a fixed per-day grid of bookable times.
package slots

import (
	"fmt"
	"sort"
	"time"
)

const (
	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"
	// ClockLayout is the wire format for slot times (24-hour).
	ClockLayout = "15:04"
)

// Grid is the fixed set of bookable time-of-day values for an operating
// day, plus the weekdays the business is closed. It is static
// configuration, not user data.
type Grid struct {
	times  []string
	closed map[time.Weekday]bool
}

// NewGrid builds a grid from explicit slot times. Times are normalized to
// canonical HH:MM, de-duplicated and kept in ascending order.
func NewGrid(times []string, closedWeekdays []time.Weekday) (Grid, error) {
	seen := make(map[string]bool, len(times))
	normalized := make([]string, 0, len(times))
	for _, t := range times {
		clock, err := ParseClock(t)
		if err != nil {
			return Grid{}, fmt.Errorf("grid time %q: %w", t, err)
		}
		if seen[clock] {
			continue
		}
		seen[clock] = true
		normalized = append(normalized, clock)
	}
	sort.Strings(normalized)

	closed := make(map[time.Weekday]bool, len(closedWeekdays))
	for _, wd := range closedWeekdays {
		closed[wd] = true
	}
	return Grid{times: normalized, closed: closed}, nil
}

// BuildGrid generates slot times every slotMinutes from start up to and
// including the last slot that begins before end.
func BuildGrid(start, end string, slotMinutes int, closedWeekdays []time.Weekday) (Grid, error) {
	if slotMinutes <= 0 {
		slotMinutes = 60
	}
	startClock, err := time.Parse(ClockLayout, start)
	if err != nil {
		return Grid{}, fmt.Errorf("parse start time: %w", err)
	}
	endClock, err := time.Parse(ClockLayout, end)
	if err != nil {
		return Grid{}, fmt.Errorf("parse end time: %w", err)
	}
	if !startClock.Before(endClock) {
		return Grid{}, fmt.Errorf("start %s must be before end %s", start, end)
	}

	step := time.Duration(slotMinutes) * time.Minute
	var times []string
	for cursor := startClock; cursor.Before(endClock); cursor = cursor.Add(step) {
		times = append(times, cursor.Format(ClockLayout))
	}
	return NewGrid(times, closedWeekdays)
}

// Times returns the grid's slot times in ascending order.
func (g Grid) Times() []string {
	out := make([]string, len(g.times))
	copy(out, g.times)
	return out
}

// Contains reports whether clock is one of the grid's slot values.
// The clock must already be in canonical HH:MM form.
func (g Grid) Contains(clock string) bool {
	for _, t := range g.times {
		if t == clock {
			return true
		}
	}
	return false
}

// IsClosed reports whether the business is closed on date's weekday.
// Closed is distinct from fully booked and callers must not conflate them.
func (g Grid) IsClosed(date time.Time) bool {
	return g.closed[date.Weekday()]
}

// FreeSlots returns every grid slot not present in occupied, in ascending
// order. A closed weekday yields nil regardless of occupancy. Occupied
// times that are not grid slots are ignored.
func FreeSlots(date time.Time, occupied map[string]struct{}, grid Grid) []string {
	if grid.IsClosed(date) {
		return nil
	}
	var free []string
	for _, t := range grid.times {
		if _, taken := occupied[t]; taken {
			continue
		}
		free = append(free, t)
	}
	return free
}

// ParseDate parses a strict YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q; expected YYYY-MM-DD", s)
	}
	return d, nil
}

// ParseClock parses a 24-hour HH:MM time of day and returns it in
// canonical form ("9:00" is rejected, "09:00" passes through).
func ParseClock(s string) (string, error) {
	c, err := time.Parse(ClockLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid time %q; expected HH:MM", s)
	}
	canonical := c.Format(ClockLayout)
	if canonical != s {
		return "", fmt.Errorf("invalid time %q; expected HH:MM", s)
	}
	return canonical, nil
}
