package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// Clock is a time of day in minutes from midnight, timezone-agnostic.
type Clock int

// ParseClock parses an "HH:MM" string into a Clock.
func ParseClock(raw string) (Clock, error) {
	s := strings.TrimSpace(raw)
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid clock value %q, expected HH:MM", raw)
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return 0, fmt.Errorf("invalid hour in clock value %q", raw)
	}
	minute, err := strconv.Atoi(m[2])
	if err != nil || minute > 59 {
		return 0, fmt.Errorf("invalid minute in clock value %q", raw)
	}

	return Clock(hour*60 + minute), nil
}

// ClockOf extracts the Clock for a wall-clock instant.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

// Window is a half-open [Start, End) time-of-day range. A Start later
// than the End wraps past midnight.
type Window struct {
	Start Clock
	End   Clock
}

// ParseWindow builds a Window from two "HH:MM" strings.
func ParseWindow(start, end string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: s, End: e}, nil
}

// Contains reports whether the instant's time of day falls inside the
// window. An empty window (Start == End) contains nothing.
func (w Window) Contains(t time.Time) bool {
	c := ClockOf(t)
	if w.Start == w.End {
		return false
	}
	if w.Start < w.End {
		return c >= w.Start && c < w.End
	}
	// Wraps midnight: inside when at or after the start, or before the end.
	return c >= w.Start || c < w.End
}
