// Package schedule resolves the single execution instant of a run.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidClock = errors.New("execution time must be HH:MM:SS")

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// ParseClock parses HH:MM:SS.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
		vals[i] = v
	}
	c := Clock{Hour: vals[0], Minute: vals[1], Second: vals[2]}
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 || c.Second < 0 || c.Second > 59 {
		return Clock{}, fmt.Errorf("%w: %q out of range", ErrInvalidClock, s)
	}
	return c, nil
}

// Gate holds the target instant, computed once per run.
type Gate struct {
	target time.Time
}

// NewGate resolves clock on the calendar day of now in loc. A clock already
// behind now yields a gate that has elapsed.
func NewGate(now time.Time, loc *time.Location, c Clock) Gate {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	target := time.Date(local.Year(), local.Month(), local.Day(), c.Hour, c.Minute, c.Second, 0, loc)
	return Gate{target: target}
}

// At builds a gate for an absolute instant.
func At(target time.Time) Gate {
	return Gate{target: target}
}

// Target returns the execution instant.
func (g Gate) Target() time.Time { return g.target }

// Elapsed reports whether now has reached the target.
func (g Gate) Elapsed(now time.Time) bool {
	return !now.Before(g.target)
}

// Remaining returns the time left until the target, floored at zero.
func (g Gate) Remaining(now time.Time) time.Duration {
	if d := g.target.Sub(now); d > 0 {
		return d
	}
	return 0
}
