package timeutil

import (
	"fmt"
	"time"
)

// LoadZone resolves a tz database name such as "Europe/Berlin". The empty
// string and "Local" select the host's zone.
func LoadZone(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", name, err)
	}
	return loc, nil
}

type zonedClock struct {
	c   Clock
	loc *time.Location
}

func (z zonedClock) Now() time.Time { return z.c.Now().In(z.loc) }

// InZone returns a clock that reports c's times in loc.
func InZone(c Clock, loc *time.Location) Clock {
	if loc == nil {
		return c
	}
	return zonedClock{c: c, loc: loc}
}
