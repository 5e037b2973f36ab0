// Package schedule decides business hours for the callback team and lists
// the callback slots offered to applicants.
package schedule

import (
	"time"
)

// DefaultTimezone is the zone all business-hour rules are evaluated in.
const DefaultTimezone = "America/Los_Angeles"

// Window is an opening interval expressed in local hours.
type Window struct {
	Open  int
	Close int
}

var (
	WeekdayWindow = Window{Open: 5, Close: 19}
	ShortWindow   = Window{Open: 8, Close: 15}
)

// Calendar evaluates business rules in one fixed location.
type Calendar struct {
	loc *time.Location
}

// NewCalendar loads the named zone.
func NewCalendar(timezone string) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &Calendar{loc: loc}, nil
}

// MustCalendar is NewCalendar for known-good zones.
func MustCalendar(timezone string) *Calendar {
	c, err := NewCalendar(timezone)
	if err != nil {
		panic(err)
	}
	return c
}

// Location returns the calendar zone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsHoliday reports the federal holidays the team is closed on. Floating
// holidays are matched by weekday and day-of-month range.
func IsHoliday(d time.Time) bool {
	m, day, wd := d.Month(), d.Day(), d.Weekday()
	switch {
	case m == time.January && day == 1:
		return true
	case m == time.January && wd == time.Monday && day >= 15 && day <= 21:
		return true // Martin Luther King Jr. Day
	case m == time.February && wd == time.Monday && day >= 15 && day <= 21:
		return true // Presidents Day
	case m == time.May && wd == time.Monday && day >= 25:
		return true // Memorial Day
	case m == time.July && day == 4:
		return true
	case m == time.September && wd == time.Monday && day <= 7:
		return true // Labor Day
	case m == time.October && wd == time.Monday && day >= 8 && day <= 14:
		return true // Columbus Day
	case m == time.November && day == 11:
		return true
	case isThanksgiving(d):
		return true
	case m == time.December && day == 25:
		return true
	}
	return false
}

func isThanksgiving(d time.Time) bool {
	return d.Month() == time.November && d.Weekday() == time.Thursday && d.Day() >= 22 && d.Day() <= 28
}

// IsSpecialDay reports days that keep the short window: the day after
// Thanksgiving, Christmas Eve and New Year's Eve.
func IsSpecialDay(d time.Time) bool {
	if isThanksgiving(d.AddDate(0, 0, -1)) {
		return true
	}
	return d.Month() == time.December && (d.Day() == 24 || d.Day() == 31)
}

// WindowFor returns the opening window of the local day d, or false when
// the day is closed.
func WindowFor(d time.Time) (Window, bool) {
	if d.Weekday() == time.Sunday || IsHoliday(d) {
		return Window{}, false
	}
	if IsSpecialDay(d) || d.Weekday() == time.Saturday {
		return ShortWindow, true
	}
	return WeekdayWindow, true
}

// IsBusinessHours reports whether now falls inside the day's window.
// Both ends of the window are inclusive.
func (c *Calendar) IsBusinessHours(now time.Time) bool {
	local := now.In(c.loc)
	w, ok := WindowFor(local)
	if !ok {
		return false
	}
	start, end := c.bounds(local, w)
	return !local.Before(start) && !local.After(end)
}

func (c *Calendar) bounds(day time.Time, w Window) (time.Time, time.Time) {
	y, m, d := day.Date()
	return time.Date(y, m, d, w.Open, 0, 0, 0, c.loc), time.Date(y, m, d, w.Close, 0, 0, 0, c.loc)
}
