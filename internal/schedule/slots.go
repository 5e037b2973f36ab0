package schedule

import (
	"math"
	"math/rand"
	"time"
)

const (
	SlotLength        = 30 * time.Minute
	businessDaysShown = 2
	lookaheadDays     = 5
	availableCutoff   = 0.35
)

// Availability decides whether a generated slot can be booked. It is the
// seam for a real scheduling backend.
type Availability interface {
	Available(slot time.Time, index int) bool
}

// SeededAvailability marks slots available from a per-session seed so the
// answer is stable within a session.
type SeededAvailability struct {
	Seed float64
}

// NewSessionAvailability draws a fresh seed.
func NewSessionAvailability() SeededAvailability {
	return SeededAvailability{Seed: rand.Float64()}
}

func (s SeededAvailability) Available(_ time.Time, index int) bool {
	x := math.Sin(s.Seed+float64(index)) * 10000
	return x-math.Floor(x) >= availableCutoff
}

// Slots lists every generated slot and the bookable subset, in UTC.
type Slots struct {
	Available []time.Time `json:"availableSlots"`
	All       []time.Time `json:"allSlots"`
}

// Contains reports whether t is one of the available slots.
func (s Slots) Contains(t time.Time) bool {
	for _, slot := range s.Available {
		if slot.Equal(t) {
			return true
		}
	}
	return false
}

// AvailableTimeSlots enumerates 30-minute slots over the next two business
// days, looking at most five days ahead. Today's slots start at now rounded
// up to the next half hour.
func (c *Calendar) AvailableTimeSlots(now time.Time, availability Availability) Slots {
	local := now.In(c.loc)
	y, m, d := local.Date()

	var out Slots
	index := 0
	found := 0
	for i := 0; i < lookaheadDays && found < businessDaysShown; i++ {
		day := time.Date(y, m, d+i, 0, 0, 0, 0, c.loc)
		w, ok := WindowFor(day)
		if !ok {
			continue
		}
		found++

		start, end := c.bounds(day, w)
		if i == 0 && local.After(start) {
			start = roundUp(local)
		}

		for slot := start; slot.Before(end); slot = slot.Add(SlotLength) {
			utc := slot.UTC()
			out.All = append(out.All, utc)
			if availability.Available(utc, index) {
				out.Available = append(out.Available, utc)
			}
			index++
		}
	}
	return out
}

func roundUp(t time.Time) time.Time {
	r := t.Truncate(SlotLength)
	if r.Before(t) {
		r = r.Add(SlotLength)
	}
	return r
}
