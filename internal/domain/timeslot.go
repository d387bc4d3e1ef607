package domain

import (
	"fmt"
	"time"
)

// TimeSlot is one of the four fixed three-hour dispatch windows.
type TimeSlot string

const (
	SlotMorning   TimeSlot = "9am-12pm"
	SlotMidday    TimeSlot = "12pm-3pm"
	SlotAfternoon TimeSlot = "3pm-6pm"
	SlotEvening   TimeSlot = "6pm-9pm"
)

// SlotCutoff is how long before a slot starts its routes stop accepting orders.
const SlotCutoff = 20 * time.Minute

var slotStartHours = map[TimeSlot]int{
	SlotMorning:   9,
	SlotMidday:    12,
	SlotAfternoon: 15,
	SlotEvening:   18,
}

// AllSlots lists the slots in chronological order.
func AllSlots() []TimeSlot {
	return []TimeSlot{SlotMorning, SlotMidday, SlotAfternoon, SlotEvening}
}

func ParseTimeSlot(s string) (TimeSlot, error) {
	ts := TimeSlot(s)
	if _, ok := slotStartHours[ts]; !ok {
		return "", fmt.Errorf("unknown time slot %q", s)
	}
	return ts, nil
}

func (s TimeSlot) Valid() bool {
	_, ok := slotStartHours[s]
	return ok
}

// StartOn returns the slot start on the calendar day of ref, in ref's location.
func (s TimeSlot) StartOn(ref time.Time) time.Time {
	y, m, d := ref.Date()
	return time.Date(y, m, d, slotStartHours[s], 0, 0, 0, ref.Location())
}

func (s TimeSlot) EndOn(ref time.Time) time.Time {
	return s.StartOn(ref).Add(3 * time.Hour)
}

// Next returns the following slot and whether it falls on the next day.
func (s TimeSlot) Next() (TimeSlot, bool) {
	slots := AllSlots()
	for i, v := range slots {
		if v == s && i < len(slots)-1 {
			return slots[i+1], false
		}
	}
	return SlotMorning, true
}

// SlotWindow describes whether today's window for a slot still accepts orders.
type SlotWindow struct {
	Slot               TimeSlot
	Open               bool
	ClosesAt           time.Time
	MinutesUntilClosed int
	NextSlot           TimeSlot
	NextSlotTomorrow   bool
}

// Window evaluates the slot's booking window at now. A slot is closed from
// SlotCutoff before its start until its end; after the end it reopens for
// the following day.
func (s TimeSlot) Window(now time.Time) SlotWindow {
	closesAt := s.StartOn(now).Add(-SlotCutoff)
	end := s.EndOn(now)

	w := SlotWindow{Slot: s, ClosesAt: closesAt, Open: true}
	switch {
	case now.Before(closesAt):
		w.MinutesUntilClosed = int(closesAt.Sub(now) / time.Minute)
	case now.Before(end):
		w.Open = false
		w.NextSlot, w.NextSlotTomorrow = s.Next()
	default:
		w.ClosesAt = closesAt.AddDate(0, 0, 1)
		w.MinutesUntilClosed = int(w.ClosesAt.Sub(now) / time.Minute)
	}

	return w
}
