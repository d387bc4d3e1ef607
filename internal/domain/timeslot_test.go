package domain

import (
	"testing"
	"time"
)

func TestTimeSlotWindow(t *testing.T) {
	day := func(h, m int) time.Time { return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name         string
		slot         TimeSlot
		now          time.Time
		open         bool
		minutes      int
		next         TimeSlot
		nextTomorrow bool
	}{
		{name: "well before cutoff", slot: SlotMidday, now: day(10, 0), open: true, minutes: 100},
		{name: "at cutoff", slot: SlotMidday, now: day(11, 40), open: false, next: SlotAfternoon},
		{name: "during slot", slot: SlotEvening, now: day(19, 30), open: false, next: SlotMorning, nextTomorrow: true},
		{name: "after slot reopens for tomorrow", slot: SlotMorning, now: day(13, 0), open: true, minutes: 20*60 - 20},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := tc.slot.Window(tc.now)
			if w.Open != tc.open {
				t.Fatalf("open = %v, want %v", w.Open, tc.open)
			}
			if tc.open && w.MinutesUntilClosed != tc.minutes {
				t.Fatalf("minutes until closed = %d, want %d", w.MinutesUntilClosed, tc.minutes)
			}
			if !tc.open {
				if w.NextSlot != tc.next || w.NextSlotTomorrow != tc.nextTomorrow {
					t.Fatalf("next = %s (tomorrow=%v), want %s (tomorrow=%v)", w.NextSlot, w.NextSlotTomorrow, tc.next, tc.nextTomorrow)
				}
			}
		})
	}
}

func TestParseTimeSlot(t *testing.T) {
	if _, err := ParseTimeSlot("3pm-6pm"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseTimeSlot("noon"); err == nil {
		t.Fatalf("expected error for unknown slot")
	}
}
