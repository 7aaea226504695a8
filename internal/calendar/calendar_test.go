package calendar

import (
	"testing"
	"time"

	"calendar-app/internal/event"
)

func ids(events []event.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func TestActiveOnSingleDay(t *testing.T) {
	ev := event.Event{ID: "a", Title: "A", Date: "2025-05-21", EndDate: "2025-05-21"}
	events := []event.Event{ev}

	day, _ := time.Parse(event.DateLayout, "2025-05-10")
	for i := 0; i < 30; i++ {
		key := event.DateKey(day.AddDate(0, 0, i))
		got := ActiveOn(events, key)
		want := 0
		if key == "2025-05-21" {
			want = 1
		}
		if len(got) != want {
			t.Errorf("ActiveOn(%s) returned %d events, want %d", key, len(got), want)
		}
	}
}

func TestActiveOnMultiDay(t *testing.T) {
	ev := event.Event{ID: "trip", Title: "Trip", Date: "2025-05-30", EndDate: "2025-06-02"}
	events := []event.Event{ev}

	inside := []string{"2025-05-30", "2025-05-31", "2025-06-01", "2025-06-02"}
	outside := []string{"2025-05-29", "2025-06-03", "2024-05-31"}
	for _, d := range inside {
		if got := ActiveOn(events, d); len(got) != 1 {
			t.Errorf("ActiveOn(%s) = %v, want [trip]", d, ids(got))
		}
	}
	for _, d := range outside {
		if got := ActiveOn(events, d); len(got) != 0 {
			t.Errorf("ActiveOn(%s) = %v, want none", d, ids(got))
		}
	}
}

func TestActiveOnEmptyAndMissingEndDate(t *testing.T) {
	if got := ActiveOn(nil, "2025-05-21"); len(got) != 0 {
		t.Errorf("ActiveOn(nil) = %v", got)
	}
	ev := event.Event{ID: "a", Title: "A", Date: "2025-05-21"}
	if got := ActiveOn([]event.Event{ev}, "2025-05-21"); len(got) != 1 {
		t.Errorf("event without endDate not active on its date")
	}
	if got := ActiveOn([]event.Event{ev}, "not-a-date"); len(got) != 0 {
		t.Errorf("invalid date key matched %v", ids(got))
	}
}

func timed(id, date, endDate, start, end string) event.Event {
	return event.Event{ID: id, Title: id, Date: date, EndDate: endDate, Start: start, End: end}
}

func TestOverlaps(t *testing.T) {
	loc := time.UTC
	existing := []event.Event{
		timed("morning", "2025-05-21", "2025-05-21", "09:00", "10:00"),
		timed("lunch", "2025-05-21", "2025-05-21", "12:00", "13:00"),
		timed("overnight", "2025-05-21", "2025-05-22", "22:00", "02:00"),
		{ID: "allday", Title: "allday", Date: "2025-05-21", EndDate: "2025-05-21"},
	}

	tests := []struct {
		name      string
		candidate event.Event
		exclude   string
		want      []string
	}{
		{"inside morning", timed("c", "2025-05-21", "2025-05-21", "09:30", "09:45"), "", []string{"morning"}},
		{"touching end", timed("c", "2025-05-21", "2025-05-21", "10:00", "11:00"), "", nil},
		{"touching start", timed("c", "2025-05-21", "2025-05-21", "08:00", "09:00"), "", nil},
		{"spans two", timed("c", "2025-05-21", "2025-05-21", "09:30", "12:30"), "", []string{"morning", "lunch"}},
		{"next day early", timed("c", "2025-05-22", "2025-05-22", "01:00", "03:00"), "", []string{"overnight"}},
		{"excluded self", timed("morning", "2025-05-21", "2025-05-21", "09:00", "10:00"), "morning", nil},
		{"all-day candidate", event.Event{ID: "c", Date: "2025-05-21", EndDate: "2025-05-21"}, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Overlaps(tt.candidate, existing, tt.exclude, loc))
			if len(got) != len(tt.want) {
				t.Fatalf("Overlaps = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Overlaps = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestOverlapsSymmetric(t *testing.T) {
	pairs := [][2]event.Event{
		{timed("a", "2025-05-21", "2025-05-21", "09:00", "10:00"), timed("b", "2025-05-21", "2025-05-21", "09:59", "11:00")},
		{timed("a", "2025-05-21", "2025-05-23", "09:00", "10:00"), timed("b", "2025-05-22", "2025-05-22", "09:00", "10:00")},
		{timed("a", "2025-05-21", "2025-05-21", "09:00", "10:00"), timed("b", "2025-05-21", "2025-05-21", "10:00", "11:00")},
	}
	for _, p := range pairs {
		ab := len(Overlaps(p[0], []event.Event{p[1]}, "", time.UTC)) > 0
		ba := len(Overlaps(p[1], []event.Event{p[0]}, "", time.UTC)) > 0
		if ab != ba {
			t.Errorf("asymmetric overlap for %+v / %+v: %v vs %v", p[0], p[1], ab, ba)
		}
	}
}

func TestSearch(t *testing.T) {
	events := []event.Event{
		{ID: "2", Title: "Team sync", Date: "2025-06-01"},
		{ID: "1", Title: "Dentist", Description: "bring SYNC forms", Date: "2025-05-01"},
		{ID: "3", Title: "Gym", Date: "2025-05-02"},
	}
	got := ids(Search(events, "  Sync "))
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("Search = %v, want [1 2]", got)
	}
	if got := Search(events, ""); len(got) != 0 {
		t.Errorf("empty query matched %v", ids(got))
	}
}
