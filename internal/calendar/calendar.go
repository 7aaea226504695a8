// Package calendar answers range questions over a list of events: which
// events are active on a day, which timed events overlap a candidate, and
// which events match a search query.
package calendar

import (
	"sort"
	"strings"
	"time"

	"calendar-app/internal/event"
)

// ActiveOn returns every event whose inclusive [Date, EndDate] range contains
// dateKey. Time of day is ignored. Events with unparseable dates never match.
func ActiveOn(events []event.Event, dateKey string) []event.Event {
	day, err := time.Parse(event.DateLayout, dateKey)
	if err != nil {
		return []event.Event{}
	}
	out := make([]event.Event, 0)
	for _, ev := range events {
		if containsDay(ev, day) {
			out = append(out, ev)
		}
	}
	return out
}

func containsDay(ev event.Event, day time.Time) bool {
	start, err := time.Parse(event.DateLayout, ev.Date)
	if err != nil {
		return false
	}
	end, err := time.Parse(event.DateLayout, ev.LastDate())
	if err != nil {
		end = start
	}
	return !day.Before(start) && !day.After(end)
}

// Overlaps returns the timed events in existing whose [date+start,
// endDate+end) interval strictly intersects the candidate's. The event with
// id excludeID is skipped so an edited event never conflicts with itself.
// Candidates without both start and end never conflict.
func Overlaps(candidate event.Event, existing []event.Event, excludeID string, loc *time.Location) []event.Event {
	out := make([]event.Event, 0)
	if !candidate.Timed() {
		return out
	}
	cs, ok1 := candidate.StartAt(loc)
	ce, ok2 := candidate.EndAt(loc)
	if !ok1 || !ok2 {
		return out
	}
	for _, ev := range existing {
		if excludeID != "" && ev.ID == excludeID {
			continue
		}
		if !ev.Timed() {
			continue
		}
		es, ok1 := ev.StartAt(loc)
		ee, ok2 := ev.EndAt(loc)
		if !ok1 || !ok2 {
			continue
		}
		if cs.Before(ee) && es.Before(ce) {
			out = append(out, ev)
		}
	}
	return out
}

// Search returns events whose title or description contains query,
// case-insensitively, ordered by date. An empty query matches nothing.
func Search(events []event.Event, query string) []event.Event {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]event.Event, 0)
	if q == "" {
		return out
	}
	for _, ev := range events {
		if strings.Contains(searchText(ev), q) {
			out = append(out, ev)
		}
	}
	Sort(out)
	return out
}

func searchText(ev event.Event) string {
	return strings.ToLower(ev.Title + " " + ev.Description)
}

// Sort orders events by date, then start time (all-day first), then title.
func Sort(events []event.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.Title < b.Title
	})
}
