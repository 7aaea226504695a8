package ics

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"calendar-app/internal/event"
)

var testLoc = time.FixedZone("wall", 2*3600)

func sample() []event.Event {
	return []event.Event{
		{
			ID:          "b",
			Title:       "Holiday",
			Date:        "2025-06-01",
			EndDate:     "2025-06-07",
			Description: "Beach",
			RemindMode:  event.Popup,
			Color:       "green",
		},
		{
			ID:         "a",
			Title:      "Dentist",
			Date:       "2025-05-21",
			EndDate:    "2025-05-21",
			Start:      "09:00",
			End:        "10:00",
			RemindMode: event.MinutesBefore(30),
			Color:      "default",
		},
	}
}

func TestExport(t *testing.T) {
	stamp := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	out := Export(sample(), testLoc, stamp)

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"PRODID:" + productID,
		"UID:a",
		"SUMMARY:Dentist",
		"DTSTART:20250521T070000Z",
		"DTEND:20250521T080000Z",
		"TRIGGER:-PT30M",
		"UID:b",
		"DTSTART;VALUE=DATE:20250601",
		"DTEND;VALUE=DATE:20250608",
		"CATEGORIES:green",
		"DESCRIPTION:Beach",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "CATEGORIES:default") {
		t.Error("default color exported as a category")
	}
	if strings.Count(out, "BEGIN:VALARM") != 1 {
		t.Errorf("expected one alarm, got %d", strings.Count(out, "BEGIN:VALARM"))
	}
}

func TestExportParsesBack(t *testing.T) {
	out := Export(sample(), testLoc, time.Now())
	cal, err := ical.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseCalendar: %v", err)
	}
	events := cal.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if p := events[1].GetProperty(ical.ComponentPropertySummary); p == nil || p.Value != "Dentist" {
		t.Errorf("summary: %+v", p)
	}
}

func TestExportSkipsUnparseableDates(t *testing.T) {
	events := append(sample(),
		event.Event{ID: "bad-date", Title: "Broken", Date: "21/05/2025", EndDate: "21/05/2025"},
		event.Event{ID: "bad-time", Title: "Late", Date: "2025-05-22", EndDate: "2025-05-22", Start: "25:00", End: "26:00", RemindMode: event.MinutesBefore(10)},
	)
	out := Export(events, testLoc, time.Now())

	if n := strings.Count(out, "BEGIN:VEVENT"); n != 2 {
		t.Errorf("got %d VEVENTs, want 2\n%s", n, out)
	}
	for _, unwanted := range []string{"UID:bad-date", "UID:bad-time", "SUMMARY:Broken", "SUMMARY:Late"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("export contains %q from a skipped event", unwanted)
		}
	}

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseCalendar: %v", err)
	}
	for _, vev := range cal.Events() {
		if vev.GetProperty(ical.ComponentPropertyDtStart) == nil {
			t.Errorf("VEVENT %s without DTSTART", vev.Id())
		}
	}
}

func TestExportText(t *testing.T) {
	got := ExportText(sample())
	want := "Event 1:\n" +
		"   Title: Dentist\n" +
		"   Date: 2025-05-21\n" +
		"   Time: 09:00 – 10:00\n" +
		"   🔔 Reminder: 30" +
		"\n\n---\n\n" +
		"Event 2:\n" +
		"   Title: Holiday\n" +
		"   Date: 2025-06-01\n" +
		"   Time: All day\n" +
		"   Description: Beach\n" +
		"   🔔 Reminder: popup\n" +
		"   Color: green"
	if got != want {
		t.Errorf("ExportText:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestExportTextMultiDayTimed(t *testing.T) {
	ev := event.Event{Title: "Trip", Date: "2025-05-21", EndDate: "2025-05-22", Start: "22:00", End: "06:00"}
	got := ExportText([]event.Event{ev})
	if !strings.Contains(got, "Time: 2025-05-21 22:00 – 2025-05-22 06:00") {
		t.Errorf("multi-day time line: %s", got)
	}
	if ExportText(nil) != "" {
		t.Error("empty export should be empty")
	}
}
