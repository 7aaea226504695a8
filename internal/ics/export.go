// Package ics exports the calendar as iCalendar and as the plain-text
// listing users download.
package ics

import (
	"sort"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"calendar-app/internal/event"
	appLog "calendar-app/internal/log"
)

const productID = "-//calendar-app//EN"

// Export renders events as a VCALENDAR. Timed events carry UTC
// date-times computed in loc; all-day events use VALUE=DATE with the
// exclusive end date the format requires. stamp becomes every DTSTAMP.
func Export(events []event.Event, loc *time.Location, stamp time.Time) string {
	if loc == nil {
		loc = time.Local
	}
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, ev := range events {
		span, ok := spanOf(ev, loc)
		if !ok {
			appLog.Warn("skipping unparseable dates in export", "id", ev.ID)
			continue
		}

		vev := cal.AddEvent(ev.ID)
		vev.SetDtStampTime(stamp)
		vev.SetSummary(ev.Title)
		if ev.Description != "" {
			vev.SetDescription(ev.Description)
		}
		if ev.Color != "" && ev.Color != "default" {
			vev.SetProperty(ical.ComponentPropertyCategories, ev.Color)
		}
		span.set(vev)

		if n, ok := ev.RemindMode.Threshold(); ok {
			alarm := vev.AddAlarm()
			alarm.SetAction(ical.ActionDisplay)
			alarm.SetTrigger("-PT" + strconv.Itoa(n) + "M")
			alarm.SetProperty(ical.ComponentPropertyDescription, ev.Title)
		}
	}
	return cal.Serialize()
}

// span is an event's DTSTART/DTEND. All-day ends are exclusive.
type span struct {
	start, end time.Time
	allDay     bool
}

func spanOf(ev event.Event, loc *time.Location) (span, bool) {
	if ev.Timed() {
		start, ok := ev.StartAt(loc)
		if !ok {
			return span{}, false
		}
		end, ok := ev.EndAt(loc)
		if !ok {
			return span{}, false
		}
		return span{start: start, end: end}, true
	}

	first, err := event.ParseDate(ev.Date, time.UTC)
	if err != nil {
		return span{}, false
	}
	last, err := event.ParseDate(ev.LastDate(), time.UTC)
	if err != nil {
		return span{}, false
	}
	return span{start: first, end: last.AddDate(0, 0, 1), allDay: true}, true
}

func (s span) set(vev *ical.VEvent) {
	if s.allDay {
		vev.SetAllDayStartAt(s.start)
		vev.SetAllDayEndAt(s.end)
		return
	}
	vev.SetStartAt(s.start)
	vev.SetEndAt(s.end)
}

// ExportText renders the human-readable listing: events sorted by date,
// one numbered block each, separated by "---".
func ExportText(events []event.Event) string {
	sorted := append([]event.Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	blocks := make([]string, 0, len(sorted))
	for i, ev := range sorted {
		var b strings.Builder
		b.WriteString("Event " + strconv.Itoa(i+1) + ":\n")
		b.WriteString("   Title: " + ev.Title + "\n")
		b.WriteString("   Date: " + ev.Date + "\n")
		b.WriteString("   Time: " + timeText(ev))
		if ev.Description != "" {
			b.WriteString("\n   Description: " + ev.Description)
		}
		if ev.RemindMode.Kind != event.RemindOff {
			b.WriteString("\n   🔔 Reminder: " + ev.RemindMode.String())
		}
		if ev.Color != "" && ev.Color != "default" {
			b.WriteString("\n   Color: " + ev.Color)
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

func timeText(ev event.Event) string {
	if !ev.Timed() {
		return "All day"
	}
	if ev.EndDate != "" && ev.EndDate != ev.Date {
		return ev.Date + " " + ev.Start + " – " + ev.EndDate + " " + ev.End
	}
	return ev.Start + " – " + ev.End
}
