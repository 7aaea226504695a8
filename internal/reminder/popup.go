package reminder

import (
	"strconv"
	"strings"
	"time"

	"calendar-app/internal/calendar"
	"calendar-app/internal/event"
)

const maxPopupLines = 6

// PopupLine is one entry of the day-of summary.
type PopupLine struct {
	Event event.Event
	When  string // "Today" or "Tomorrow"
}

// Popup is the once-a-day summary of events using the popup reminder mode.
type Popup struct {
	DateKey string
	Lines   []PopupLine
	More    int
}

// Text renders the summary the way it is shown to the user.
func (p Popup) Text() string {
	var b strings.Builder
	for i, l := range p.Lines {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("• " + l.Event.Title + " (" + l.When + ")")
	}
	if p.More > 0 {
		b.WriteString("\n+" + strconv.Itoa(p.More) + " more")
	}
	return b.String()
}

// Popups checks the day-of popup reminders. It fires at most once per
// calendar day: when something is shown seen[todayKey] is set and a second
// call on the same day returns false. seen is modified in place.
func (e *Evaluator) Popups(now time.Time, events []event.Event, seen map[string]bool) (Popup, bool) {
	loc := e.loc()
	now = now.In(loc)
	todayKey := event.DateKey(now)
	if seen[todayKey] {
		return Popup{}, false
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	tomorrowKey := event.DateKey(today.AddDate(0, 0, 1))

	var all []PopupLine
	for _, ev := range calendar.ActiveOn(events, todayKey) {
		if ev.RemindMode.Kind == event.RemindPopup {
			all = append(all, PopupLine{Event: ev, When: "Today"})
		}
	}
	for _, ev := range calendar.ActiveOn(events, tomorrowKey) {
		if ev.RemindMode.Kind == event.RemindPopup {
			all = append(all, PopupLine{Event: ev, When: "Tomorrow"})
		}
	}
	if len(all) == 0 {
		return Popup{}, false
	}

	p := Popup{DateKey: todayKey, Lines: all}
	if len(all) > maxPopupLines {
		p.Lines = all[:maxPopupLines]
		p.More = len(all) - maxPopupLines
	}
	seen[todayKey] = true
	return p, true
}
