package reminder

import (
	"strings"
	"testing"
	"time"

	"calendar-app/internal/event"
	"calendar-app/internal/ledger"
)

var testLoc = time.FixedZone("wall", 3*3600)

func at(day string, hh, mm int) time.Time {
	d, _ := time.ParseInLocation(event.DateLayout, day, testLoc)
	return time.Date(d.Year(), d.Month(), d.Day(), hh, mm, 0, 0, testLoc)
}

func standup() event.Event {
	return event.Event{
		ID:         "ev1",
		Title:      "Standup",
		Date:       "2025-05-21",
		EndDate:    "2025-05-21",
		Start:      "09:00",
		End:        "09:15",
		RemindMode: event.MinutesBefore(30),
	}
}

func TestEvaluateFiresOnceWithinWindow(t *testing.T) {
	ev := NewEvaluator(testLoc)
	events := []event.Event{standup()}

	res := ev.Evaluate(at("2025-05-21", 8, 40), events, ledger.New())
	if len(res.Due) != 1 {
		t.Fatalf("Due = %+v, want exactly one", res.Due)
	}
	due := res.Due[0]
	if due.Body != "Starting in about 20 minutes" {
		t.Errorf("Body = %q", due.Body)
	}
	if due.Title != "⏰ Standup" {
		t.Errorf("Title = %q", due.Title)
	}
	if due.Tag != "2025-05-21_ev1_30" {
		t.Errorf("Tag = %q", due.Tag)
	}
	if !res.Dirty || !res.Ledger.Fired(due.Tag) {
		t.Errorf("ledger not marked: dirty=%v ledger=%v", res.Dirty, res.Ledger)
	}

	again := ev.Evaluate(at("2025-05-21", 8, 41), events, res.Ledger)
	if len(again.Due) != 0 || again.Dirty {
		t.Errorf("second pass Due=%+v Dirty=%v, want nothing", again.Due, again.Dirty)
	}
}

func TestEvaluateDoesNotModifyInputLedger(t *testing.T) {
	in := ledger.New()
	NewEvaluator(testLoc).Evaluate(at("2025-05-21", 8, 40), []event.Event{standup()}, in)
	if len(in) != 0 {
		t.Errorf("input ledger modified: %v", in)
	}
}

func TestEvaluateOutsideWindow(t *testing.T) {
	ev := NewEvaluator(testLoc)
	events := []event.Event{standup()}

	for _, now := range []time.Time{
		at("2025-05-21", 8, 15), // 45 minutes ahead, threshold 30
		at("2025-05-21", 9, 0),  // exactly at start
		at("2025-05-21", 9, 5),  // already started
		at("2025-05-20", 8, 40), // wrong day
	} {
		res := ev.Evaluate(now, events, ledger.New())
		if len(res.Due) != 0 {
			t.Errorf("Evaluate(%v) Due = %+v, want none", now, res.Due)
		}
	}
}

func TestEvaluateSkipsNonPassiveModes(t *testing.T) {
	off := standup()
	off.ID, off.RemindMode = "off", event.Off
	popup := standup()
	popup.ID, popup.RemindMode = "popup", event.Popup
	allDay := standup()
	allDay.ID, allDay.Start, allDay.End = "allday", "", ""

	res := NewEvaluator(testLoc).Evaluate(at("2025-05-21", 8, 50), []event.Event{off, popup, allDay}, ledger.New())
	if len(res.Due) != 0 || res.Dirty {
		t.Errorf("non-passive events produced %+v (dirty=%v)", res.Due, res.Dirty)
	}
}

func TestEvaluatePrunesAfterMidnight(t *testing.T) {
	ev := NewEvaluator(testLoc)
	yesterday := standup()
	yesterday.Date, yesterday.EndDate = "2025-05-20", "2025-05-20"
	first := ev.Evaluate(at("2025-05-20", 8, 40), []event.Event{yesterday}, ledger.New())
	if len(first.Due) != 1 {
		t.Fatalf("setup: first day did not fire")
	}

	today := standup()
	res := ev.Evaluate(at("2025-05-21", 8, 45), []event.Event{today}, first.Ledger)
	if res.Ledger.Fired("2025-05-20_ev1_30") {
		t.Errorf("stale key survived: %v", res.Ledger)
	}
	if len(res.Due) != 1 || res.Due[0].Body != "Starting in about 15 minutes" {
		t.Errorf("same event on the new day did not fire again: %+v", res.Due)
	}
}

func TestEvaluatePruneOnlyIsDirty(t *testing.T) {
	stale := ledger.Ledger{"2025-05-20_x_15": true}
	res := NewEvaluator(testLoc).Evaluate(at("2025-05-21", 12, 0), nil, stale)
	if !res.Dirty || len(res.Ledger) != 0 || len(res.Due) != 0 {
		t.Errorf("prune-only pass = %+v", res)
	}
}

func TestEvaluateMultiDayUsesFirstDayStart(t *testing.T) {
	conf := standup()
	conf.EndDate = "2025-05-23"
	ev := NewEvaluator(testLoc)

	if res := ev.Evaluate(at("2025-05-21", 8, 45), []event.Event{conf}, nil); len(res.Due) != 1 {
		t.Errorf("first day did not fire: %+v", res.Due)
	}
	if res := ev.Evaluate(at("2025-05-22", 8, 45), []event.Event{conf}, nil); len(res.Due) != 0 {
		t.Errorf("second day fired relative to its own morning: %+v", res.Due)
	}
}

func TestEvaluateHourLabel(t *testing.T) {
	e := standup()
	e.RemindMode = event.MinutesBefore(90)
	res := NewEvaluator(testLoc).Evaluate(at("2025-05-21", 7, 50), []event.Event{e}, nil)
	if len(res.Due) != 1 || res.Due[0].Body != "Starting in about 1 hour" {
		t.Errorf("Due = %+v", res.Due)
	}
}

func TestLabel(t *testing.T) {
	tests := map[int]string{0: "0 minutes", 1: "1 minute", 2: "2 minutes", 59: "59 minutes", 60: "1 hour", 120: "1 hour"}
	for in, want := range tests {
		if got := Label(in); got != want {
			t.Errorf("Label(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestPopupsOncePerDay(t *testing.T) {
	ev := NewEvaluator(testLoc)
	events := []event.Event{
		{ID: "a", Title: "Birthday", Date: "2025-05-21", EndDate: "2025-05-21", RemindMode: event.Popup},
		{ID: "b", Title: "Flight", Date: "2025-05-22", EndDate: "2025-05-22", RemindMode: event.Popup},
		{ID: "c", Title: "Quiet", Date: "2025-05-21", EndDate: "2025-05-21", RemindMode: event.Off},
	}
	seen := map[string]bool{}

	p, ok := ev.Popups(at("2025-05-21", 7, 0), events, seen)
	if !ok {
		t.Fatalf("Popups did not fire")
	}
	if want := "• Birthday (Today)\n• Flight (Tomorrow)"; p.Text() != want {
		t.Errorf("Text = %q, want %q", p.Text(), want)
	}
	if !seen["2025-05-21"] {
		t.Errorf("seen not marked: %v", seen)
	}
	if _, ok := ev.Popups(at("2025-05-21", 18, 0), events, seen); ok {
		t.Errorf("Popups fired twice on the same day")
	}
}

func TestPopupsTruncates(t *testing.T) {
	var events []event.Event
	for i := 0; i < 8; i++ {
		events = append(events, event.Event{ID: string(rune('a' + i)), Title: "E", Date: "2025-05-21", EndDate: "2025-05-21", RemindMode: event.Popup})
	}
	p, ok := NewEvaluator(testLoc).Popups(at("2025-05-21", 7, 0), events, map[string]bool{})
	if !ok || len(p.Lines) != 6 || p.More != 2 || !strings.HasSuffix(p.Text(), "\n+2 more") {
		t.Errorf("Popups = %+v", p)
	}
}

func TestPopupsNothingToShowLeavesSeenUntouched(t *testing.T) {
	seen := map[string]bool{}
	if _, ok := NewEvaluator(testLoc).Popups(at("2025-05-21", 7, 0), nil, seen); ok {
		t.Errorf("Popups fired with no events")
	}
	if len(seen) != 0 {
		t.Errorf("seen modified: %v", seen)
	}
}
