package reminder

import (
	"math"
	"strconv"
	"time"

	"calendar-app/internal/calendar"
	"calendar-app/internal/event"
	"calendar-app/internal/ledger"
	appLog "calendar-app/internal/log"
)

// Due is a reminder that must be delivered now.
type Due struct {
	EventID string
	Title   string
	Body    string
	// Tag is the ledger key; notification channels use it to collapse
	// duplicates.
	Tag     string
	Minutes int
}

// Result is the outcome of one evaluation pass.
type Result struct {
	TodayKey string
	Due      []Due
	// Ledger is the updated copy; the input ledger is never modified.
	Ledger ledger.Ledger
	// Dirty is set when Ledger differs from the input and must be persisted.
	Dirty bool
}

// Evaluator decides which passive reminders are due. It holds no state
// between passes, so foreground and background run the same code against
// their own copies of events and ledger.
type Evaluator struct {
	// Location is the wall-clock zone used for date keys and event instants.
	// Nil means time.Local.
	Location *time.Location
}

func NewEvaluator(loc *time.Location) *Evaluator {
	return &Evaluator{Location: loc}
}

func (e *Evaluator) loc() *time.Location {
	if e == nil || e.Location == nil {
		return time.Local
	}
	return e.Location
}

// Evaluate runs one pass at now over events and the fired-set sent.
//
// Reminders never fire late: an event that already started is skipped, as is
// one whose start is further away than its threshold. A key already in the
// ledger is skipped, which makes repeated passes idempotent.
func (e *Evaluator) Evaluate(now time.Time, events []event.Event, sent ledger.Ledger) Result {
	loc := e.loc()
	now = now.In(loc)
	todayKey := event.DateKey(now)

	res := Result{TodayKey: todayKey, Ledger: sent.Clone()}
	if res.Ledger == nil {
		res.Ledger = ledger.New()
	}
	if res.Ledger.Prune(todayKey) {
		res.Dirty = true
		appLog.Debug("pruned stale reminder keys", "today", todayKey)
	}

	todays := calendar.ActiveOn(events, todayKey)
	if len(todays) == 0 {
		return res
	}

	for _, ev := range todays {
		if ev.Start == "" {
			continue
		}
		threshold, ok := ev.RemindMode.Threshold()
		if !ok {
			continue
		}
		start, ok := ev.StartAt(loc)
		if !ok {
			continue
		}
		diff := start.Sub(now).Minutes()
		sentKey := ledger.Key(todayKey, ev.ID, threshold)

		appLog.Debug("reminder candidate",
			"title", ev.Title,
			"start", ev.Start,
			"diff_minutes", strconv.FormatFloat(diff, 'f', 1, 64),
			"threshold", threshold,
			"already_sent", res.Ledger.Fired(sentKey),
		)

		if diff <= 0 || diff > float64(threshold) {
			continue
		}
		if res.Ledger.Fired(sentKey) {
			continue
		}

		rounded := int(math.Round(diff))
		label := Label(rounded)
		res.Due = append(res.Due, Due{
			EventID: ev.ID,
			Title:   "⏰ " + ev.Title,
			Body:    "Starting in about " + label,
			Tag:     sentKey,
			Minutes: rounded,
		})
		res.Ledger.Mark(sentKey)
		res.Dirty = true
	}

	return res
}

// Label renders a lead time: anything from an hour up reads "1 hour",
// otherwise "{n} minute(s)".
func Label(minutes int) string {
	if minutes >= 60 {
		return "1 hour"
	}
	if minutes == 1 {
		return "1 minute"
	}
	return strconv.Itoa(minutes) + " minutes"
}
