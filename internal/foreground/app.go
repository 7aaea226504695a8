// Package foreground is the interactive context: it owns the event list,
// the primary storage and the reminder ledger, runs the periodic reminder
// pass while attached, and replicates a snapshot for the background worker
// after every mutation.
package foreground

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"calendar-app/internal/bus"
	"calendar-app/internal/calendar"
	"calendar-app/internal/event"
	"calendar-app/internal/ledger"
	appLog "calendar-app/internal/log"
	"calendar-app/internal/notify"
	"calendar-app/internal/presence"
	"calendar-app/internal/reminder"
	"calendar-app/internal/replica"
	"calendar-app/internal/storage"
)

var (
	ErrNotFound = errors.New("event not found")
	ErrConflict = errors.New("event overlaps existing events")
)

// ConflictError lists the events a draft overlaps. It matches ErrConflict.
type ConflictError struct {
	Conflicts []event.Event
}

func (e *ConflictError) Error() string {
	return "conflicts with " + strconv.Itoa(len(e.Conflicts)) + " event(s)"
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

type Options struct {
	Storage storage.Storage
	// Replicator mirrors the snapshot for the worker; nil disables it.
	Replicator *replica.Replicator
	Dispatcher *notify.Dispatcher
	Evaluator  *reminder.Evaluator
	// Bus carries CHECK_REMINDERS out and SW_LOG in; optional.
	Bus       bus.Bus
	Registry  *presence.Registry
	Heartbeat *presence.Heartbeat
	Interval  time.Duration
	Icon      string
}

// App is the event store of the foreground. All reads return copies and
// every operation runs to completion under one lock.
type App struct {
	opts Options
	loc  *time.Location
	now  func() time.Time

	mu     sync.Mutex
	events []event.Event
	sent   ledger.Ledger
	seen   map[string]bool
}

func New(opts Options) (*App, error) {
	if opts.Storage == nil {
		return nil, errors.New("foreground app needs storage")
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = &notify.Dispatcher{}
	}
	if opts.Evaluator == nil {
		opts.Evaluator = reminder.NewEvaluator(nil)
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Icon == "" {
		opts.Icon = notify.DefaultIcon
	}
	loc := opts.Evaluator.Location
	if loc == nil {
		loc = time.Local
	}
	a := &App{
		opts:   opts,
		loc:    loc,
		now:    time.Now,
		events: []event.Event{},
		sent:   ledger.New(),
		seen:   map[string]bool{},
	}
	if p := opts.Dispatcher.Permissions; p != nil {
		p.OnGranted(a.permissionGranted)
	}
	return a, nil
}

// Load reads events, ledger and popup-seen record from storage and
// replicates the result.
func (a *App) Load(ctx context.Context) error {
	events, err := a.opts.Storage.LoadEvents()
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	sent, err := a.opts.Storage.LoadLedger()
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	seen, err := a.opts.Storage.LoadPopupSeen()
	if err != nil {
		return fmt.Errorf("load popup-seen: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = events
	a.sent = sent
	a.seen = seen
	appLog.Info("calendar loaded", "events", len(events))
	a.replicateLocked(ctx)
	return nil
}

// Events returns a copy of the ordered event list.
func (a *App) Events() []event.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]event.Event(nil), a.events...)
}

func (a *App) Event(id string) (event.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i := a.indexLocked(id); i >= 0 {
		return a.events[i], nil
	}
	return event.Event{}, ErrNotFound
}

func (a *App) ActiveOn(dateKey string) []event.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return calendar.ActiveOn(a.events, dateKey)
}

func (a *App) Search(query string) []event.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return calendar.Search(a.events, query)
}

// Conflicts lists stored events overlapping draft, ignoring excludeID.
func (a *App) Conflicts(draft event.Event, excludeID string) []event.Event {
	draft.Normalize()
	a.mu.Lock()
	defer a.mu.Unlock()
	return calendar.Overlaps(draft, a.events, excludeID, a.loc)
}

// Save validates draft and stores it, replacing the event with the same
// id or appending a new one. Overlaps are reported as *ConflictError
// unless confirm is set.
func (a *App) Save(ctx context.Context, draft event.Event, confirm bool) (event.Event, error) {
	return a.save(ctx, draft, confirm, false)
}

// Update is Save for an event that must already exist.
func (a *App) Update(ctx context.Context, id string, draft event.Event, confirm bool) (event.Event, error) {
	draft.ID = id
	return a.save(ctx, draft, confirm, true)
}

func (a *App) save(ctx context.Context, draft event.Event, confirm, mustExist bool) (event.Event, error) {
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return event.Event{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	idx := a.indexLocked(draft.ID)
	if mustExist && idx < 0 {
		return event.Event{}, ErrNotFound
	}
	if draft.ID == "" {
		draft.ID = event.NewID()
	}

	if !confirm {
		if conflicts := calendar.Overlaps(draft, a.events, draft.ID, a.loc); len(conflicts) > 0 {
			return event.Event{}, &ConflictError{Conflicts: conflicts}
		}
	}

	next := append([]event.Event(nil), a.events...)
	if idx >= 0 {
		next[idx] = draft
	} else {
		next = append(next, draft)
	}
	if err := a.persistEventsLocked(ctx, next); err != nil {
		return event.Event{}, err
	}
	appLog.Info("event saved", "id", draft.ID, "title", draft.Title, "remindMode", draft.RemindMode.String())

	now := a.now()
	if _, err := a.checkPopupsLocked(ctx, now); err != nil {
		appLog.Warn("popup check after save failed", "error", err.Error())
	}
	if _, ok := draft.RemindMode.Threshold(); ok {
		appLog.Debug("passive reminder set, checking now", "id", draft.ID)
		if _, err := a.tickLocked(ctx, now); err != nil {
			appLog.Warn("reminder check after save failed", "error", err.Error())
		}
	}
	return draft, nil
}

// Delete removes the event with id.
func (a *App) Delete(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := a.indexLocked(id)
	if idx < 0 {
		return ErrNotFound
	}
	next := make([]event.Event, 0, len(a.events)-1)
	next = append(next, a.events[:idx]...)
	next = append(next, a.events[idx+1:]...)
	if err := a.persistEventsLocked(ctx, next); err != nil {
		return err
	}
	appLog.Info("event deleted", "id", id)
	return nil
}

// Clear removes every event.
func (a *App) Clear(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.persistEventsLocked(ctx, []event.Event{}); err != nil {
		return err
	}
	appLog.Info("all events cleared")
	return nil
}

// Tick runs one foreground reminder pass.
func (a *App) Tick(ctx context.Context) (reminder.Result, error) {
	if hb := a.opts.Heartbeat; hb != nil {
		if err := hb.Beat(ctx); err != nil {
			appLog.Warn("presence heartbeat failed", "error", err.Error())
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tickLocked(ctx, a.now())
}

func (a *App) tickLocked(ctx context.Context, now time.Time) (reminder.Result, error) {
	if !a.opts.Dispatcher.Ready() {
		appLog.Debug("notifications not ready, skipping reminder check")
		return reminder.Result{TodayKey: event.DateKey(now.In(a.loc))}, nil
	}

	a.mergeReplicaLedgerLocked(ctx, now)

	res := a.opts.Evaluator.Evaluate(now, a.events, a.sent)
	delivered := make([]reminder.Due, 0, len(res.Due))
	for _, d := range res.Due {
		appLog.Info("firing reminder", "title", d.Title, "body", d.Body)
		n := notify.Notification{Title: d.Title, Body: d.Body, Tag: d.Tag, Icon: a.opts.Icon}
		err := a.opts.Dispatcher.Deliver(ctx, n)
		switch {
		case err == nil:
			delivered = append(delivered, d)
		case errors.Is(err, notify.ErrNoChannel):
			// Nothing could show it; leave it for the next pass.
			appLog.Warn("no channel for reminder, will retry", "tag", d.Tag, "error", err.Error())
			delete(res.Ledger, d.Tag)
		default:
			// A failed show stays marked; reminders are never retried.
			appLog.Error("reminder delivery failed", err, "tag", d.Tag)
			delivered = append(delivered, d)
		}
	}
	res.Due = delivered
	if !res.Dirty {
		return res, nil
	}

	a.sent = res.Ledger
	if err := a.opts.Storage.SaveLedger(a.sent); err != nil {
		return res, fmt.Errorf("save ledger: %w", err)
	}
	a.replicateLocked(ctx)
	return res, nil
}

// CheckPopups shows the day-of summary of popup events once per day.
func (a *App) CheckPopups(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.checkPopupsLocked(ctx, a.now())
}

func (a *App) checkPopupsLocked(ctx context.Context, now time.Time) (bool, error) {
	seen := make(map[string]bool, len(a.seen)+1)
	for k, v := range a.seen {
		seen[k] = v
	}
	popup, ok := a.opts.Evaluator.Popups(now, a.events, seen)
	if !ok {
		return false, nil
	}

	n := notify.Notification{
		Title: "🔔 Reminder",
		Body:  popup.Text(),
		Tag:   "popup-" + popup.DateKey,
		Icon:  a.opts.Icon,
	}
	if err := a.opts.Dispatcher.Deliver(ctx, n); err != nil {
		return false, fmt.Errorf("show popup: %w", err)
	}
	a.seen = seen
	if err := a.opts.Storage.SavePopupSeen(a.seen); err != nil {
		return true, fmt.Errorf("save popup-seen: %w", err)
	}
	appLog.Info("popup reminder shown", "date", popup.DateKey, "lines", len(popup.Lines))
	return true, nil
}

// RequestCheck asks the background worker to run a reminder pass.
func (a *App) RequestCheck(ctx context.Context) error {
	if a.opts.Bus == nil {
		return notify.ErrNoChannel
	}
	return a.opts.Bus.Publish(ctx, bus.Background, bus.CheckReminders{})
}

// RequestPermission asks for notification permission without waiting.
func (a *App) RequestPermission(ctx context.Context) {
	if p := a.opts.Dispatcher.Permissions; p != nil {
		p.Request(ctx)
	}
}

// Permission reports the current notification permission.
func (a *App) Permission() notify.Permission {
	if p := a.opts.Dispatcher.Permissions; p != nil {
		return p.State()
	}
	return notify.PermissionGranted
}

// Click handles a click on a shown notification.
func (a *App) Click(ctx context.Context, n notify.Notification) error {
	return a.opts.Dispatcher.Click(ctx, n)
}

func (a *App) permissionGranted() {
	ctx := context.Background()
	a.mu.Lock()
	a.replicateLocked(ctx)
	a.mu.Unlock()
	if _, err := a.Tick(ctx); err != nil {
		appLog.Warn("reminder check after grant failed", "error", err.Error())
	}
}

func (a *App) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, ev := range a.events {
		if ev.ID == id {
			return i
		}
	}
	return -1
}

// persistEventsLocked writes next to storage, then adopts and replicates
// it. On a storage error the in-memory list is left unchanged.
func (a *App) persistEventsLocked(ctx context.Context, next []event.Event) error {
	if err := a.opts.Storage.SaveEvents(next); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	a.events = next
	a.replicateLocked(ctx)
	return nil
}

// mergeReplicaLedgerLocked folds in today's keys the background worker
// wrote to the replica, so a reminder it already showed is not fired here
// again and the next replication does not drop them.
func (a *App) mergeReplicaLedgerLocked(ctx context.Context, now time.Time) {
	if a.opts.Replicator == nil {
		return
	}
	snap, err := a.opts.Replicator.Load(ctx)
	if errors.Is(err, replica.ErrNoSnapshot) {
		return
	}
	if err != nil {
		appLog.Warn("reading replica ledger failed", "error", err.Error())
		return
	}
	merged := a.sent.Clone()
	if !merged.Merge(snap.Ledger, event.DateKey(now.In(a.loc))) {
		return
	}
	appLog.Info("merged reminders fired in background", "keys", len(merged)-len(a.sent))
	a.sent = merged
	if err := a.opts.Storage.SaveLedger(a.sent); err != nil {
		appLog.Warn("saving merged ledger failed", "error", err.Error())
	}
}

func (a *App) replicateLocked(ctx context.Context) {
	if a.opts.Replicator == nil {
		return
	}
	a.mergeReplicaLedgerLocked(ctx, a.now())
	if err := a.opts.Replicator.Replicate(ctx, a.events, a.sent); err != nil {
		appLog.Error("snapshot replication failed", err)
	}
}
