// Package background runs the reminder worker: the context that owns the
// system notification channel and keeps reminding while no foreground app
// is attached. It sees only the replicated snapshot, never the
// foreground's storage.
package background

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"calendar-app/internal/bus"
	appLog "calendar-app/internal/log"
	"calendar-app/internal/notify"
	"calendar-app/internal/presence"
	"calendar-app/internal/reminder"
	"calendar-app/internal/replica"
)

const (
	DefaultTask     = "calendar-reminders"
	DefaultSchedule = "@every 1m"
)

type Options struct {
	Replicator *replica.Replicator
	Evaluator  *reminder.Evaluator
	// Notifier is the channel this context owns.
	Notifier notify.Notifier
	// Presence says whether a foreground is attached; nil means never.
	Presence presence.Detector
	// Bus delivers SHOW_NOTIFICATION and CHECK_REMINDERS and carries
	// SW_LOG back. Optional.
	Bus bus.Bus
	// Task names the periodic trigger; only this task runs a check.
	Task     string
	Schedule string
	Icon     string
	// ForwardLogs sends the worker's log lines to the foreground topic.
	ForwardLogs bool
	// Now replaces the wall clock; nil means time.Now.
	Now func() time.Time
}

// Report describes one background check.
type Report struct {
	Deferred   bool `json:"deferred"`
	NoSnapshot bool `json:"noSnapshot"`
	Shown      int  `json:"shown"`
	Due        int  `json:"due"`
}

type Worker struct {
	opts Options
	now  func() time.Time

	// One check at a time; cron and bus triggers may overlap.
	mu sync.Mutex
}

func New(opts Options) (*Worker, error) {
	if opts.Replicator == nil {
		return nil, errors.New("background worker needs a replicator")
	}
	if opts.Notifier == nil {
		return nil, errors.New("background worker needs a notifier")
	}
	if opts.Evaluator == nil {
		opts.Evaluator = reminder.NewEvaluator(nil)
	}
	if opts.Task == "" {
		opts.Task = DefaultTask
	}
	if opts.Schedule == "" {
		opts.Schedule = DefaultSchedule
	}
	if opts.Icon == "" {
		opts.Icon = notify.DefaultIcon
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Worker{opts: opts, now: now}, nil
}

// Run schedules the periodic task and serves bus messages until ctx is
// done.
func (w *Worker) Run(ctx context.Context) error {
	if w.opts.ForwardLogs && w.opts.Bus != nil {
		remove := appLog.AddHook(newForwardHook(w.opts.Bus))
		defer remove()
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(appLog.CronLogger{})))
	task := w.opts.Task
	if _, err := c.AddFunc(w.opts.Schedule, func() { w.Periodic(ctx, task) }); err != nil {
		return fmt.Errorf("schedule %q: %w", w.opts.Schedule, err)
	}

	var msgs <-chan bus.Message
	if w.opts.Bus != nil {
		var err error
		msgs, err = w.opts.Bus.Subscribe(ctx, bus.Background)
		if err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	c.Start()
	defer func() { <-c.Stop().Done() }()
	w.info("worker started", "task", task, "schedule", w.opts.Schedule)

	for {
		select {
		case <-ctx.Done():
			w.info("worker stopping")
			return nil
		case m, ok := <-msgs:
			if !ok {
				// Bus gone; keep serving the periodic task.
				msgs = nil
				continue
			}
			w.Handle(ctx, m)
		}
	}
}

// Periodic is the handler of a named periodic trigger.
func (w *Worker) Periodic(ctx context.Context, task string) {
	w.debug("periodic trigger", "task", task)
	if task != w.opts.Task {
		return
	}
	if _, err := w.CheckInBackground(ctx); err != nil {
		w.warn("background check failed", "error", err.Error())
	}
}

// Handle processes one message from the foreground.
func (w *Worker) Handle(ctx context.Context, m bus.Message) {
	switch m := m.(type) {
	case bus.ShowNotification:
		w.info("received SHOW_NOTIFICATION", "title", m.Title, "tag", m.Tag)
		n := notify.Notification{Title: m.Title, Body: m.Body, Tag: m.Tag, Icon: m.Icon}
		if n.Icon == "" {
			n.Icon = w.opts.Icon
		}
		if n.Tag == "" {
			n.Tag = notify.DefaultTag
		}
		if err := w.opts.Notifier.Show(ctx, n); err != nil {
			w.warn("show notification failed", "error", err.Error())
			return
		}
		w.info("notification shown", "title", m.Title)
	case bus.CheckReminders:
		w.info("received CHECK_REMINDERS")
		if _, err := w.CheckInBackground(ctx); err != nil {
			w.warn("background check failed", "error", err.Error())
		}
	default:
		w.debug("ignoring message", "type", string(m.Type()))
	}
}

// CheckInBackground runs one reminder pass from the snapshot. It defers to
// an attached foreground, and writes back only the ledger.
func (w *Worker) CheckInBackground(ctx context.Context) (Report, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var rep Report
	if w.opts.Presence != nil && w.opts.Presence.Attached(ctx) {
		w.info("foreground attached, delegating check")
		rep.Deferred = true
		return rep, nil
	}

	snap, err := w.opts.Replicator.Load(ctx)
	if errors.Is(err, replica.ErrNoSnapshot) {
		w.warn("no events replicated yet, has the app run at least once?")
		rep.NoSnapshot = true
		return rep, nil
	}
	if err != nil {
		return rep, fmt.Errorf("load snapshot: %w", err)
	}
	w.debug("snapshot loaded", "events", len(snap.Events), "version", snap.Meta.Version)

	res := w.opts.Evaluator.Evaluate(w.now(), snap.Events, snap.Ledger)
	rep.Due = len(res.Due)
	for _, d := range res.Due {
		n := notify.Notification{Title: d.Title, Body: d.Body, Tag: d.Tag, Icon: w.opts.Icon}
		// The reminder stays marked even if showing fails; it is not retried.
		if err := w.opts.Notifier.Show(ctx, n); err != nil {
			w.warn("show notification failed", "title", d.Title, "error", err.Error())
			continue
		}
		rep.Shown++
		w.info("notification shown", "title", d.Title, "tag", d.Tag)
	}

	if res.Dirty {
		if err := w.opts.Replicator.WriteLedger(ctx, res.Ledger); err != nil {
			return rep, fmt.Errorf("write ledger: %w", err)
		}
		w.debug("ledger written back", "keys", len(res.Ledger))
	}
	return rep, nil
}

func (w *Worker) info(msg string, kv ...any) {
	appLog.Info(msg, append(kv, "component", component)...)
}

func (w *Worker) debug(msg string, kv ...any) {
	appLog.Debug(msg, append(kv, "component", component)...)
}

func (w *Worker) warn(msg string, kv ...any) {
	appLog.Warn(msg, append(kv, "component", component)...)
}
