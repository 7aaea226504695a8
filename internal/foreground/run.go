package foreground

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"calendar-app/internal/bus"
	appLog "calendar-app/internal/log"
)

// Run attaches the app as a foreground client, runs a reminder pass now
// and then every Interval, and relays worker diagnostics until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if r := a.opts.Registry; r != nil {
		detach := r.Attach(func() { appLog.Info("focusing app window") })
		defer detach()
	}
	if hb := a.opts.Heartbeat; hb != nil {
		defer func() {
			if err := hb.Leave(context.Background()); err != nil {
				appLog.Warn("presence leave failed", "error", err.Error())
			}
		}()
	}

	var logs <-chan bus.Message
	if a.opts.Bus != nil {
		var err error
		logs, err = a.opts.Bus.Subscribe(ctx, bus.Foreground)
		if err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(appLog.CronLogger{})))
	spec := "@every " + a.opts.Interval.String()
	if _, err := c.AddFunc(spec, func() { a.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}

	if _, err := a.CheckPopups(ctx); err != nil {
		appLog.Warn("popup check failed", "error", err.Error())
	}
	a.tick(ctx)

	c.Start()
	defer func() { <-c.Stop().Done() }()
	appLog.Info("passive reminder interval started", "every", a.opts.Interval.String())

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-logs:
			if !ok {
				logs = nil
				continue
			}
			if l, isLog := m.(bus.Log); isLog {
				appLog.Debug("[SW → Page] " + l.Msg)
			}
		}
	}
}

func (a *App) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := a.Tick(ctx); err != nil {
		appLog.Error("reminder check failed", err)
	}
}
