// Package notify delivers reminder notifications. A context either owns
// the system notification channel and shows directly, or forwards a
// SHOW_NOTIFICATION message over the bus to the context that owns it.
package notify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"calendar-app/internal/bus"
	appLog "calendar-app/internal/log"
)

var ErrNoChannel = errors.New("no notification channel available")

// Focuser brings an already attached app window to the front. It reports
// false when no window is attached.
type Focuser interface {
	Focus(ctx context.Context) bool
}

// Opener opens a new app window at url.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// ExecOpener opens url with a command such as xdg-open.
type ExecOpener struct {
	Command string
}

func (o ExecOpener) Open(ctx context.Context, url string) error {
	cmd := o.Command
	if cmd == "" {
		cmd = "xdg-open"
	}
	if out, err := exec.CommandContext(ctx, cmd, url).CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", cmd, err, out)
	}
	return nil
}

// LogOpener only logs the url.
type LogOpener struct{}

func (LogOpener) Open(_ context.Context, url string) error {
	appLog.Info("open app window", "url", url)
	return nil
}

// Dispatcher routes notifications for one execution context.
type Dispatcher struct {
	// Notifier is the directly owned channel, nil if this context has none.
	Notifier Notifier
	// Bus forwards to the owning context. When set it is preferred over
	// Notifier, which then serves as fallback if publishing fails.
	Bus bus.Bus
	// Permissions gates Ready; nil means always granted.
	Permissions *Permissions

	Windows Focuser
	Opener  Opener
	OpenURL string
}

// Ready reports whether a notification could be delivered now.
func (d *Dispatcher) Ready() bool {
	if d.Permissions != nil && !d.Permissions.Granted() {
		return false
	}
	return d.Notifier != nil || d.Bus != nil
}

// Deliver shows n through the bus or the owned channel.
func (d *Dispatcher) Deliver(ctx context.Context, n Notification) error {
	n = n.withDefaults()

	if d.Bus != nil {
		msg := bus.ShowNotification{Title: n.Title, Body: n.Body, Tag: n.Tag, Icon: n.Icon}
		err := d.Bus.Publish(ctx, bus.Background, msg)
		if err == nil {
			appLog.Debug("notification forwarded", "title", n.Title, "tag", n.Tag)
			return nil
		}
		if d.Notifier == nil {
			return fmt.Errorf("%w: forward notification: %w", ErrNoChannel, err)
		}
		appLog.Warn("forwarding failed, showing directly", "error", err.Error())
	}

	if d.Notifier == nil {
		return ErrNoChannel
	}
	if err := d.Notifier.Show(ctx, n); err != nil {
		return fmt.Errorf("show notification: %w", err)
	}
	appLog.Debug("notification shown", "title", n.Title, "tag", n.Tag)
	return nil
}

// Click handles a click on n: focus an attached window if there is one,
// otherwise open a new one.
func (d *Dispatcher) Click(ctx context.Context, n Notification) error {
	appLog.Info("notification clicked", "title", n.Title)
	if d.Windows != nil && d.Windows.Focus(ctx) {
		appLog.Debug("focused existing window")
		return nil
	}
	if d.Opener == nil {
		return ErrNoChannel
	}
	appLog.Debug("no window attached, opening a new one", "url", d.OpenURL)
	return d.Opener.Open(ctx, d.OpenURL)
}
