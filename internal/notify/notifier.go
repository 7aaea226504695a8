package notify

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	appLog "calendar-app/internal/log"
)

const (
	DefaultIcon = "images/android-chrome-512x512.png"
	DefaultTag  = "cal-notif"
)

// Notification is one OS-level notification.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	// Tag collapses duplicates on the notification channel.
	Tag  string `json:"tag"`
	Icon string `json:"icon"`
}

func (n Notification) withDefaults() Notification {
	if n.Icon == "" {
		n.Icon = DefaultIcon
	}
	if n.Tag == "" {
		n.Tag = DefaultTag
	}
	return n
}

// Notifier is a system notification channel.
type Notifier interface {
	Show(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log. It is the channel of a
// headless deployment.
type LogNotifier struct{}

func (LogNotifier) Show(_ context.Context, n Notification) error {
	appLog.Info("notification", "title", n.Title, "body", n.Body, "tag", n.Tag)
	return nil
}

// ExecNotifier runs a desktop notification command such as notify-send:
//
//	notify-send --icon ICON --app-name calendar --hint string:x-dunst-stack-tag:TAG TITLE BODY
type ExecNotifier struct {
	Command string
}

func NewExecNotifier(command string) *ExecNotifier {
	if command == "" {
		command = "notify-send"
	}
	return &ExecNotifier{Command: command}
}

func (e *ExecNotifier) Show(ctx context.Context, n Notification) error {
	args := []string{
		"--icon", n.Icon,
		"--app-name", "calendar",
		"--hint", "string:x-dunst-stack-tag:" + n.Tag,
		n.Title, n.Body,
	}
	out, err := exec.CommandContext(ctx, e.Command, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", e.Command, err, out)
	}
	return nil
}

// Recorder keeps every shown notification in memory. Setting Err makes
// Show fail.
type Recorder struct {
	mu    sync.Mutex
	shown []Notification
	Err   error
}

func (r *Recorder) Show(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.shown = append(r.shown, n)
	return nil
}

// Shown returns a copy of the recorded notifications.
func (r *Recorder) Shown() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.shown...)
}
