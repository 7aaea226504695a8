package notify

import (
	"context"
	"fmt"
	"sync"

	appLog "calendar-app/internal/log"
)

// Permission mirrors the three states of a notification permission.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

func ParsePermission(s string) (Permission, error) {
	switch p := Permission(s); p {
	case PermissionDefault, PermissionGranted, PermissionDenied:
		return p, nil
	case "":
		return PermissionDefault, nil
	default:
		return PermissionDefault, fmt.Errorf("unknown permission %q", s)
	}
}

// Prompter asks the user for permission and returns the answer.
type Prompter interface {
	Prompt(ctx context.Context) Permission
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context) Permission

func (f PrompterFunc) Prompt(ctx context.Context) Permission { return f(ctx) }

// Answer is a Prompter that always returns the same decision.
type Answer Permission

func (a Answer) Prompt(context.Context) Permission { return Permission(a) }

// Permissions tracks the notification permission of one context.
type Permissions struct {
	mu        sync.Mutex
	state     Permission
	prompter  Prompter
	pending   bool
	onGranted []func()
}

func NewPermissions(initial Permission, prompter Prompter) *Permissions {
	if initial == "" {
		initial = PermissionDefault
	}
	return &Permissions{state: initial, prompter: prompter}
}

func (p *Permissions) State() Permission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Permissions) Granted() bool {
	return p.State() == PermissionGranted
}

// OnGranted registers f to run after a Request turns into a grant.
func (p *Permissions) OnGranted(f func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onGranted = append(p.onGranted, f)
}

// Request asks for permission without waiting for the answer. Only the
// default state prompts; a decided permission is left alone. The answer
// updates State and, when granted, runs the OnGranted callbacks.
func (p *Permissions) Request(ctx context.Context) {
	p.mu.Lock()
	if p.state != PermissionDefault || p.pending || p.prompter == nil {
		state := p.state
		p.mu.Unlock()
		appLog.Debug("permission request ignored", "state", string(state))
		return
	}
	p.pending = true
	p.mu.Unlock()

	// The caller does not wait, so its cancellation must not cut the prompt.
	ctx = context.WithoutCancel(ctx)
	go func() {
		answer := p.prompter.Prompt(ctx)

		p.mu.Lock()
		p.pending = false
		if answer == PermissionGranted || answer == PermissionDenied {
			p.state = answer
		}
		var callbacks []func()
		if answer == PermissionGranted {
			callbacks = append(callbacks, p.onGranted...)
		}
		p.mu.Unlock()

		appLog.Info("notification permission answered", "permission", string(answer))
		for _, f := range callbacks {
			f()
		}
	}()
}
