// Package presence answers one question for the background worker: is a
// foreground app attached right now? If so, the worker leaves reminder
// checks to it, since the foreground holds the fresher state.
package presence

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	appLog "calendar-app/internal/log"
	"calendar-app/internal/replica"
)

// BlobPresence is the replica blob the foreground heartbeats into.
const BlobPresence = "presence"

type Detector interface {
	Attached(ctx context.Context) bool
}

// Registry tracks foreground clients attached in the same process.
type Registry struct {
	mu      sync.Mutex
	next    int
	order   []int
	clients map[int]func()
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[int]func())}
}

// Attach registers a client. focus is called when the client should come
// to the front and may be nil. The returned func detaches the client.
func (r *Registry) Attach(focus func()) (detach func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	if focus == nil {
		focus = func() {}
	}
	r.clients[id] = focus
	r.order = append(r.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.clients, id)
			for i, v := range r.order {
				if v == id {
					r.order = append(r.order[:i], r.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (r *Registry) Attached(context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients) > 0
}

// Count returns the number of attached clients.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Focus brings the most recently attached client to the front.
func (r *Registry) Focus(context.Context) bool {
	r.mu.Lock()
	if len(r.order) == 0 {
		r.mu.Unlock()
		return false
	}
	focus := r.clients[r.order[len(r.order)-1]]
	r.mu.Unlock()

	focus()
	return true
}

type beat struct {
	At time.Time `json:"at"`
}

// Heartbeat detects a foreground running in another process through a
// timestamp blob in the replica medium.
type Heartbeat struct {
	medium     replica.Medium
	staleAfter time.Duration
	now        func() time.Time
}

func NewHeartbeat(m replica.Medium, staleAfter time.Duration) *Heartbeat {
	return &Heartbeat{medium: m, staleAfter: staleAfter, now: time.Now}
}

// Beat records that the foreground is alive.
func (h *Heartbeat) Beat(ctx context.Context) error {
	return h.write(ctx, h.now())
}

// Leave records that the foreground went away.
func (h *Heartbeat) Leave(ctx context.Context) error {
	return h.write(ctx, time.Time{})
}

func (h *Heartbeat) write(ctx context.Context, at time.Time) error {
	data, err := json.Marshal(beat{At: at})
	if err != nil {
		return err
	}
	return h.medium.Put(ctx, BlobPresence, data)
}

// Attached reports whether the last beat is younger than staleAfter.
func (h *Heartbeat) Attached(ctx context.Context) bool {
	data, err := h.medium.Get(ctx, BlobPresence)
	if err != nil {
		return false
	}
	var b beat
	if err := json.Unmarshal(data, &b); err != nil {
		appLog.Warn("malformed presence blob", "error", err.Error())
		return false
	}
	if b.At.IsZero() {
		return false
	}
	return h.now().Sub(b.At) < h.staleAfter
}

type anyOf []Detector

func (a anyOf) Attached(ctx context.Context) bool {
	for _, d := range a {
		if d != nil && d.Attached(ctx) {
			return true
		}
	}
	return false
}

// Any reports attached when any of ds does.
func Any(ds ...Detector) Detector {
	return anyOf(ds)
}
