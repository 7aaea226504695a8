// Package replica mirrors the event list and the reminder ledger to a
// medium the background context can read without the foreground's live
// state. Every write replaces the blobs wholesale.
package replica

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"calendar-app/internal/event"
	"calendar-app/internal/ledger"
	appLog "calendar-app/internal/log"
)

// Blob names shared by both contexts.
const (
	BlobEvents = "events"
	BlobLedger = "notif-sent"
	BlobMeta   = "snapshot-meta"
)

// ErrNoSnapshot means the foreground never replicated.
var ErrNoSnapshot = errors.New("no snapshot replicated yet")

// Meta versions a snapshot. Version grows by one on every Replicate.
type Meta struct {
	Version    int64     `json:"version"`
	UpdatedAt  time.Time `json:"updatedAt"`
	EventCount int       `json:"eventCount"`
}

type Snapshot struct {
	Events []event.Event
	Ledger ledger.Ledger
	Meta   Meta
}

type Replicator struct {
	medium Medium
	now    func() time.Time

	mu      sync.Mutex
	version int64
	loaded  bool
}

func NewReplicator(m Medium) *Replicator {
	return &Replicator{medium: m, now: time.Now}
}

// Medium returns the underlying medium.
func (r *Replicator) Medium() Medium {
	return r.medium
}

// Replicate writes events and the ledger wholesale, then bumps the
// snapshot meta. A failure leaves the caller's state untouched; the next
// mutation replicates again.
func (r *Replicator) Replicate(ctx context.Context, events []event.Event, l ledger.Ledger) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		// Continue the version sequence of a previous process.
		if meta, err := r.readMeta(ctx); err == nil {
			r.version = meta.Version
		}
		r.loaded = true
	}

	if events == nil {
		events = []event.Event{}
	}
	if l == nil {
		l = ledger.New()
	}
	if err := r.put(ctx, BlobEvents, events); err != nil {
		return err
	}
	if err := r.put(ctx, BlobLedger, l); err != nil {
		return err
	}
	meta := Meta{Version: r.version + 1, UpdatedAt: r.now(), EventCount: len(events)}
	if err := r.put(ctx, BlobMeta, meta); err != nil {
		return err
	}
	r.version = meta.Version
	appLog.Debug("snapshot replicated", "version", meta.Version, "events", meta.EventCount)
	return nil
}

// WriteLedger replaces only the ledger blob. It is the single write the
// background context makes.
func (r *Replicator) WriteLedger(ctx context.Context, l ledger.Ledger) error {
	if l == nil {
		l = ledger.New()
	}
	return r.put(ctx, BlobLedger, l)
}

// Load reads the whole snapshot. A missing events blob is ErrNoSnapshot;
// malformed blobs read as empty.
func (r *Replicator) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	data, err := r.medium.Get(ctx, BlobEvents)
	if errors.Is(err, ErrMissing) {
		return snap, ErrNoSnapshot
	}
	if err != nil {
		return snap, fmt.Errorf("read %s: %w", BlobEvents, err)
	}
	if err := json.Unmarshal(data, &snap.Events); err != nil {
		appLog.Error("malformed events blob, treating as empty", err)
		snap.Events = nil
	}
	if snap.Events == nil {
		snap.Events = []event.Event{}
	}

	snap.Ledger = ledger.New()
	data, err = r.medium.Get(ctx, BlobLedger)
	switch {
	case errors.Is(err, ErrMissing):
	case err != nil:
		return snap, fmt.Errorf("read %s: %w", BlobLedger, err)
	default:
		var l ledger.Ledger
		if err := json.Unmarshal(data, &l); err != nil {
			appLog.Error("malformed ledger blob, treating as empty", err)
		} else if l != nil {
			snap.Ledger = l
		}
	}

	if meta, err := r.readMeta(ctx); err == nil {
		snap.Meta = meta
	}
	return snap, nil
}

func (r *Replicator) readMeta(ctx context.Context) (Meta, error) {
	var meta Meta
	data, err := r.medium.Get(ctx, BlobMeta)
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

func (r *Replicator) put(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := r.medium.Put(ctx, name, data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
