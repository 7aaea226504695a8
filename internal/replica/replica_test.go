package replica

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"calendar-app/internal/event"
	"calendar-app/internal/ledger"
)

func runMediumTests(t *testing.T, m Medium) {
	ctx := context.Background()

	if _, err := m.Get(ctx, "events"); !errors.Is(err, ErrMissing) {
		t.Fatalf("Get missing blob: got %v, want ErrMissing", err)
	}
	if err := m.Put(ctx, "events", []byte(`[1]`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := m.Put(ctx, "events", []byte(`[1,2]`)); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, err := m.Get(ctx, "events")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `[1,2]` {
		t.Errorf("Get: got %s", got)
	}
}

func TestMemoryMedium(t *testing.T) {
	runMediumTests(t, NewMemoryMedium())
}

func TestFileMedium(t *testing.T) {
	runMediumTests(t, NewFileMedium(t.TempDir()))
}

func TestRedisMedium(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}
	if os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true" {
		t.Skip("Skipping Docker-based tests in CI environment")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7")
	if err != nil {
		t.Skipf("Failed to start Redis container (Docker may not be available): %v", err)
	}
	defer container.Terminate(ctx)

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Skipf("Failed to get Redis connection string: %v", err)
	}
	opts, err := redis.ParseURL(uri)
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	m := NewRedisMedium(redis.NewClient(opts), "calendar-test:")
	defer m.Close()
	runMediumTests(t, m)

	r := NewRedisMedium(redis.NewClient(opts), "calendar-replica:")
	defer r.Close()
	runReplicatorTests(t, r)
}

func sampleEvents() []event.Event {
	return []event.Event{{
		ID:         "a",
		Title:      "Standup",
		Date:       "2025-05-21",
		EndDate:    "2025-05-21",
		Start:      "09:00",
		End:        "09:15",
		RemindMode: event.MinutesBefore(10),
		Color:      "default",
	}}
}

func runReplicatorTests(t *testing.T, m Medium) {
	ctx := context.Background()
	r := NewReplicator(m)

	if _, err := r.Load(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("Load before replicate: got %v, want ErrNoSnapshot", err)
	}

	l := ledger.Ledger{"2025-05-21_a_10": true}
	if err := r.Replicate(ctx, sampleEvents(), l); err != nil {
		t.Fatalf("Replicate: %v", err)
	}
	snap, err := r.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(snap.Events, sampleEvents()) {
		t.Errorf("events: got %+v", snap.Events)
	}
	if !reflect.DeepEqual(snap.Ledger, l) {
		t.Errorf("ledger: got %v", snap.Ledger)
	}
	if snap.Meta.Version != 1 || snap.Meta.EventCount != 1 {
		t.Errorf("meta: got %+v", snap.Meta)
	}

	// WriteLedger touches only the ledger.
	if err := r.WriteLedger(ctx, ledger.New()); err != nil {
		t.Fatalf("WriteLedger: %v", err)
	}
	snap, _ = r.Load(ctx)
	if len(snap.Ledger) != 0 || len(snap.Events) != 1 || snap.Meta.Version != 1 {
		t.Errorf("after WriteLedger: %+v", snap)
	}

	// A second replicator continues the version sequence.
	r2 := NewReplicator(m)
	if err := r2.Replicate(ctx, nil, nil); err != nil {
		t.Fatalf("Replicate: %v", err)
	}
	snap, _ = r2.Load(ctx)
	if snap.Meta.Version != 2 || len(snap.Events) != 0 || snap.Ledger == nil {
		t.Errorf("after second replicator: %+v", snap)
	}
}

func TestReplicatorMemory(t *testing.T) {
	runReplicatorTests(t, NewMemoryMedium())
}

func TestReplicatorFile(t *testing.T) {
	runReplicatorTests(t, NewFileMedium(t.TempDir()))
}

func TestReplicatorMeta(t *testing.T) {
	r := NewReplicator(NewMemoryMedium())
	fixed := time.Date(2025, 5, 21, 8, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	for i := 0; i < 3; i++ {
		if err := r.Replicate(context.Background(), sampleEvents(), nil); err != nil {
			t.Fatal(err)
		}
	}
	snap, err := r.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := Meta{Version: 3, UpdatedAt: fixed, EventCount: 1}
	if !snap.Meta.UpdatedAt.Equal(want.UpdatedAt) || snap.Meta.Version != want.Version || snap.Meta.EventCount != want.EventCount {
		t.Errorf("meta: got %+v, want %+v", snap.Meta, want)
	}
}

func TestLoadMalformedBlobs(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMedium()
	m.Put(ctx, BlobEvents, []byte(`{broken`))
	m.Put(ctx, BlobLedger, []byte(`[]`))

	snap, err := NewReplicator(m).Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Events == nil || len(snap.Events) != 0 {
		t.Errorf("events: got %v, want empty", snap.Events)
	}
	if snap.Ledger == nil || len(snap.Ledger) != 0 {
		t.Errorf("ledger: got %v, want empty", snap.Ledger)
	}
}

func TestLoadLenientRemindMode(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMedium()
	m.Put(ctx, BlobEvents, []byte(`[{"id":"x","title":"T","date":"2025-05-21","endDate":"2025-05-21","remindMode":"bogus"}]`))

	snap, err := NewReplicator(m).Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Events) != 1 || snap.Events[0].RemindMode != event.Off {
		t.Errorf("events: got %+v", snap.Events)
	}
}
