package bus

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		wire string
	}{
		{
			name: "show notification",
			msg:  ShowNotification{Title: "⏰ Dentist", Body: "Starting in about 20 minutes", Tag: "2025-05-21_ev1_30", Icon: "icon.png"},
			wire: `{"type":"SHOW_NOTIFICATION","title":"⏰ Dentist","body":"Starting in about 20 minutes","tag":"2025-05-21_ev1_30","icon":"icon.png"}`,
		},
		{
			name: "check reminders",
			msg:  CheckReminders{},
			wire: `{"type":"CHECK_REMINDERS"}`,
		},
		{
			name: "log",
			msg:  Log{Msg: "[SW] hello"},
			wire: `{"type":"SW_LOG","msg":"[SW] hello"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if string(data) != tt.wire {
				t.Errorf("Encode: got %s, want %s", data, tt.wire)
			}
			got, err := Decode([]byte(tt.wire))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !reflect.DeepEqual(got, tt.msg) {
				t.Errorf("Decode: got %#v, want %#v", got, tt.msg)
			}
		})
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"PING"}`))
	if !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("expected ErrUnknownMessage, got %v", err)
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case m, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return nil
}

func runBusTests(t *testing.T, b Bus) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Nobody listens yet, so the message is reported as not delivered.
	if err := b.Publish(ctx, Background, ShowNotification{Title: "t", Tag: "k"}); !errors.Is(err, ErrNoSubscriber) {
		t.Fatalf("Publish without subscriber: got %v, want ErrNoSubscriber", err)
	}

	bg, err := b.Subscribe(ctx, Background)
	if err != nil {
		t.Fatalf("Subscribe background: %v", err)
	}
	fg, err := b.Subscribe(ctx, Foreground)
	if err != nil {
		t.Fatalf("Subscribe foreground: %v", err)
	}

	if err := b.Publish(ctx, Background, CheckReminders{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if m := receive(t, bg); m.Type() != TypeCheckReminders {
		t.Errorf("background got %v", m.Type())
	}

	if err := b.Publish(ctx, Foreground, Log{Msg: "hi"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if m := receive(t, fg); !reflect.DeepEqual(m, Log{Msg: "hi"}) {
		t.Errorf("foreground got %#v", m)
	}

	// Topics are isolated.
	select {
	case m := <-bg:
		t.Errorf("background received foreground message %#v", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChanBus(t *testing.T) {
	b := NewChanBus()
	defer b.Close()
	runBusTests(t, b)
}

func TestChanBusUnsubscribeOnCancel(t *testing.T) {
	b := NewChanBus()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx, Background)
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	// The cancelled subscriber no longer counts as a listener.
	deadline := time.Now().Add(time.Second)
	err = b.Publish(context.Background(), Background, CheckReminders{})
	for !errors.Is(err, ErrNoSubscriber) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
		err = b.Publish(context.Background(), Background, CheckReminders{})
	}
	if !errors.Is(err, ErrNoSubscriber) {
		t.Errorf("Publish after unsubscribe: got %v, want ErrNoSubscriber", err)
	}
}

func TestChanBusClosed(t *testing.T) {
	b := NewChanBus()
	ch, _ := b.Subscribe(context.Background(), Foreground)
	b.Close()

	if _, ok := <-ch; ok {
		t.Error("expected subscriber channel closed")
	}
	if err := b.Publish(context.Background(), Foreground, Log{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish after Close: got %v", err)
	}
	if _, err := b.Subscribe(context.Background(), Foreground); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe after Close: got %v", err)
	}
}

func TestChanBusFullSubscriberDoesNotBlock(t *testing.T) {
	b := NewChanBus()
	defer b.Close()
	if _, err := b.Subscribe(context.Background(), Background); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish(context.Background(), Background, CheckReminders{})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestRedisBus(t *testing.T) {
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

	b := NewRedisBus(redis.NewClient(opts), "calendar-test:")
	defer b.Close()
	runBusTests(t, b)
}
