// Package bus carries the closed set of messages exchanged between the
// foreground app and the background worker. The two contexts share no
// memory; everything they say to each other goes through a Bus.
package bus

import (
	"context"
	"errors"
	"sync"

	appLog "calendar-app/internal/log"
)

// Topic addresses one side of the conversation.
type Topic string

const (
	// Background is read by the worker: SHOW_NOTIFICATION, CHECK_REMINDERS.
	Background Topic = "background"
	// Foreground is read by the app: SW_LOG.
	Foreground Topic = "foreground"
)

var ErrClosed = errors.New("bus closed")

// ErrNoSubscriber is returned by Publish when nothing listens on the topic.
var ErrNoSubscriber = errors.New("no subscriber on topic")

type Bus interface {
	Publish(ctx context.Context, topic Topic, m Message) error
	// Subscribe returns a channel that is closed when ctx is done or the
	// bus is closed.
	Subscribe(ctx context.Context, topic Topic) (<-chan Message, error)
	Close() error
}

const subscriberBuffer = 32

// ChanBus is an in-process Bus. Delivery never blocks the publisher: a
// subscriber whose buffer is full misses the message.
type ChanBus struct {
	mu     sync.Mutex
	subs   map[Topic]map[chan Message]struct{}
	closed bool
}

func NewChanBus() *ChanBus {
	return &ChanBus{subs: make(map[Topic]map[chan Message]struct{})}
}

func (b *ChanBus) Publish(ctx context.Context, topic Topic, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if len(b.subs[topic]) == 0 {
		return ErrNoSubscriber
	}
	for ch := range b.subs[topic] {
		select {
		case ch <- m:
		default:
			appLog.Warn("bus subscriber full, dropping message", "topic", string(topic), "type", string(m.Type()))
		}
	}
	return nil
}

func (b *ChanBus) Subscribe(ctx context.Context, topic Topic) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	ch := make(chan Message, subscriberBuffer)
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan Message]struct{})
	}
	b.subs[topic][ch] = struct{}{}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[topic][ch]; ok {
			delete(b.subs[topic], ch)
			close(ch)
		}
	}()
	return ch, nil
}

func (b *ChanBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for topic, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, topic)
	}
	return nil
}
