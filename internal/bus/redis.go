package bus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	appLog "calendar-app/internal/log"
)

// RedisBus publishes messages over Redis Pub/Sub so the worker can run in
// its own process. Each topic maps to the channel prefix+topic.
type RedisBus struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisBus returns a RedisBus on rdb. The caller keeps ownership of rdb
// unless Close is called.
func NewRedisBus(rdb *redis.Client, prefix string) *RedisBus {
	return &RedisBus{rdb: rdb, prefix: prefix}
}

func (b *RedisBus) channel(topic Topic) string {
	return b.prefix + string(topic)
}

func (b *RedisBus) Publish(ctx context.Context, topic Topic, m Message) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	n, err := b.rdb.Publish(ctx, b.channel(topic), data).Result()
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	if n == 0 {
		return ErrNoSubscriber
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, topic Topic) (<-chan Message, error) {
	ps := b.rdb.Subscribe(ctx, b.channel(topic))
	// Wait for the subscription to be confirmed so no message published
	// after Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan Message, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-in:
				if !ok {
					return
				}
				m, err := Decode([]byte(raw.Payload))
				if err != nil {
					appLog.Warn("dropping undecodable bus message", "channel", raw.Channel, "error", err.Error())
					continue
				}
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}
