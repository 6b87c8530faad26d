package bus

import (
	"context"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis implements Bus over Redis Pub/Sub. One PubSub connection is held
// per subscribed channel so Unsubscribe can tear it down independently.
type Redis struct {
	rdb *redis.Client
	log zerolog.Logger

	mu   sync.Mutex
	subs map[string]*redis.PubSub
}

func NewRedis(url string, log zerolog.Logger) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Redis{
		rdb:  redis.NewClient(opt),
		log:  log.With().Str("component", "redis-bus").Logger(),
		subs: make(map[string]*redis.PubSub),
	}, nil
}

func (b *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
	}
	return b.rdb.Publish(ctx, channel, payload).Err()
}

func (b *Redis) Subscribe(ctx context.Context, channel string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[channel]; ok {
		return nil
	}
	ps := b.rdb.Subscribe(ctx, channel)
	// confirm the subscription before reporting success
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return err
	}
	b.subs[channel] = ps
	go func() {
		for msg := range ps.Channel() {
			h([]byte(msg.Payload))
		}
	}()
	return nil
}

func (b *Redis) Unsubscribe(_ context.Context, channel string) error {
	b.mu.Lock()
	ps, ok := b.subs[channel]
	delete(b.subs, channel)
	b.mu.Unlock()
	if !ok {
		return nil
	}
	// Close unsubscribes and ends the reader goroutine via channel close.
	return ps.Close()
}

func (b *Redis) Close() error {
	b.mu.Lock()
	for ch, ps := range b.subs {
		if err := ps.Close(); err != nil {
			b.log.Warn().Err(err).Str("channel", ch).Msg("closing subscription")
		}
	}
	b.subs = make(map[string]*redis.PubSub)
	b.mu.Unlock()
	return b.rdb.Close()
}
