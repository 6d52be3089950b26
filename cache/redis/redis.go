package redis

import (
	"context"
	"crypto/tls"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBus is a cache.Bus over Redis pub/sub.
type RedisBus struct {
	client redis.UniversalClient
	logger zerolog.Logger
}

func NewRedisBus(ctx context.Context, devMode bool, redisEndpoint string, logger zerolog.Logger) (*RedisBus, error) {
	var client redis.UniversalClient
	if devMode {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:      redisEndpoint,
			TLSConfig: &tls.Config{},
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewRedisBusFromClient(client, logger), nil
}

func NewRedisBusFromClient(client redis.UniversalClient, logger zerolog.Logger) *RedisBus {
	return &RedisBus{client: client, logger: logger.With().Str("component", "redis-bus").Logger()}
}

func (b *RedisBus) Client() redis.UniversalClient {
	return b.client
}

func (b *RedisBus) Publish(ctx context.Context, channel string, message []byte) error {
	return b.client.Publish(ctx, channel, message).Err()
}

// Subscribe blocks until the subscription is confirmed, then delivers
// messages on a goroutine until ctx is done.
func (b *RedisBus) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	pubsub := b.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		b.logger.Warn().Err(err).Str("channel", channel).Msg("Pubsub subscription failed")
		return err
	}

	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					b.logger.Info().Str("channel", channel).Msg("Pubsub channel closed")
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	return nil
}
