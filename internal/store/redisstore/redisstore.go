// Package redisstore provides the "redis" store driver. Each giveaway is a hash
// keyed by its message ID; a sorted set indexes the active ones in creation
// order. Events are JSON documents kept in per-aggregate and per-type lists.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/clock"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/config"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/store"
)

// maxTxRetries bounds optimistic transaction retries on contended keys.
const maxTxRetries = 10

var errTxContention = errors.New("redis transaction kept conflicting")

func init() {
	store.Register("redis", openRedis)
}

func openRedis(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	client, err := Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	prefix := cfg.Redis.KeyPrefix
	return &store.Repositories{
		Giveaways: NewGiveawayRepo(client, prefix, clk),
		Events:    NewEventStore(client, prefix, clk),
		Closer:    client,
		Ping: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}, nil
}

// Connect opens and verifies a Redis connection.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

type keys struct {
	prefix string
}

func (k keys) sequence() string { return k.prefix + "giveaway:seq" }

func (k keys) giveaway(messageID string) string { return k.prefix + "giveaway:" + messageID }

func (k keys) active() string { return k.prefix + "giveaways:active" }

func (k keys) aggregate(aggregateID string) string { return k.prefix + "events:aggregate:" + aggregateID }

func (k keys) versions(aggregateID string) string { return k.prefix + "events:versions:" + aggregateID }

func (k keys) byType(t string) string { return k.prefix + "events:type:" + t }

func (k keys) eventSequence() string { return k.prefix + "events:seq" }

// watchRetry runs fn in a WATCH transaction on keys, retrying while another
// client modifies them.
func watchRetry(ctx context.Context, client *redis.Client, fn func(tx *redis.Tx) error, watched ...string) error {
	for range maxTxRetries {
		err := client.Watch(ctx, fn, watched...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return errTxContention
}
