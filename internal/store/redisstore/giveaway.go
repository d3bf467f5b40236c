package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/clock"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/store"
)

// Hash fields of a giveaway record.
const (
	fieldID        = "id"
	fieldPrize     = "prize"
	fieldGuild     = "guild_id"
	fieldChannel   = "channel_id"
	fieldMessage   = "message_id"
	fieldHost      = "host_id"
	fieldWinner    = "winner_id"
	fieldRemaining = "remaining_seconds"
	fieldCreated   = "created_at"
	fieldUpdated   = "updated_at"
)

// GiveawayRepo implements store.GiveawayRepository on Redis hashes.
type GiveawayRepo struct {
	client *redis.Client
	keys   keys
	clock  clock.Clock
}

// NewGiveawayRepo returns a new GiveawayRepo. Every key starts with prefix.
func NewGiveawayRepo(client *redis.Client, prefix string, clk clock.Clock) *GiveawayRepo {
	return &GiveawayRepo{client: client, keys: keys{prefix: prefix}, clock: clk}
}

func (r *GiveawayRepo) Create(ctx context.Context, g *store.Giveaway) error {
	key := r.keys.giveaway(g.MessageID)
	now := r.clock.Now().UTC()

	err := watchRetry(ctx, r.client, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", store.ErrDuplicate, g.MessageID)
		}

		id, err := tx.Incr(ctx, r.keys.sequence()).Result()
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, map[string]any{
				fieldID:        id,
				fieldPrize:     g.Prize,
				fieldGuild:     g.GuildID,
				fieldChannel:   g.ChannelID,
				fieldMessage:   g.MessageID,
				fieldHost:      g.HostID,
				fieldRemaining: g.RemainingSeconds,
				fieldCreated:   now.Format(time.RFC3339Nano),
				fieldUpdated:   now.Format(time.RFC3339Nano),
			})
			if g.RemainingSeconds > 0 {
				pipe.ZAdd(ctx, r.keys.active(), redis.Z{Score: float64(id), Member: g.MessageID})
			}
			return nil
		})
		if err == nil {
			g.ID = strconv.FormatInt(id, 10)
		}
		return err
	}, key)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return err
		}
		return fmt.Errorf("creating giveaway: %w", err)
	}

	g.WinnerID = nil
	g.CreatedAt = now
	g.UpdatedAt = now
	return nil
}

func (r *GiveawayRepo) UpdateRemaining(ctx context.Context, messageID string, remaining int) error {
	key := r.keys.giveaway(messageID)

	err := watchRetry(ctx, r.client, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldRemaining).Int()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if remaining > current {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldRemaining, remaining,
				fieldUpdated, r.clock.Now().UTC().Format(time.RFC3339Nano),
			)
			if remaining == 0 {
				pipe.ZRem(ctx, r.keys.active(), messageID)
			}
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("updating remaining seconds: %w", err)
	}
	return nil
}

func (r *GiveawayRepo) UpdateWinner(ctx context.Context, messageID, winnerID string) error {
	key := r.keys.giveaway(messageID)

	err := watchRetry(ctx, r.client, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil || n == 0 {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldWinner, winnerID,
				fieldUpdated, r.clock.Now().UTC().Format(time.RFC3339Nano),
			)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("updating winner: %w", err)
	}
	return nil
}

func (r *GiveawayRepo) ListActive(ctx context.Context) ([]store.Giveaway, error) {
	ids, err := r.client.ZRange(ctx, r.keys.active(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing active giveaways: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, r.keys.giveaway(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading active giveaways: %w", err)
	}

	giveaways := make([]store.Giveaway, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		g, err := decodeGiveaway(fields)
		if err != nil {
			return nil, fmt.Errorf("decoding giveaway %s: %w", ids[i], err)
		}
		if g.Active() {
			giveaways = append(giveaways, *g)
		}
	}
	return giveaways, nil
}

func (r *GiveawayRepo) GetByMessageID(ctx context.Context, messageID string) (*store.Giveaway, error) {
	fields, err := r.client.HGetAll(ctx, r.keys.giveaway(messageID)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting giveaway: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, messageID)
	}
	g, err := decodeGiveaway(fields)
	if err != nil {
		return nil, fmt.Errorf("decoding giveaway %s: %w", messageID, err)
	}
	return g, nil
}

func decodeGiveaway(fields map[string]string) (*store.Giveaway, error) {
	remaining, err := strconv.Atoi(fields[fieldRemaining])
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", fieldRemaining, err)
	}
	created, err := time.Parse(time.RFC3339Nano, fields[fieldCreated])
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", fieldCreated, err)
	}
	updated, err := time.Parse(time.RFC3339Nano, fields[fieldUpdated])
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", fieldUpdated, err)
	}

	g := &store.Giveaway{
		ID:               fields[fieldID],
		Prize:            fields[fieldPrize],
		GuildID:          fields[fieldGuild],
		ChannelID:        fields[fieldChannel],
		MessageID:        fields[fieldMessage],
		HostID:           fields[fieldHost],
		RemainingSeconds: remaining,
		CreatedAt:        created,
		UpdatedAt:        updated,
	}
	if w, ok := fields[fieldWinner]; ok {
		g.WinnerID = &w
	}
	return g, nil
}
