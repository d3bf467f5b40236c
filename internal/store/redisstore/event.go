package redisstore

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/clock"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/event"
)

// EventStore implements event.Store on Redis lists. Versions already used
// by an aggregate are tracked in a set so Append can reject duplicates.
type EventStore struct {
	client *redis.Client
	keys   keys
	clock  clock.Clock
}

// NewEventStore returns a new EventStore. Every key starts with prefix.
func NewEventStore(client *redis.Client, prefix string, clk clock.Clock) *EventStore {
	return &EventStore{client: client, keys: keys{prefix: prefix}, clock: clk}
}

func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}

	watched := make([]string, 0, len(events))
	seen := map[string]bool{}
	for _, e := range events {
		k := s.keys.versions(e.AggregateID)
		if !seen[k] {
			seen[k] = true
			watched = append(watched, k)
		}
	}

	now := s.clock.Now().UTC()
	err := watchRetry(ctx, s.client, func(tx *redis.Tx) error {
		pending := map[string]bool{}
		for _, e := range events {
			version := strconv.Itoa(e.Version)
			dup, err := tx.SIsMember(ctx, s.keys.versions(e.AggregateID), version).Result()
			if err != nil {
				return err
			}
			if dup || pending[e.AggregateID+"/"+version] {
				return fmt.Errorf("%w: aggregate=%s version=%d", event.ErrVersionConflict, e.AggregateID, e.Version)
			}
			pending[e.AggregateID+"/"+version] = true
		}

		encoded := make([][]byte, len(events))
		for i, e := range events {
			id, err := tx.Incr(ctx, s.keys.eventSequence()).Result()
			if err != nil {
				return err
			}
			e.ID = strconv.FormatInt(id, 10)
			e.CreatedAt = now
			if encoded[i], err = json.Marshal(e); err != nil {
				return fmt.Errorf("encoding event: %w", err)
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, e := range events {
				pipe.SAdd(ctx, s.keys.versions(e.AggregateID), strconv.Itoa(e.Version))
				pipe.RPush(ctx, s.keys.aggregate(e.AggregateID), encoded[i])
				pipe.RPush(ctx, s.keys.byType(string(e.Type)), encoded[i])
			}
			return nil
		})
		return err
	}, watched...)
	if err != nil {
		return fmt.Errorf("appending events: %w", err)
	}
	return nil
}

func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]event.Event, error) {
	events, err := s.load(ctx, s.keys.aggregate(aggregateID))
	if err != nil {
		return nil, fmt.Errorf("loading events for %s: %w", aggregateID, err)
	}
	sortByVersion(events)
	return events, nil
}

func (s *EventStore) LoadByType(ctx context.Context, eventType event.Type) ([]event.Event, error) {
	events, err := s.load(ctx, s.keys.byType(string(eventType)))
	if err != nil {
		return nil, fmt.Errorf("loading %s events: %w", eventType, err)
	}
	return events, nil
}

func (s *EventStore) load(ctx context.Context, key string) ([]event.Event, error) {
	raw, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]event.Event, 0, len(raw))
	for _, r := range raw {
		var e event.Event
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("decoding event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}

func sortByVersion(events []event.Event) {
	slices.SortStableFunc(events, func(a, b event.Event) int { return a.Version - b.Version })
}
