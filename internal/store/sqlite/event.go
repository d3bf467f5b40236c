package sqlite

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/clock"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/event"
)

// EventStore implements event.Store with gorm.
type EventStore struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewEventStore returns a new EventStore.
func NewEventStore(db *gorm.DB, clk clock.Clock) *EventStore {
	return &EventStore{db: db, clock: clk}
}

func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}

	now := s.clock.Now().UTC()
	models := make([]eventModel, 0, len(events))
	for _, e := range events {
		models = append(models, eventModel{
			AggregateID: e.AggregateID,
			Type:        string(e.Type),
			Data:        e.Data,
			Version:     e.Version,
			CreatedAt:   now,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&models).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: aggregate=%s", event.ErrVersionConflict, events[0].AggregateID)
		}
		return fmt.Errorf("inserting events: %w", err)
	}
	return nil
}

func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]event.Event, error) {
	var models []eventModel
	err := s.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("version ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("loading events for %s: %w", aggregateID, err)
	}
	return toEvents(models), nil
}

func (s *EventStore) LoadByType(ctx context.Context, eventType event.Type) ([]event.Event, error) {
	var models []eventModel
	err := s.db.WithContext(ctx).
		Where("type = ?", string(eventType)).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("loading %s events: %w", eventType, err)
	}
	return toEvents(models), nil
}

func toEvents(models []eventModel) []event.Event {
	events := make([]event.Event, 0, len(models))
	for _, m := range models {
		events = append(events, m.toEvent())
	}
	return events
}
