package event

import (
	"context"
	"errors"
)

// ErrVersionConflict is returned by Append when an aggregate already has an
// event with the same version.
var ErrVersionConflict = errors.New("event version already recorded")

// Store persists and retrieves giveaway lifecycle events.
type Store interface {
	// Append persists one or more events atomically.
	Append(ctx context.Context, events ...Event) error
	// Load returns all events for an aggregate, ordered by version.
	Load(ctx context.Context, aggregateID string) ([]Event, error)
	// LoadByType returns events filtered by type, oldest first.
	LoadByType(ctx context.Context, eventType Type) ([]Event, error)
}
