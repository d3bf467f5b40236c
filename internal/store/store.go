package store

import (
	"context"
	"errors"
	"time"
)

// Errors returned by repository implementations.
var (
	ErrNotFound  = errors.New("giveaway not found")
	ErrDuplicate = errors.New("giveaway already exists for message")
)

// Giveaway is the durable record of one giveaway.
type Giveaway struct {
	ID               string    `db:"id"`
	Prize            string    `db:"prize"`
	GuildID          string    `db:"guild_id"`
	ChannelID        string    `db:"channel_id"`
	MessageID        string    `db:"message_id"`
	HostID           string    `db:"host_id"`
	WinnerID         *string   `db:"winner_id"`
	RemainingSeconds int       `db:"remaining_seconds"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// Active reports whether the giveaway still has time left and is therefore
// eligible for recovery.
func (g *Giveaway) Active() bool { return g.RemainingSeconds > 0 }

// GiveawayRepository defines giveaway persistence operations. Every write is
// committed before the call returns.
type GiveawayRepository interface {
	// Create inserts g with no winner and sets its ID and timestamps.
	// A second record for the same message returns ErrDuplicate.
	Create(ctx context.Context, g *Giveaway) error
	// UpdateRemaining lowers the remaining seconds of the giveaway hosted by
	// messageID. Unknown messages and attempts to raise the value are no-ops.
	UpdateRemaining(ctx context.Context, messageID string, remaining int) error
	// UpdateWinner records the winner. Unknown messages are a no-op.
	UpdateWinner(ctx context.Context, messageID, winnerID string) error
	// ListActive returns every giveaway with remaining seconds > 0.
	ListActive(ctx context.Context) ([]Giveaway, error)
	GetByMessageID(ctx context.Context, messageID string) (*Giveaway, error)
}
