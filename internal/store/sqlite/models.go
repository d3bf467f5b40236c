package sqlite

import (
	"strconv"
	"time"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/event"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/store"
)

type giveawayModel struct {
	ID               uint64 `gorm:"primaryKey;autoIncrement"`
	Prize            string `gorm:"not null"`
	GuildID          string `gorm:"not null;default:''"`
	ChannelID        string `gorm:"not null"`
	MessageID        string `gorm:"not null;uniqueIndex"`
	HostID           string `gorm:"not null;default:''"`
	WinnerID         *string
	RemainingSeconds int       `gorm:"not null;index"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (giveawayModel) TableName() string { return "giveaways" }

func (m giveawayModel) toStore() store.Giveaway {
	return store.Giveaway{
		ID:               strconv.FormatUint(m.ID, 10),
		Prize:            m.Prize,
		GuildID:          m.GuildID,
		ChannelID:        m.ChannelID,
		MessageID:        m.MessageID,
		HostID:           m.HostID,
		WinnerID:         m.WinnerID,
		RemainingSeconds: m.RemainingSeconds,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

type eventModel struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	AggregateID string    `gorm:"not null;uniqueIndex:idx_events_aggregate_version"`
	Type        string    `gorm:"not null;index"`
	Data        []byte    `gorm:"not null"`
	Version     int       `gorm:"not null;uniqueIndex:idx_events_aggregate_version"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (eventModel) TableName() string { return "events" }

func (m eventModel) toEvent() event.Event {
	return event.Event{
		ID:          strconv.FormatUint(m.ID, 10),
		AggregateID: m.AggregateID,
		Type:        event.Type(m.Type),
		Data:        m.Data,
		Version:     m.Version,
		CreatedAt:   m.CreatedAt,
	}
}
