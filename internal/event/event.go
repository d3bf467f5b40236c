package event

import (
	"time"

	"github.com/goccy/go-json"
)

// Type identifies an event kind.
type Type string

const (
	GiveawayStarted Type = "giveaway.started"
	GiveawayResumed Type = "giveaway.resumed"
	GiveawayEnded   Type = "giveaway.ended"
)

// Event represents a single lifecycle event of a giveaway. AggregateID is
// the hosting message ID.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int             `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// GiveawayStartedData is the payload for GiveawayStarted events.
type GiveawayStartedData struct {
	Prize     string `json:"prize"`
	ChannelID string `json:"channel_id"`
	HostID    string `json:"host_id"`
	Seconds   int    `json:"seconds"`
}

// GiveawayResumedData is the payload for GiveawayResumed events.
type GiveawayResumedData struct {
	RemainingSeconds int `json:"remaining_seconds"`
}

// Outcomes recorded in GiveawayEndedData.
const (
	OutcomeWinner           = "winner"
	OutcomeNoParticipants   = "no_participants"
	OutcomeNoEligibleWinner = "no_eligible_winner"
	OutcomeFailed           = "failed"
)

// GiveawayEndedData is the payload for GiveawayEnded events.
type GiveawayEndedData struct {
	Outcome      string `json:"outcome"`
	WinnerID     string `json:"winner_id,omitempty"`
	Participants int    `json:"participants"`
	Error        string `json:"error,omitempty"`
}

// New builds an event with the payload marshalled to JSON.
func New(aggregateID string, t Type, version int, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateID: aggregateID,
		Type:        t,
		Data:        data,
		Version:     version,
	}, nil
}
