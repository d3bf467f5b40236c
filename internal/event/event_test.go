package event_test

import (
	"testing"

	"github.com/goccy/go-json"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/event"
)

func TestNew(t *testing.T) {
	e, err := event.New("msg-1", event.GiveawayEnded, 3, event.GiveawayEndedData{
		Outcome:      event.OutcomeWinner,
		WinnerID:     "user-7",
		Participants: 4,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if e.AggregateID != "msg-1" || e.Type != event.GiveawayEnded || e.Version != 3 {
		t.Errorf("New() = %+v, unexpected header fields", e)
	}

	var d event.GiveawayEndedData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if d.WinnerID != "user-7" || d.Participants != 4 {
		t.Errorf("payload = %+v, want winner user-7 with 4 participants", d)
	}
}

func TestNew_UnmarshalablePayload(t *testing.T) {
	if _, err := event.New("msg-1", event.GiveawayStarted, 1, make(chan int)); err == nil {
		t.Fatal("expected error for unmarshalable payload")
	}
}
