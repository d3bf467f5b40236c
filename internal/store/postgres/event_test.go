package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/event"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/store/postgres"
)

func TestEventStore_AppendAndLoad(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	aggID := "msg-001"
	events := []event.Event{
		{AggregateID: aggID, Type: event.GiveawayStarted, Data: json.RawMessage(`{"prize":"Gift Card"}`), Version: 1},
		{AggregateID: aggID, Type: event.GiveawayEnded, Data: json.RawMessage(`{"outcome":"winner"}`), Version: 2},
	}

	if err := es.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	loaded, err := es.Load(ctx, aggID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Load returned %d events, want 2", len(loaded))
	}

	// Should be ordered by version.
	if loaded[0].Version != 1 || loaded[1].Version != 2 {
		t.Errorf("versions = [%d, %d], want [1, 2]", loaded[0].Version, loaded[1].Version)
	}
	if loaded[0].Type != event.GiveawayStarted {
		t.Errorf("event[0].Type = %q, want %q", loaded[0].Type, event.GiveawayStarted)
	}
	var started event.GiveawayStartedData
	if err := json.Unmarshal(loaded[0].Data, &started); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if started.Prize != "Gift Card" {
		t.Errorf("prize = %q", started.Prize)
	}
}

func TestEventStore_LoadByType(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	events := []event.Event{
		{AggregateID: "a1", Type: event.GiveawayStarted, Data: json.RawMessage(`{}`), Version: 1},
		{AggregateID: "a1", Type: event.GiveawayResumed, Data: json.RawMessage(`{}`), Version: 2},
		{AggregateID: "a2", Type: event.GiveawayStarted, Data: json.RawMessage(`{}`), Version: 1},
	}

	if err := es.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	started, err := es.LoadByType(ctx, event.GiveawayStarted)
	if err != nil {
		t.Fatalf("LoadByType: %v", err)
	}
	if len(started) != 2 {
		t.Fatalf("LoadByType(GiveawayStarted) returned %d, want 2", len(started))
	}

	resumed, err := es.LoadByType(ctx, event.GiveawayResumed)
	if err != nil {
		t.Fatalf("LoadByType: %v", err)
	}
	if len(resumed) != 1 {
		t.Fatalf("LoadByType(GiveawayResumed) returned %d, want 1", len(resumed))
	}
}

func TestEventStore_UniqueAggregateVersion(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	e := event.Event{
		AggregateID: "dup-test",
		Type:        event.GiveawayStarted,
		Data:        json.RawMessage(`{}`),
		Version:     1,
	}

	if err := es.Append(ctx, e); err != nil {
		t.Fatalf("first Append: %v", err)
	}

	err := es.Append(ctx, e)
	if !errors.Is(err, event.ErrVersionConflict) {
		t.Fatalf("error = %v, want ErrVersionConflict", err)
	}
}

func TestEventStore_LoadEmpty(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	loaded, err := es.Load(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected empty slice, got %d events", len(loaded))
	}
}
