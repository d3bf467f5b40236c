package giveaway_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/config"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/giveaway"
)

func TestDesignatedWinner_Pick(t *testing.T) {
	tests := []struct {
		name         string
		userID       string
		participants []string
		want         string
		wantErr      bool
	}{
		{"present", "U1", []string{"U2", "U1"}, "U1", false},
		{"absent", "U1", []string{"U2", "U3"}, "", true},
		{"no participants", "U1", nil, "", true},
		{"unset", "", []string{""}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := giveaway.DesignatedWinner{UserID: tt.userID}.Pick(context.Background(), tt.participants)
			if tt.wantErr {
				if !errors.Is(err, giveaway.ErrNoEligibleWinner) {
					t.Fatalf("error = %v, want ErrNoEligibleWinner", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Pick() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRandomWinner_Pick(t *testing.T) {
	participants := []string{"U1", "U2", "U3"}

	// With three participants a single byte is read and masked to two bits.
	got, err := giveaway.RandomWinner{Reader: bytes.NewReader([]byte{0x01})}.Pick(context.Background(), participants)
	if err != nil {
		t.Fatalf("Pick() error: %v", err)
	}
	if got != "U2" {
		t.Errorf("Pick() = %q, want U2", got)
	}

	if _, err := (giveaway.RandomWinner{}).Pick(context.Background(), nil); !errors.Is(err, giveaway.ErrNoEligibleWinner) {
		t.Errorf("error = %v, want ErrNoEligibleWinner", err)
	}

	_, err = giveaway.RandomWinner{Reader: bytes.NewReader(nil)}.Pick(context.Background(), participants)
	if err == nil {
		t.Error("expected error from exhausted reader")
	}
}

func TestRandomWinner_PickCoversEveryone(t *testing.T) {
	participants := []string{"U1", "U2", "U3", "U4"}
	seen := map[string]bool{}
	for i := 0; i < 400; i++ {
		w, err := giveaway.RandomWinner{}.Pick(context.Background(), participants)
		if err != nil {
			t.Fatalf("Pick() error: %v", err)
		}
		seen[w] = true
	}
	if len(seen) != len(participants) {
		t.Errorf("winners drawn = %v, want all of %v", seen, participants)
	}
}

func TestNewWinnerPolicy(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.GiveawayConfig
		want    giveaway.WinnerPolicy
		wantErr bool
	}{
		{"random", config.GiveawayConfig{WinnerPolicy: config.WinnerPolicyRandom}, giveaway.RandomWinner{}, false},
		{"default", config.GiveawayConfig{}, giveaway.RandomWinner{}, false},
		{"designated", config.GiveawayConfig{WinnerPolicy: config.WinnerPolicyDesignated, DesignatedWinnerID: "U1"},
			giveaway.DesignatedWinner{UserID: "U1"}, false},
		{"designated without id", config.GiveawayConfig{WinnerPolicy: config.WinnerPolicyDesignated}, nil, true},
		{"unknown", config.GiveawayConfig{WinnerPolicy: "loudest"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := giveaway.NewWinnerPolicy(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NewWinnerPolicy() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
