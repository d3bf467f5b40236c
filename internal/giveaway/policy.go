package giveaway

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"slices"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/config"
)

// WinnerPolicy chooses the winner among the participants of an ended
// giveaway. It returns ErrNoEligibleWinner when nobody qualifies.
type WinnerPolicy interface {
	Pick(ctx context.Context, participants []string) (string, error)
}

// DesignatedWinner wins only a fixed account, and only if it participated.
type DesignatedWinner struct {
	UserID string
}

// Pick returns UserID if it is among participants.
func (d DesignatedWinner) Pick(_ context.Context, participants []string) (string, error) {
	if d.UserID != "" && slices.Contains(participants, d.UserID) {
		return d.UserID, nil
	}
	return "", ErrNoEligibleWinner
}

// RandomWinner draws uniformly among participants.
type RandomWinner struct {
	// Reader is the entropy source; crypto/rand.Reader when nil.
	Reader io.Reader
}

// Pick returns a uniformly chosen participant.
func (r RandomWinner) Pick(_ context.Context, participants []string) (string, error) {
	if len(participants) == 0 {
		return "", ErrNoEligibleWinner
	}
	reader := r.Reader
	if reader == nil {
		reader = rand.Reader
	}
	n, err := rand.Int(reader, big.NewInt(int64(len(participants))))
	if err != nil {
		return "", fmt.Errorf("drawing winner: %w", err)
	}
	return participants[n.Int64()], nil
}

// NewWinnerPolicy builds the policy named in the giveaway configuration.
func NewWinnerPolicy(cfg config.GiveawayConfig) (WinnerPolicy, error) {
	switch cfg.WinnerPolicy {
	case config.WinnerPolicyRandom, "":
		return RandomWinner{}, nil
	case config.WinnerPolicyDesignated:
		if cfg.DesignatedWinnerID == "" {
			return nil, fmt.Errorf("designated winner policy requires a user id")
		}
		return DesignatedWinner{UserID: cfg.DesignatedWinnerID}, nil
	default:
		return nil, fmt.Errorf("unknown winner policy %q", cfg.WinnerPolicy)
	}
}
