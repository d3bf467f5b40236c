package entstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/clock"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/store"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/store/postgres"
)

const giveawayColumns = `id, prize, guild_id, channel_id, message_id, host_id, winner_id,
	remaining_seconds, created_at, updated_at`

// GiveawayRepo implements store.GiveawayRepository using database/sql.
type GiveawayRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewGiveawayRepo returns a new GiveawayRepo.
func NewGiveawayRepo(db *sql.DB, clk clock.Clock) *GiveawayRepo {
	return &GiveawayRepo{db: db, clock: clk}
}

func (r *GiveawayRepo) Create(ctx context.Context, g *store.Giveaway) error {
	now := r.clock.Now().UTC()
	g.WinnerID = nil
	g.CreatedAt = now
	g.UpdatedAt = now

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO giveaways (prize, guild_id, channel_id, message_id, host_id, remaining_seconds, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		g.Prize, g.GuildID, g.ChannelID, g.MessageID, g.HostID, g.RemainingSeconds, g.CreatedAt, g.UpdatedAt,
	).Scan(&g.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", store.ErrDuplicate, g.MessageID)
		}
		return fmt.Errorf("creating giveaway: %w", err)
	}
	return nil
}

func (r *GiveawayRepo) UpdateRemaining(ctx context.Context, messageID string, remaining int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE giveaways SET remaining_seconds = $1, updated_at = $2
		 WHERE message_id = $3 AND remaining_seconds >= $1`,
		remaining, r.clock.Now().UTC(), messageID,
	)
	if err != nil {
		return fmt.Errorf("updating remaining seconds: %w", err)
	}
	return nil
}

func (r *GiveawayRepo) UpdateWinner(ctx context.Context, messageID, winnerID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE giveaways SET winner_id = $1, updated_at = $2 WHERE message_id = $3`,
		winnerID, r.clock.Now().UTC(), messageID,
	)
	if err != nil {
		return fmt.Errorf("updating winner: %w", err)
	}
	return nil
}

func (r *GiveawayRepo) ListActive(ctx context.Context) ([]store.Giveaway, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+giveawayColumns+` FROM giveaways WHERE remaining_seconds > 0 ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing active giveaways: %w", err)
	}
	defer rows.Close()

	var giveaways []store.Giveaway
	for rows.Next() {
		g, err := scanGiveaway(rows)
		if err != nil {
			return nil, err
		}
		giveaways = append(giveaways, *g)
	}
	return giveaways, rows.Err()
}

func (r *GiveawayRepo) GetByMessageID(ctx context.Context, messageID string) (*store.Giveaway, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+giveawayColumns+` FROM giveaways WHERE message_id = $1`, messageID)
	g, err := scanGiveaway(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, messageID)
		}
		return nil, err
	}
	return g, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGiveaway(s scanner) (*store.Giveaway, error) {
	var g store.Giveaway
	var winner sql.NullString
	err := s.Scan(&g.ID, &g.Prize, &g.GuildID, &g.ChannelID, &g.MessageID, &g.HostID,
		&winner, &g.RemainingSeconds, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning giveaway row: %w", err)
	}
	if winner.Valid {
		g.WinnerID = &winner.String
	}
	return &g, nil
}
