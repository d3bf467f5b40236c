package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/clock"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/store"
)

// GiveawayRepo implements store.GiveawayRepository with gorm.
type GiveawayRepo struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewGiveawayRepo returns a new GiveawayRepo.
func NewGiveawayRepo(db *gorm.DB, clk clock.Clock) *GiveawayRepo {
	return &GiveawayRepo{db: db, clock: clk}
}

func (r *GiveawayRepo) Create(ctx context.Context, g *store.Giveaway) error {
	now := r.clock.Now().UTC()
	m := giveawayModel{
		Prize:            g.Prize,
		GuildID:          g.GuildID,
		ChannelID:        g.ChannelID,
		MessageID:        g.MessageID,
		HostID:           g.HostID,
		RemainingSeconds: g.RemainingSeconds,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", store.ErrDuplicate, g.MessageID)
		}
		return fmt.Errorf("creating giveaway: %w", err)
	}

	g.ID = strconv.FormatUint(m.ID, 10)
	g.WinnerID = nil
	g.CreatedAt = now
	g.UpdatedAt = now
	return nil
}

func (r *GiveawayRepo) UpdateRemaining(ctx context.Context, messageID string, remaining int) error {
	err := r.db.WithContext(ctx).Model(&giveawayModel{}).
		Where("message_id = ? AND remaining_seconds >= ?", messageID, remaining).
		Updates(map[string]any{
			"remaining_seconds": remaining,
			"updated_at":        r.clock.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("updating remaining seconds: %w", err)
	}
	return nil
}

func (r *GiveawayRepo) UpdateWinner(ctx context.Context, messageID, winnerID string) error {
	err := r.db.WithContext(ctx).Model(&giveawayModel{}).
		Where("message_id = ?", messageID).
		Updates(map[string]any{
			"winner_id":  winnerID,
			"updated_at": r.clock.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("updating winner: %w", err)
	}
	return nil
}

func (r *GiveawayRepo) ListActive(ctx context.Context) ([]store.Giveaway, error) {
	var models []giveawayModel
	err := r.db.WithContext(ctx).
		Where("remaining_seconds > ?", 0).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("listing active giveaways: %w", err)
	}

	giveaways := make([]store.Giveaway, 0, len(models))
	for _, m := range models {
		giveaways = append(giveaways, m.toStore())
	}
	return giveaways, nil
}

func (r *GiveawayRepo) GetByMessageID(ctx context.Context, messageID string) (*store.Giveaway, error) {
	var m giveawayModel
	err := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, messageID)
		}
		return nil, fmt.Errorf("getting giveaway: %w", err)
	}
	g := m.toStore()
	return &g, nil
}
