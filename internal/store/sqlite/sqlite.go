// Package sqlite provides the "sqlite" store driver: a single-file database
// managed with gorm.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/clock"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/config"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/store"
)

func init() {
	store.Register("sqlite", openSQLite)
}

func openSQLite(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	db, err := Open(ctx, cfg.Path)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sqlite handle: %w", err)
	}
	return &store.Repositories{
		Giveaways: NewGiveawayRepo(db, clk),
		Events:    NewEventStore(db, clk),
		Closer:    sqlDB,
		Ping:      sqlDB.PingContext,
	}, nil
}

// Open opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string) (*gorm.DB, error) {
	gormLog := gormlogger.New(
		slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
	db, err := gorm.Open(gormsqlite.Open(path), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sqlite handle: %w", err)
	}
	// SQLite serializes writers; one connection also keeps ":memory:"
	// databases from splitting across the pool.
	sqlDB.SetMaxOpenConns(1)

	if err := db.WithContext(ctx).AutoMigrate(&giveawayModel{}, &eventModel{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrating sqlite database: %w", err)
	}
	return db, nil
}
