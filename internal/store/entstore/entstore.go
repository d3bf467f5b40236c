// Package entstore provides the "ent" store driver: the Postgres schema of
// the sqlx driver accessed through plain database/sql with otelsql
// instrumentation, the connection style ent uses internally.
package entstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	_ "github.com/lib/pq" // postgres driver
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/clock"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/config"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/store"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/store/postgres"
)

func init() {
	store.Register("ent", openEnt)
}

// openEnt is the store.Driver for the "ent" backend.
func openEnt(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &store.Repositories{
		Giveaways: NewGiveawayRepo(db, clk),
		Events:    NewEventStore(db),
		Closer:    store.CloserFunc(db.Close),
		Ping:      db.PingContext,
	}, nil
}

// Connect opens and verifies a Postgres connection via database/sql with
// OTEL instrumentation.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := otelsql.Open("postgres", cfg.DSN(),
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, fmt.Errorf("opening ent database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging ent database: %w", err)
	}

	return db, nil
}
