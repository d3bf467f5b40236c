package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/bot"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/bot/commands"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/clock"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/config"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/giveaway"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/health"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/leader"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/store"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/telemetry"

	// Register store drivers so they are available via store.Open.
	_ "github.com/jensholdgaard/discord-giveaway-bot/internal/store/entstore"
	_ "github.com/jensholdgaard/discord-giveaway-bot/internal/store/postgres"
	_ "github.com/jensholdgaard/discord-giveaway-bot/internal/store/redisstore"
	_ "github.com/jensholdgaard/discord-giveaway-bot/internal/store/sqlite"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before the configuration")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath, *envFile); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Variables already set in the environment win over the dotenv file.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading env file: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	policy, err := giveaway.NewWinnerPolicy(cfg.Giveaway)
	if err != nil {
		return fmt.Errorf("configuring winner policy: %w", err)
	}

	repos, err := store.Open(ctx, cfg.Database, clk)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer repos.Closer.Close()

	logger.InfoContext(ctx, "connected to store", slog.String("driver", cfg.Database.Driver))

	healthHandler := health.NewHandler(clk,
		health.Checker{
			Name:  "store",
			Check: repos.Ping,
		},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler.LivenessHandler())
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler())

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// runGiveaways is the work only the leader may do: it owns the Discord
	// connection and every countdown.
	runGiveaways := func(ctx context.Context) error {
		discordBot, err := bot.New(cfg.Discord, logger)
		if err != nil {
			return fmt.Errorf("creating bot: %w", err)
		}

		mgr, err := giveaway.NewManager(repos.Giveaways, repos.Events, discordBot.Gateway(), policy,
			giveaway.Options{
				TickInterval: cfg.Giveaway.TickInterval,
				Marker:       cfg.Giveaway.Marker,
				BannerURL:    cfg.Giveaway.BannerURL,
			},
			logger, tp.TracerProvider, tp.MeterProvider, clk)
		if err != nil {
			return fmt.Errorf("creating giveaway manager: %w", err)
		}
		healthHandler.CountSessions(func() int { return len(mgr.Sessions()) })

		handlers := commands.NewHandlers(mgr, cfg.Discord.CommandPrefix, logger, tp.TracerProvider)
		if err := discordBot.Start(ctx, handlers); err != nil {
			return fmt.Errorf("starting bot: %w", err)
		}

		// Countdowns interrupted by a restart or a failover pick up from
		// their last persisted remaining time.
		if n, err := mgr.Recover(ctx); err != nil {
			logger.ErrorContext(ctx, "giveaway recovery failed", slog.Any("error", err))
		} else if n > 0 {
			logger.InfoContext(ctx, "resumed giveaways", slog.Int("count", n))
		}

		healthHandler.SetReady(true)
		logger.InfoContext(ctx, "giveawaybot is running", slog.String("version", version))

		<-ctx.Done()
		logger.Info("shutting down giveaways...")
		healthHandler.SetReady(false)

		stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer stopCancel()
		if err := mgr.Shutdown(stopCtx); err != nil {
			logger.Error("giveaway shutdown error", slog.Any("error", err))
		}
		if err := discordBot.Stop(); err != nil {
			logger.Error("bot shutdown error", slog.Any("error", err))
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.InfoContext(gctx, "starting health server", slog.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		defer cancel()
		if !cfg.LeaderElection.Enabled {
			return runGiveaways(gctx)
		}

		logger.InfoContext(gctx, "leader election enabled, waiting for leadership...")
		return leader.Run(gctx, cfg.LeaderElection, logger,
			func(leaderCtx context.Context) {
				if err := runGiveaways(leaderCtx); err != nil {
					logger.ErrorContext(leaderCtx, "giveaway runtime failed", slog.Any("error", err))
				}
			},
			func() {
				logger.Info("lost leadership, shutting down...")
				cancel()
			},
		)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}
