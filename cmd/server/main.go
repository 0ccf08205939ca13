package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/fragmentforge/internal/config"
	"github.com/playperu/fragmentforge/internal/database"
	"github.com/playperu/fragmentforge/internal/game"
	"github.com/playperu/fragmentforge/internal/handler/health"
	"github.com/playperu/fragmentforge/internal/login"
	"github.com/playperu/fragmentforge/internal/migrations"
	"github.com/playperu/fragmentforge/internal/questions"
	"github.com/playperu/fragmentforge/internal/remote"
	"github.com/playperu/fragmentforge/internal/server"
	"github.com/playperu/fragmentforge/internal/snapshot"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	dbPath := filepath.Join(cfg.DBDir, "forge.db")
	db, err := database.Open(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", dbPath)
	snapshots := snapshot.NewStore(db)
	tokens := login.NewStore(db)

	// --- Redis ---
	rdb, err := openRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer rdb.Close()
	logger.Info("connected to redis")

	clock := clockwork.NewRealClock()
	teams := remote.NewRedisStore(rdb, cfg.RemoteUTCOffsetMinutes, clock)
	queue := remote.NewQueue(logger, cfg.SyncQueueSize)

	if cfg.SeedDemo {
		if err := server.SeedDemo(ctx, logger, teams, cfg.DemoPassword); err != nil {
			return fmt.Errorf("seeding demo team: %w", err)
		}
	}

	// --- Questions ---
	bank, err := questions.Load(cfg.QuestionsPath)
	if err != nil {
		logger.Warn("question bank unavailable, every door gets a placeholder",
			"path", cfg.QuestionsPath, "error", err)
	}
	doors := questions.Doors(bank)

	// --- Sessions ---
	broker := server.NewBroker()
	sessions := server.NewRegistry(game.Options{
		TimeLimit:  cfg.RoundTimeLimit(),
		Doors:      doors,
		Snapshots:  snapshots,
		Remote:     teams,
		Dispatcher: queue,
		Clock:      clock,
		Logger:     logger,
	}, broker)
	defer sessions.Close()

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Sessions: sessions,
		Broker:   broker,
		Profiles: teams,
		Tokens:   tokens,
		Rounds:   teams,
		Admin: server.AdminCredentials{
			User:         cfg.AdminUser,
			PasswordHash: cfg.AdminPasswordHash,
		},
		Health: health.NewHandler(logger, map[string]health.Checker{
			"sqlite": health.CheckFunc(snapshots.Ping),
			"redis":  health.CheckFunc(teams.Ping),
		}).Routes(),
		CORSOrigins: cfg.CORSOrigins,
		SPADir:      cfg.SPADir,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr,
			"round_minutes", cfg.RoundMinutes)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		return queue.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
