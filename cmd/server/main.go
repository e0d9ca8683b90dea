package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/chriskrajewski/rptracker/internal/config"
	"github.com/chriskrajewski/rptracker/internal/database"
	"github.com/chriskrajewski/rptracker/internal/domain"
	"github.com/chriskrajewski/rptracker/internal/fivem"
	"github.com/chriskrajewski/rptracker/internal/kick"
	"github.com/chriskrajewski/rptracker/internal/live"
	"github.com/chriskrajewski/rptracker/internal/logging"
	"github.com/chriskrajewski/rptracker/internal/poller"
	"github.com/chriskrajewski/rptracker/internal/redis"
	"github.com/chriskrajewski/rptracker/internal/server"
	"github.com/chriskrajewski/rptracker/internal/twitch"
	"github.com/chriskrajewski/rptracker/internal/version"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config) *goredis.Client {
	if cfg.RedisURL == "" {
		slog.Info("REDIS_URL not set, rule caching disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	info := version.Get()
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port,
		"version", info.Version, "commit", info.Commit,
		"twitch_enabled", cfg.TwitchEnabled(), "kick_enabled", cfg.KickEnabled())

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(cfg)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	ruleRepo := database.NewRuleRepo(pool)

	// The live routes consult the store per request; the poller-driven
	// websocket path tolerates the five-minute read-through cache.
	var cachedRules domain.RuleRepository = ruleRepo
	if redisClient != nil {
		cachedRules = redis.NewRuleCacheRepo(redisClient, ruleRepo)
	}

	twitchClient := twitch.NewClient(cfg.TwitchClientID, cfg.TwitchClientSecret)
	kickClient := kick.NewClient(cfg.KickClientID, cfg.KickClientSecret, clock)
	fivemClient := fivem.NewClient(clock)

	twitchAgg := live.NewTwitchAggregator(twitchClient, ruleRepo, cfg.TwitchGameName, clock)
	kickAgg := live.NewKickAggregator(kickClient, ruleRepo, clock)
	playersAgg := live.NewPlayersAggregator(fivemClient, clock)

	pollTwitchAgg := live.NewTwitchAggregator(twitchClient, cachedRules, cfg.TwitchGameName, clock)
	pollKickAgg := live.NewKickAggregator(kickClient, cachedRules, clock)

	fetchers := poller.Fetchers{
		Players: func(ctx context.Context, serverIDs []string) (map[string]domain.PlayerCount, error) {
			return playersAgg.Aggregate(ctx, serverIDs).Servers, nil
		},
	}
	if twitchClient.Configured() {
		fetchers.Twitch = func(ctx context.Context, serverIDs []string) (map[string]domain.ServerSummary, error) {
			resp, err := pollTwitchAgg.Aggregate(ctx, serverIDs)
			if err != nil {
				return nil, err
			}
			return resp.Servers, nil
		}
	}
	if kickClient.Configured() {
		fetchers.Kick = func(ctx context.Context, serverIDs []string) (map[string]domain.ServerSummary, error) {
			resp, err := pollKickAgg.Aggregate(ctx, serverIDs)
			if err != nil {
				return nil, err
			}
			return resp.Servers, nil
		}
	}

	pollFactory := func(serverIDs []string) *poller.Poller {
		p := poller.New(fetchers, cfg.PollInterval, clock)
		p.Start(serverIDs)
		return p
	}

	srv := server.NewServer(cfg, twitchAgg, kickAgg, playersAgg, pollFactory, pool, redisClient, clock)

	done := runGracefulShutdown(srv)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
