// Package server wires the HTTP API: live aggregation endpoints,
// player counts, the websocket push channel and observability routes.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/chriskrajewski/rptracker/internal/config"
	apperrors "github.com/chriskrajewski/rptracker/internal/errors"
	"github.com/chriskrajewski/rptracker/internal/live"
	"github.com/chriskrajewski/rptracker/internal/poller"
)

// rateLimit bounds requests per client IP. The aggregation endpoints
// fan out to upstream platform APIs, so unauthenticated abuse is
// throttled at the edge of this service too.
const rateLimit = rate.Limit(10)

// Aggregator is the per-platform live aggregation entrypoint.
type Aggregator interface {
	Aggregate(ctx context.Context, serverIDs []string) (*live.Response, error)
}

// PlayersAggregator batches player-count lookups.
type PlayersAggregator interface {
	Aggregate(ctx context.Context, serverIDs []string) *live.PlayersResponse
}

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	twitch      Aggregator
	kick        Aggregator
	players     PlayersAggregator
	pollFactory func(serverIDs []string) *poller.Poller
	db          *pgxpool.Pool
	redisClient *goredis.Client
	clock       clockwork.Clock
	startTime   time.Time
}

func NewServer(
	cfg *config.Config,
	twitchAgg Aggregator,
	kickAgg Aggregator,
	playersAgg PlayersAggregator,
	pollFactory func(serverIDs []string) *poller.Poller,
	db *pgxpool.Pool,
	redisClient *goredis.Client,
	clock clockwork.Clock,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("Request handled",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
			return nil
		},
	}))
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rateLimit)))

	e.HTTPErrorHandler = errorHandler

	srv := &Server{
		echo:        e,
		config:      cfg,
		twitch:      twitchAgg,
		kick:        kickAgg,
		players:     playersAgg,
		pollFactory: pollFactory,
		db:          db,
		redisClient: redisClient,
		clock:       clock,
		startTime:   clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// errorHandler maps structured *errors.Error values to JSON responses;
// everything else falls back to echo's defaults.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	if appErr, ok := apperrors.AsError(err); ok {
		status := appErr.HTTPStatus()
		if status >= http.StatusInternalServerError {
			slog.Error("Request failed", "error", err, "path", c.Path())
		}
		_ = c.JSON(status, map[string]any{"error": appErr.Message})
		return
	}

	if httpErr, ok := err.(*echo.HTTPError); ok {
		_ = c.JSON(httpErr.Code, map[string]any{"error": fmt.Sprintf("%v", httpErr.Message)})
		return
	}

	slog.Error("Unhandled request error", "error", err, "path", c.Path())
	_ = c.JSON(http.StatusInternalServerError, map[string]any{"error": "internal server error"})
}
