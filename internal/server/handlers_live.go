package server

import (
	"strings"

	"github.com/labstack/echo/v4"

	apperrors "github.com/chriskrajewski/rptracker/internal/errors"
	"github.com/chriskrajewski/rptracker/internal/live"
)

func (s *Server) handleLiveTwitch(c echo.Context) error {
	serverIDs, err := parseServerIDs(c.QueryParam("serverIds"), s.config.MaxServersPerRequest)
	if err != nil {
		return err
	}

	resp, err := s.twitch.Aggregate(c.Request().Context(), serverIDs)
	if err != nil {
		return err
	}

	c.Response().Header().Set("Cache-Control", live.CacheControl)
	return c.JSON(200, resp)
}

func (s *Server) handleLiveKick(c echo.Context) error {
	serverIDs, err := parseServerIDs(c.QueryParam("serverIds"), s.config.MaxServersPerRequest)
	if err != nil {
		return err
	}

	resp, err := s.kick.Aggregate(c.Request().Context(), serverIDs)
	if err != nil {
		return err
	}

	c.Response().Header().Set("Cache-Control", live.CacheControl)
	return c.JSON(200, resp)
}

func (s *Server) handleLivePlayers(c echo.Context) error {
	serverIDs, err := parseServerIDs(c.QueryParam("serverIds"), s.config.MaxServersPerRequest)
	if err != nil {
		return err
	}

	resp := s.players.Aggregate(c.Request().Context(), serverIDs)

	c.Response().Header().Set("Cache-Control", live.CacheControl)
	return c.JSON(200, resp)
}

// parseServerIDs validates the serverIds CSV parameter: entries are
// trimmed and deduplicated preserving order; an empty result or a batch
// over the limit is rejected outright.
func parseServerIDs(raw string, limit int) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperrors.ValidationError("serverIds query parameter is required")
	}

	seen := make(map[string]struct{})
	var serverIDs []string
	for _, id := range strings.Split(raw, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		serverIDs = append(serverIDs, id)
	}

	if len(serverIDs) == 0 {
		return nil, apperrors.ValidationError("serverIds contained no usable server IDs")
	}
	if len(serverIDs) > limit {
		return nil, apperrors.ValidationError("too many server IDs requested").
			WithField("limit", limit).
			WithField("requested", len(serverIDs))
	}

	return serverIDs, nil
}
