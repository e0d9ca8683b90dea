package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Live aggregation endpoints
	s.echo.GET("/live/twitch", s.handleLiveTwitch)
	s.echo.GET("/live/kick", s.handleLiveKick)
	s.echo.GET("/live/players", s.handleLivePlayers)

	// WebSocket push channel for dashboards
	s.echo.GET("/ws/live", s.handleLiveSocket)
}
