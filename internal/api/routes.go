package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicebot-connector/internal/metrics"
	"github.com/satriahrh/voicebot-connector/internal/websocket"
)

// InitRoutes initializes all HTTP routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, appDir string, logger *zap.Logger) {
	// Health check, probed by the hosting platform
	e.GET("/_/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// Telephony media stream
	e.GET("/socket", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, logger)
	})

	e.Static("/app", appDir)
}
