package transport

import (
	"roulette/services/match/handler"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func NewRouter(matchHandler *handler.MatchHandler, socketHandler *handler.SocketHandler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{echo.GET, echo.POST, echo.PUT, echo.PATCH, echo.DELETE, echo.OPTIONS},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-User-ID"},
		ExposeHeaders:    []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.POST("/match/start", matchHandler.StartSearch)
	e.POST("/match/stop", matchHandler.StopSearch)
	e.POST("/match/next", matchHandler.NextSearch)
	e.GET("/match/status", matchHandler.QueueStatus)
	e.POST("/match/random", matchHandler.SwitchToRandom)
	e.GET("/match/health", matchHandler.QueueHealth)

	// Internal hooks for the chat service.
	e.POST("/internal/pairs/:id/message", matchHandler.RecordMessage)
	e.POST("/internal/pairs/:id/rating", matchHandler.RatePair)

	e.GET("/ws/match", socketHandler.HandleMatchSocket)

	return e
}
