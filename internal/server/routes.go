package server

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func (s *FiberServer) RegisterFiberRoutes() {
	// Apply CORS middleware
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")

	session := api.Group("/session")
	session.Post("/", s.startSessionHandler)
	session.Get("/:id", s.getSessionHandler)
	session.Post("/:id/flip", s.flipHandler)
	session.Post("/:id/cashout", s.cashoutHandler)
	session.Post("/:id/pause", s.pauseHandler)
	session.Post("/:id/resume", s.resumeHandler)
	session.Get("/:id/verify", s.verifySessionHandler)

	wallet := api.Group("/wallet")
	wallet.Get("/:playerId/balance", s.getWalletBalanceHandler)
	wallet.Post("/:playerId/credit", s.creditWalletHandler)

	// WebSocket route
	s.App.Get("/ws", websocket.New(s.sessionWebSocketHandler))
}
