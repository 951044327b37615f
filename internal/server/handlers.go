package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"cashflip/internal/game"
)

// Health handler
func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"engine": fiber.Map{
			"status":            "running",
			"connected_clients": s.hub.GetClientCount(),
		},
	}
	if s.db != nil {
		health["database"] = s.db.Health()
	}
	if s.cache != nil {
		health["cache"] = s.cache.Health()
	}
	return c.JSON(health)
}

// statusForError maps the engine's rejection kinds onto HTTP statuses.
func statusForError(err error) int {
	var gameErr *game.Error
	if !errors.As(err, &gameErr) {
		return fiber.StatusInternalServerError
	}

	if gameErr.Code == game.ErrInsufficientFunds.Code {
		return fiber.StatusPaymentRequired
	}
	if gameErr.Code == game.ErrSessionNotFound.Code {
		return fiber.StatusNotFound
	}

	switch gameErr.Kind {
	case game.KindValidation:
		return fiber.StatusBadRequest
	case game.KindConcurrency, game.KindState:
		return fiber.StatusConflict
	case game.KindLedger:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func errorJSON(c *fiber.Ctx, err error) error {
	var gameErr *game.Error
	if errors.As(err, &gameErr) {
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": gameErr.Code,
			"kind":  gameErr.Kind,
		})
	}
	log.Printf("[API] Unexpected error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "InternalError",
	})
}

// Session handlers

type startSessionRequest struct {
	PlayerID   string `json:"player_id"`
	Stake      string `json:"stake"`
	Currency   string `json:"currency"`
	ClientSeed string `json:"client_seed"`
}

func (s *FiberServer) startSessionHandler(c *fiber.Ctx) error {
	var req startSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.PlayerID == "" || req.Currency == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "player_id and currency are required",
		})
	}
	stake, err := decimal.NewFromString(req.Stake)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "stake must be a decimal string",
		})
	}

	res, err := s.engine.StartSession(c.Context(), req.PlayerID, stake, req.Currency, req.ClientSeed)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (s *FiberServer) flipHandler(c *fiber.Ctx) error {
	res, err := s.engine.Flip(c.Context(), c.Params("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(res)
}

func (s *FiberServer) cashoutHandler(c *fiber.Ctx) error {
	res, err := s.engine.Cashout(c.Context(), c.Params("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(res)
}

func (s *FiberServer) pauseHandler(c *fiber.Ctx) error {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	quote, err := s.engine.Pause(c.Context(), c.Params("id"), req.Confirm)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(quote)
}

func (s *FiberServer) resumeHandler(c *fiber.Ctx) error {
	if err := s.engine.Resume(c.Context(), c.Params("id")); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"status": "active"})
}

func (s *FiberServer) getSessionHandler(c *fiber.Ctx) error {
	view, err := s.engine.Session(c.Context(), c.Params("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(view)
}

func (s *FiberServer) verifySessionHandler(c *fiber.Ctx) error {
	res, err := s.engine.Verify(c.Context(), c.Params("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(res)
}

// Wallet handlers

func (s *FiberServer) getWalletBalanceHandler(c *fiber.Ctx) error {
	playerID := c.Params("playerId")
	currency := c.Query("currency", "USD")

	balance, err := s.wallet.Balance(c.Context(), playerID, currency)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read balance",
		})
	}
	return c.JSON(fiber.Map{
		"player_id": playerID,
		"currency":  currency,
		"balance":   balance,
	})
}

func (s *FiberServer) creditWalletHandler(c *fiber.Ctx) error {
	playerID := c.Params("playerId")

	var body struct {
		Currency string `json:"currency"`
		Amount   string `json:"amount"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || !amount.IsPositive() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "amount must be a positive decimal string",
		})
	}
	if body.Currency == "" {
		body.Currency = "USD"
	}

	if err := s.wallet.Credit(c.Context(), playerID, body.Currency, amount); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to credit wallet",
		})
	}
	return c.JSON(fiber.Map{
		"player_id": playerID,
		"currency":  body.Currency,
		"credited":  amount,
	})
}

// WebSocket handler

func (s *FiberServer) sessionWebSocketHandler(conn *websocket.Conn) {
	playerID := conn.Query("player_id", "anonymous")

	log.Printf("[WS] New connection from player: %s", playerID)

	client := s.hub.RegisterClient(conn, playerID)

	if sessionID := conn.Query("session_id"); sessionID != "" {
		s.sendSessionState(client, conn, sessionID)
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] Read error for player %s: %v", playerID, err)
			s.hub.UnregisterClient(conn)
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}

		var clientMsg map[string]interface{}
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			continue
		}
		msgType, ok := clientMsg["type"].(string)
		if !ok {
			continue
		}

		switch msgType {
		case "session":
			sessionID := fmt.Sprintf("%v", clientMsg["session_id"])
			s.sendSessionState(client, conn, sessionID)

		case "ping":
			pongJSON, _ := json.Marshal(map[string]string{"type": "pong"})
			conn.WriteMessage(websocket.TextMessage, pongJSON)
		}
	}
}

func (s *FiberServer) sendSessionState(client *game.Client, conn *websocket.Conn, sessionID string) {
	view, err := s.engine.Session(context.Background(), sessionID)
	if err != nil {
		errJSON, _ := json.Marshal(map[string]string{
			"type":  "error",
			"error": err.Error(),
		})
		conn.WriteMessage(websocket.TextMessage, errJSON)
		return
	}
	client.SendSessionState(view)
}
