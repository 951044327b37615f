package server

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"cashflip/internal/cache"
	"cashflip/internal/database"
	"cashflip/internal/game"
	"cashflip/internal/ledger"
	"cashflip/internal/store"
)

type FiberServer struct {
	*fiber.App

	db     database.Service
	cache  cache.Service
	engine *game.Engine
	hub    *game.Hub
	wallet *ledger.PgLedger
}

func New() *FiberServer {
	// Initialize database
	db := database.New()

	// Initialize Redis cache
	redisService := cache.New()

	hub := game.NewHub()

	wallet := ledger.New(db.Pool())
	engine := game.NewEngine(
		wallet,
		store.NewSessionStore(db.Pool()),
		store.NewConfigStore(db.Pool()),
		store.NewOverrideStore(db.Pool()),
	).WithHub(hub)

	// The Redis mirror is optional; the engine serves reads from memory
	// either way.
	if redisService != nil {
		engine.WithCache(redisService.GetClient())
	} else {
		log.Println("[SERVER] Running without the Redis session mirror")
	}

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "cashflip",
			AppName:       "cashflip",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:     db,
		cache:  redisService,
		engine: engine,
		hub:    hub,
		wallet: wallet,
	}

	// Apply global middleware
	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	go hub.Run()

	log.Println("[SERVER] Payout engine started")

	return server
}

// Shutdown gracefully shuts down the server and its connections.
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return nil
}
