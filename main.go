package main

import (
	"context"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/mrfansi/slacky/internal/bus"
	"github.com/mrfansi/slacky/internal/chat"
	"github.com/mrfansi/slacky/internal/database"
	"github.com/mrfansi/slacky/internal/handlers"
	"github.com/mrfansi/slacky/internal/presence"
	"github.com/mrfansi/slacky/internal/routes"
	"github.com/mrfansi/slacky/internal/store"
	ws "github.com/mrfansi/slacky/internal/websocket"
)

func main() {
	log := newLogger()
	ctx := context.Background()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found")
	}

	// Connect to database
	pool, err := database.Connect(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	st := store.NewPostgres(pool)

	// Broadcast bus: NATS when configured, in-process otherwise
	var b bus.Bus
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		nb, err := bus.ConnectNATS(natsURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer nb.Close()
		b = nb
	} else {
		log.Warn().Msg("NATS_URL not set, using in-process bus")
		b = bus.NewMemory()
	}

	tracker, err := presence.NewTracker(b, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start presence tracker")
	}
	defer tracker.Close()

	hub := ws.NewHub(b, tracker, log)
	go hub.Run()

	h := handlers.New(
		st,
		chat.NewDirectory(st, b, log),
		chat.NewPipeline(st, b, log),
		chat.NewThreads(st, b, log),
		chat.NewReactions(st, b, log),
		hub,
		tracker,
		log,
	)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName: "Slacky API v1.0",
	})

	// Middleware
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000",
		AllowCredentials: true,
	}))

	// Setup routes
	routes.SetupRoutes(app, h)

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Info().Str("port", port).Msg("server starting")
	if err := app.Listen(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}
