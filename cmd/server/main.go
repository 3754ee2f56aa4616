package main

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/moodlens/moodlens-backend/internal/api"
	"github.com/moodlens/moodlens-backend/internal/config"
	"github.com/moodlens/moodlens-backend/internal/database"
	"github.com/moodlens/moodlens-backend/internal/llm"
	"github.com/moodlens/moodlens-backend/internal/logging"
	"github.com/moodlens/moodlens-backend/internal/repository"
	"github.com/moodlens/moodlens-backend/internal/repository/sqlstore"
	"github.com/moodlens/moodlens-backend/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := logging.New(cfg.Log)

	// Open storage and run migrations
	store, closeStore, err := openStore(cfg.Storage, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open storage")
	}
	defer closeStore()

	// Text generation is optional; without a key recommendations use the fallback table
	generator, err := newGenerator(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to configure text generation")
	}

	svc := services.NewServices(cfg, store, generator, logger)
	defer svc.Close()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "MoodLens Backend",
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	api.SetupRoutes(app, svc, cfg.Recommendations, logger)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.WithError(err).Warn("Shutdown did not complete cleanly")
		}
	}()

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	logger.WithFields(logrus.Fields{
		"addr":    addr,
		"storage": cfg.Storage.Driver,
		"llm":     generator != nil,
	}).Info("MoodLens Backend starting")
	if err := app.Listen(addr); err != nil {
		logger.WithError(err).Fatal("Failed to start server")
	}
}

func openStore(cfg config.StorageConfig, logger *logrus.Logger) (repository.Store, func(), error) {
	if cfg.Driver == "" || cfg.Driver == database.DriverMemory {
		logger.Warn("Using in-memory storage, sessions are lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	}

	db, err := database.NewConnection(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	if err := database.RunMigrations(db, cfg); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return sqlstore.New(db.DB), func() { db.Close() }, nil
}

func newGenerator(cfg *config.Config, logger *logrus.Logger) (*llm.Guarded, error) {
	if !cfg.LLM.Configured() {
		logger.Info("No language model API key configured, serving fallback recommendations")
		return nil, nil
	}

	provider, err := llm.NewOpenAIProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}
	breaker := llm.NewCircuitBreaker(llm.WithBreakerLogger(logger))
	return llm.NewGuarded(provider, provider.Name(), breaker, llm.NewMetricsCollector(), logger), nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
