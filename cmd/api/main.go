package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/voucherworks/voucher-service/internal/config"
	"github.com/voucherworks/voucher-service/internal/handler"
	"github.com/voucherworks/voucher-service/internal/middleware"
	"github.com/voucherworks/voucher-service/internal/repository"
	"github.com/voucherworks/voucher-service/internal/service"
	"github.com/voucherworks/voucher-service/internal/sweeper"
	appvalidator "github.com/voucherworks/voucher-service/internal/validator"
	"github.com/voucherworks/voucher-service/pkg/database"
)

func main() {
	// Load .env if present, then configuration
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	initLogger(cfg)

	// Create context for startup
	ctx := context.Background()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Voucher Redemption Service",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	// Initialize validator
	validate := appvalidator.New()

	// Initialize components (layered architecture)
	voucherRepo := repository.NewVoucherRepository(pool)
	redemptionRepo := repository.NewRedemptionRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)

	redeemService := service.NewRedeemService(pool, voucherRepo, redemptionRepo)
	voucherService := service.NewVoucherService(pool, voucherRepo, redemptionRepo)

	voucherHandler := handler.NewVoucherHandler(voucherService, validate)
	redeemHandler := handler.NewRedeemHandler(redeemService, validate)
	healthHandler := handler.NewHealthHandler(pool)

	app.Get("/health", healthHandler.Check)

	// All voucher routes require an API token
	api := app.Group("/api", middleware.NewTokenAuth(tokenRepo))
	api.Post("/vouchers", voucherHandler.CreateVoucher)
	api.Get("/vouchers", voucherHandler.ListVouchers)
	api.Post("/vouchers/validate", redeemHandler.ValidateVoucher)
	api.Get("/vouchers/:code", voucherHandler.GetVoucher)
	api.Put("/vouchers/:code", voucherHandler.UpdateVoucher)
	api.Delete("/vouchers/:code", voucherHandler.DeleteVoucher)
	api.Post("/vouchers/:code/redeem", redeemHandler.RedeemVoucher)
	api.Get("/redemptions", voucherHandler.ListRedemptions)

	// Start the expiry sweeper
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	if cfg.Sweep.Enabled {
		go sweeper.New(voucherRepo, cfg.Sweep.Interval()).Run(sweepCtx)
	}

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	// Stop the sweeper before draining requests
	stopSweeper()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Close database pool AFTER server shutdown (even if shutdown timed out)
	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("database connections closed")
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
