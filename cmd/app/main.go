package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/yoganurrahman/moolai-gym-api/docs"

	"github.com/yoganurrahman/moolai-gym-api/internal/config"
	"github.com/yoganurrahman/moolai-gym-api/internal/db"
	"github.com/yoganurrahman/moolai-gym-api/internal/logger"
	"github.com/yoganurrahman/moolai-gym-api/internal/notify"
	"github.com/yoganurrahman/moolai-gym-api/internal/server"
	"github.com/yoganurrahman/moolai-gym-api/internal/user"
)

// @title Moolai Gym API
// @version 1.0
// @description Entitlement and booking ledger for Moolai Gym branches.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger.Init()
	logger.Info("Starting Moolai Gym API")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Connecting to database...")
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	logger.Info("Database connected")

	if err := db.RunMigrations(database, "migrations"); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	notifyService := notify.New(
		cfg.EmailFrom,
		cfg.EmailFromName,
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.SMTPUser,
		cfg.SMTPPass,
		cfg.RedisAddr,
		user.NewRepository(database),
	)
	defer notifyService.Close()
	logger.Info("Notification service initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go notifyService.Start(ctx)

	srv := server.New(database, cfg, notifyService)

	go runBillingScheduler(ctx, srv, cfg.BillingSweepInterval)
	go runExpiryScheduler(ctx, srv)

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(cfg.Port); err != nil {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}

	logger.Info("Server stopped")
}

// runBillingScheduler sweeps due subscriptions on a fixed interval.
// Each sweep is idempotent per billing period, so a restart mid-cycle
// never double-charges.
func runBillingScheduler(ctx context.Context, srv *server.Server, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := srv.Billing.Sweep(ctx, time.Now()); err != nil {
				logger.Error("billing sweep failed", "error", err)
			}
		}
	}
}

// runExpiryScheduler retires lapsed grants and wakes up frozen ones.
func runExpiryScheduler(ctx context.Context, srv *server.Server) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := srv.Entitlement.RunExpirySweep(ctx); err != nil {
				logger.Error("entitlement expiry sweep failed", "error", err)
			}
		}
	}
}
