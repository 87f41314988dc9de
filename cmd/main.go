package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xshayank/vpnmarket-reseller/internal/bootstrap"
	"github.com/xshayank/vpnmarket-reseller/internal/config"
	cronpkg "github.com/xshayank/vpnmarket-reseller/internal/cron"
	"github.com/xshayank/vpnmarket-reseller/internal/lifecycle"
	"github.com/xshayank/vpnmarket-reseller/internal/notify"
	"github.com/xshayank/vpnmarket-reseller/internal/provision"
	"github.com/xshayank/vpnmarket-reseller/internal/ratelimit"
	"github.com/xshayank/vpnmarket-reseller/internal/reconcile"
	"github.com/xshayank/vpnmarket-reseller/internal/repository"
	"github.com/xshayank/vpnmarket-reseller/internal/router"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database schema", zap.Error(err))
	}

	if hasArg("--migrate-only") {
		logger.Info("Schema migration completed")
		return
	}

	// --- Reset-usage cooldown (Redis with in-memory fallback) ---
	limiter, limiterErr := ratelimit.NewLimiter(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		"reseller:reset",
		cfg.Reconcile.ResetCooldown,
	)
	if limiterErr != nil {
		logger.Warn("Redis unavailable for reset cooldown, using in-memory fallback", zap.Error(limiterErr))
	}

	// --- Notifier ---
	notifier, err := notify.New(cfg.Bot.Token, cfg.Bot.AdminChatID, logger)
	if err != nil {
		logger.Fatal("Failed to create notifier", zap.Error(err))
	}

	// --- Core services ---
	store := repository.NewGormStore(db)
	provisioner := provision.New(repository.NewPanelRepository(db), logger)
	controller := lifecycle.NewController(store, provisioner, logger)
	pacer := ratelimit.NewPacer(cfg.Reconcile.PaceBurst, cfg.Reconcile.PaceDelay)
	reconciler := reconcile.New(
		store,
		controller,
		provisioner,
		repository.NewAuditRepository(db),
		notifier,
		pacer,
		logger,
	)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true
	router.Setup(e, db, controller, reconciler, limiter, logger, cfg.API.Key)

	// --- Cron Scheduler ---
	scheduler := cronpkg.New(cfg, reconciler, logger)
	scheduler.Start()

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting reseller reconciliation server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop cron, letting a running sweep finish
	ctx := scheduler.Stop()
	<-ctx.Done()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func hasArg(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}
