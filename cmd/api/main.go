package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"groupcoh/adapters/api"
	"groupcoh/adapters/wavelet"
	"groupcoh/internal"
	"groupcoh/internal/coherence"
	"groupcoh/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		internal.DefaultLogger.Debug("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		internal.DefaultLogger.Error("failed to load configuration: %v", err)
		os.Exit(1)
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level))
	logger.Info("engine: %d workers, cache in %s, percentile %g", cfg.Engine.Workers, cfg.Engine.CacheDir, cfg.Engine.Percentile)

	adapter := wavelet.NewAdapter()
	engine := coherence.NewEngine(adapter, adapter, cfg.Engine, logger)
	app := api.NewApp(engine, cfg.Server, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed: %v", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
