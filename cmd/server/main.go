package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iammorganparry/timeline/internal/api"
	"github.com/iammorganparry/timeline/internal/archive"
	"github.com/iammorganparry/timeline/internal/config"
	"github.com/iammorganparry/timeline/internal/export"
	"github.com/iammorganparry/timeline/internal/games"
	"github.com/iammorganparry/timeline/internal/narrator"
)

func main() {
	// Config
	cfg, err := config.Load(".", "/etc/timeline")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Logger
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)
	if cfg.ConfigFile != "" {
		logger.Info("loaded config file", "path", cfg.ConfigFile)
	}

	// SQLite
	db, err := archive.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	chronicles := archive.NewStore(db)

	// Narrator
	prompts, err := narrator.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		logger.Error("failed to load prompts", "error", err)
		os.Exit(1)
	}
	client, err := narrator.NewClient(cfg.OllamaBaseURL, cfg.NarratorModel, cfg.NarratorTemperature, prompts, logger)
	if err != nil {
		logger.Error("failed to create narrator", "error", err)
		os.Exit(1)
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		logger.Warn("ollama not available at startup, requests will fail until it is", "error", err)
	}

	// Games
	registry := games.NewRegistry(client, cfg.NarratorTimeout, logger)

	// Router
	router := api.NewRouter(registry, chronicles, client,
		export.NewPDFExporter(export.DefaultLayout()), export.NewXLSXExporter(),
		api.Options{APIKey: cfg.APIKey, CORSOrigins: cfg.CORSOrigins}, logger)

	// Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// Narrator calls can take most of NARRATOR_TIMEOUT.
		WriteTimeout: cfg.NarratorTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("timeline server starting", "addr", addr, "model", cfg.NarratorModel)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Drop abandoned games
	pruneTicker := time.NewTicker(max(cfg.GameIdleTTL/4, time.Second))
	defer pruneTicker.Stop()
	go func() {
		for range pruneTicker.C {
			registry.Prune(cfg.GameIdleTTL)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
