package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/grocery-feed/app/api"
	"github.com/lysyi3m/grocery-feed/app/cart"
	"github.com/lysyi3m/grocery-feed/app/catalog"
	"github.com/lysyi3m/grocery-feed/app/cfg"
	"github.com/lysyi3m/grocery-feed/app/database"
	"github.com/lysyi3m/grocery-feed/app/feed"
	"github.com/lysyi3m/grocery-feed/app/source"
)

func main() {
	appConfig, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appConfig == nil {
		// Help was shown
		return
	}

	setupLogger(appConfig.Debug)

	slog.Info("Starting Grocery Feed server", "version", appConfig.Version)

	catalogConfig, err := catalog.Load(appConfig.CatalogFile)
	if err != nil {
		slog.Error("Failed to load catalog configuration", "file", appConfig.CatalogFile, "error", err)
		os.Exit(1)
	}
	slog.Info("Catalog configuration loaded",
		"source", catalogConfig.Source.URL,
		"page_size", catalogConfig.Settings.PageSize,
		"categories", len(catalogConfig.Categories))

	db, err := database.NewConnection(appConfig.DBDSN)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations applied", "version", version, "dirty", dirty)

	sourceClient := source.NewClient(&http.Client{}, catalogConfig.Source.URL,
		appConfig.UserAgent, catalogConfig.GetTimeout())

	engine := feed.NewEngine(sourceClient, catalogConfig)
	if _, err := engine.Start(); err != nil {
		slog.Error("Failed to start feed engine", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(engine, cart.New(), database.NewOrderStore(db),
		sourceClient, catalogConfig, appConfig.Version)
	server := api.NewServer(handler, appConfig.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appConfig.Port)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig)
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Cancels any page fetch still in flight.
	engine.Close()

	slog.Info("Grocery Feed server shutdown complete")
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
