package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pulsedesk/pulsedesk/internal/api"
	"github.com/pulsedesk/pulsedesk/internal/auth"
	"github.com/pulsedesk/pulsedesk/internal/config"
	"github.com/pulsedesk/pulsedesk/internal/core"
	"github.com/pulsedesk/pulsedesk/internal/feeds"
	"github.com/pulsedesk/pulsedesk/internal/ident"
	"github.com/pulsedesk/pulsedesk/internal/logging"
	"github.com/pulsedesk/pulsedesk/internal/store"
	"github.com/pulsedesk/pulsedesk/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logger.Sync()

	// Session store: relational backend when a DSN is configured, the JSON
	// file store otherwise.
	var sessionStore store.Store
	if cfg.DatabaseURL != "" {
		sqliteStore, err := store.NewSQLiteStore(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		sessionStore = sqliteStore
	} else {
		sessionStore = store.NewFileStore(cfg.StoragePath, logger)
	}
	defer sessionStore.Close()

	ids := ident.NewUUIDGenerator()

	gateway := webhook.NewClient(webhook.Config{
		ChatURL:     cfg.WebhookChatURL,
		ResearchURL: cfg.WebhookResearchURL,
		ReportURL:   cfg.WebhookReportURL,
		Timeout:     cfg.WebhookTimeout,
	}, ids, logger)

	controller := core.NewController(sessionStore, gateway, ids, logger)
	modes := core.NewModeSelector(sessionStore)
	tokens := auth.NewTokens(cfg.JWTSecret, 24*time.Hour)

	news := feeds.NewNewsClient(cfg.NewsFeedURL, cfg.WebhookTimeout, logger)
	stocks := feeds.NewStockClient(cfg.StockQuoteURL, cfg.WebhookTimeout, logger)

	apiHandler := api.NewAPIHandler(sessionStore, controller, modes, tokens, news, stocks, logger)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // webhook calls can take a while
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("Starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Could not listen", zap.String("addr", serverAddr), zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting gracefully")
}
