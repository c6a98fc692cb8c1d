package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jfjoao12/website-autobuilder/internal/api"
	"github.com/jfjoao12/website-autobuilder/internal/config"
	"github.com/jfjoao12/website-autobuilder/internal/gateway"
	"github.com/jfjoao12/website-autobuilder/internal/repository"
	"github.com/jfjoao12/website-autobuilder/internal/service"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize run archive database
	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	runRepo := repository.NewRunRepository(db)

	// Initialize model gateway
	gw, err := buildGateway(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize model gateway", zap.Error(err))
	}
	logger.Info("Model gateway ready",
		zap.String("provider", cfg.Model.Provider),
		zap.String("base_url", cfg.Model.BaseURL),
		zap.String("default_model", cfg.Model.Default),
	)

	// Initialize services
	genService := service.NewGenerationService(cfg, logger, gw, runRepo)
	exportService := service.NewExportService(cfg.Server.BaseURL)

	// Setup router
	router := api.SetupRouter(genService, exportService, runRepo, api.RouterConfig{
		APIKey:       cfg.Admin.APIKey,
		AllowOrigins: []string{"*"},
		StreamBuffer: cfg.Generation.StreamBuffer,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    cfg.Address(),
		Handler: router,
		// Long read/write windows: SSE event streams stay open for the
		// whole generation run.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting autobuilder server",
			zap.String("address", cfg.Address()),
			zap.String("base_url", cfg.Server.BaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// buildGateway picks the model gateway from configuration.
func buildGateway(cfg *config.Config) (gateway.Client, error) {
	switch cfg.Model.Provider {
	case "", "ollama":
		return gateway.NewOllamaClient(cfg.Model.BaseURL, cfg.Model.Timeout()), nil
	case "openai":
		return gateway.NewOpenAIClient(cfg.Model.BaseURL, cfg.Model.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
	}
}
