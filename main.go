package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/queryline-io/queryline-engine/pkg/adapters/datasource"
	"github.com/queryline-io/queryline-engine/pkg/config"
	"github.com/queryline-io/queryline-engine/pkg/handlers"
	"github.com/queryline-io/queryline-engine/pkg/llm"
	"github.com/queryline-io/queryline-engine/pkg/logging"
	"github.com/queryline-io/queryline-engine/pkg/pipeline"
	"github.com/queryline-io/queryline-engine/pkg/schema"
	"github.com/queryline-io/queryline-engine/pkg/translator"

	// Engine adapters register themselves on import.
	_ "github.com/queryline-io/queryline-engine/pkg/adapters/datasource/mongo"
	_ "github.com/queryline-io/queryline-engine/pkg/adapters/datasource/mysql"
	_ "github.com/queryline-io/queryline-engine/pkg/adapters/datasource/postgres"
	_ "github.com/queryline-io/queryline-engine/pkg/adapters/datasource/sqlite"
	_ "github.com/queryline-io/queryline-engine/pkg/adapters/datasource/sqlserver"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load("config.yaml", Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("engine", cfg.Datasource.Engine),
		zap.String("database", cfg.Datasource.Database),
		zap.Bool("model_configured", cfg.Model.IsAvailable()))

	manager := datasource.NewConnectionManager(
		cfg.Datasource.MaxConcurrent, cfg.Datasource.QueueTimeout(), logger)
	defer manager.CloseAll()

	schemas := schema.NewProvider(manager, cfg.Pipeline.SchemaTTL(), logger)

	pattern, err := buildPatternStrategy(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to load pattern catalog", zap.Error(err))
	}

	var model translator.Strategy
	var modelClient llm.Client
	if cfg.Model.IsAvailable() {
		modelClient, err = llm.NewClient(&llm.Config{
			Provider: cfg.Model.Provider,
			Endpoint: cfg.Model.Endpoint,
			Model:    cfg.Model.Name,
			APIKey:   cfg.Model.APIKey,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to build model client", zap.Error(err))
		}
		model = translator.NewModelStrategy(modelClient, cfg.Model.Timeout(), logger)
		logger.Info("Model translation enabled",
			zap.String("provider", cfg.Model.Provider),
			zap.String("model", cfg.Model.Name))
	} else {
		logger.Info("No model configured, running pattern-only translation")
	}

	orch := pipeline.New(pipeline.Options{
		Schemas:      schemas,
		Pattern:      pattern,
		Model:        model,
		Manager:      manager,
		Profile:      cfg.Profile(),
		DefaultLimit: cfg.Pipeline.DefaultLimit,
		Logger:       logger,
	})

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(orch, logger).RegisterRoutes(mux)
	handlers.NewStatusHandler(cfg, manager, modelClient, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:    net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler: mux,
	}

	go func() {
		logger.Info("Starting queryline-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func buildPatternStrategy(cfg *config.Config, logger *zap.Logger) (*translator.PatternStrategy, error) {
	if path := cfg.Pipeline.PatternCatalogPath; path != "" {
		return translator.NewPatternStrategyFromFile(path, logger)
	}
	return translator.NewPatternStrategy(logger), nil
}
