package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/brokerkit/fundmatch/internal/appparser"
	"github.com/brokerkit/fundmatch/internal/bankanalysis"
	"github.com/brokerkit/fundmatch/internal/config"
	"github.com/brokerkit/fundmatch/internal/extraction"
	httpiface "github.com/brokerkit/fundmatch/internal/interfaces/http"
	"github.com/brokerkit/fundmatch/internal/matching"
	"github.com/brokerkit/fundmatch/internal/notification"
	"github.com/brokerkit/fundmatch/internal/pipeline"
	"github.com/brokerkit/fundmatch/internal/reconcile"
	"github.com/brokerkit/fundmatch/internal/remote"
	"github.com/brokerkit/fundmatch/internal/repository"
	"github.com/brokerkit/fundmatch/pkg/database"
	"github.com/brokerkit/fundmatch/pkg/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting FundMatch deal placement service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		logger.Fatal("Failed to create database directory", zap.Error(err))
	}
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	appRepo := repository.NewApplicationRepository(db.DB, logger)
	lenderRepo := repository.NewLenderRepository(db, logger)

	// Initialize extraction. OCR is the fallback for scanned documents and
	// stays disabled without an API key.
	var ocr extraction.OCRClient
	if cfg.OCR.APIKey != "" {
		ocr = extraction.NewVisionOCR(cfg.OCR.APIKey, cfg.OCR.Model, cfg.OCR.Timeout, logger)
	} else {
		logger.Warn("OCR API key not set, scanned documents will fail extraction")
	}
	adapter := extraction.NewAdapter(ocr, logger)

	// Initialize pipeline components
	parser := appparser.NewParser(logger)
	analyzer := bankanalysis.NewAnalyzer(cfg.Analysis.SyntheticFallback, logger)
	reconciler := reconcile.NewReconciler(logger)
	remoteClient := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Timeout, cfg.Remote.MaxRetries, logger)
	processor := pipeline.NewProcessor(adapter, parser, analyzer, reconciler, remoteClient, cfg.Analysis.MaxConcurrentDocs, logger)

	// Initialize matching and submission drafting
	engine := matching.NewEngine(logger)
	drafter := notification.NewDrafter("FundMatch", logger)

	// Initialize HTTP server
	handlers := httpiface.NewHandlers(adapter, parser, processor, engine, drafter, lenderRepo, appRepo, logger)
	server := httpiface.NewServer(httpiface.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
