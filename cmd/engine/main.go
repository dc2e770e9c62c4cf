package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mshogin/lineage/internal/application/services"
	"github.com/mshogin/lineage/internal/domain/models"
	domainservices "github.com/mshogin/lineage/internal/domain/services"
	"github.com/mshogin/lineage/internal/domain/services/tools"
	"github.com/mshogin/lineage/internal/infrastructure/catalog"
	"github.com/mshogin/lineage/internal/infrastructure/config"
	"github.com/mshogin/lineage/internal/infrastructure/embeddings"
	"github.com/mshogin/lineage/internal/infrastructure/logging"
	"github.com/mshogin/lineage/internal/infrastructure/metrics"
	"github.com/mshogin/lineage/internal/infrastructure/providers"
	"github.com/mshogin/lineage/internal/infrastructure/storage"
	"github.com/mshogin/lineage/internal/presentation/api"
)

func main() {
	// Parse CLI flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	host := flag.String("host", "", "Server host (overrides config)")
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	// Pick up API keys from .env when present
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		cfg = config.DefaultConfig()
	}

	// Apply CLI overrides
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Structured logging
	logger := logging.NewStructuredLogger(os.Stdout, logging.ParseLevel(cfg.Logging.Level))
	logging.SetDefaultLogger(logger)

	ctx := context.Background()

	// Backing stores
	db, err := storage.NewDB(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	keyword, err := storage.NewKeywordIndex(cfg.Storage.BleveDir)
	if err != nil {
		log.Fatalf("Failed to open keyword index: %v", err)
	}
	defer keyword.Close()

	// Embeddings
	var embedder domainservices.Embedder
	switch cfg.Embeddings.Provider {
	case "openai":
		embedder = embeddings.NewOpenAIEmbedder(cfg.Embeddings.APIKey, cfg.Embeddings.Model, cfg.Embeddings.BaseURL, cfg.Embeddings.Dimension)
	default:
		embedder = embeddings.NewLocalEmbedder(cfg.Embeddings.Dimension)
	}
	logger.Info("Embedder initialized", map[string]interface{}{
		"provider": cfg.Embeddings.Provider,
	})

	// Catalog ingest
	loader := catalog.NewLoader(db, keyword, embedder, logger)
	if cfg.Catalog.Seed {
		if err := loader.LoadSample(ctx); err != nil {
			log.Fatalf("Failed to seed catalog: %v", err)
		}
	}
	if cfg.Catalog.Dir != "" {
		if err := loader.LoadDir(ctx, cfg.Catalog.Dir); err != nil {
			log.Fatalf("Failed to load catalog directory: %v", err)
		}
		if cfg.Catalog.Watch {
			watcher, err := catalog.NewWatcher(cfg.Catalog.Dir, loader, logger)
			if err != nil {
				log.Fatalf("Failed to create catalog watcher: %v", err)
			}
			if err := watcher.Start(); err != nil {
				log.Fatalf("Failed to start catalog watcher: %v", err)
			}
			defer watcher.Stop()
		}
	}

	// Decision Maker provider
	decisionMaker, err := providers.New(cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize provider: %v", err)
	}
	logger.Info("Provider initialized", map[string]interface{}{
		"provider": decisionMaker.Name(),
		"model":    cfg.LLM.Model,
	})

	// Metrics
	collector := metrics.NewCollector()
	exporter := metrics.NewPrometheusExporter("lineage")
	exporter.RegisterCollector(collector)

	// Tool registry and agent loop
	registry := tools.NewRegistry(tools.Deps{
		Vector:   db,
		Keyword:  keyword,
		Graph:    db,
		Embedder: embedder,
	})
	dispatcher := services.NewToolDispatcher(registry, cfg.Agent.ToolTimeout).
		WithObserver(collector.RecordToolExecution)
	orchestrator := services.NewOrchestrator(decisionMaker, dispatcher, services.OrchestratorOptions{
		DecisionTimeout: cfg.Agent.DecisionTimeout,
		ToolTimeout:     cfg.Agent.ToolTimeout,
		MaxTokens:       cfg.LLM.MaxTokens,
		MaxTransitions:  cfg.Agent.MaxTransitions,
	}).
		WithPhaseObserver(func(phase models.Phase, duration time.Duration) {
			collector.RecordPhase(string(phase), duration)
		}).
		WithGenerationObserver(collector.RecordLLMCall)
	direct := services.NewDirectQueryService(embedder, db, db, decisionMaker)

	// HTTP surface
	handler := api.NewHandler(direct, orchestrator, decisionMaker, db, collector, exporter, cfg, logger)
	router := api.NewRouter(handler, cfg.Metrics.Enabled)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting server", map[string]interface{}{
			"addr": addr,
		})
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatalf("Server error: %v", err)

	case sig := <-shutdown:
		logger.Info("Shutting down", map[string]interface{}{
			"signal": sig.String(),
		})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", err)
			if err := server.Close(); err != nil {
				log.Fatalf("Failed to close server: %v", err)
			}
		}

		logger.Info("Server stopped")
	}
}
