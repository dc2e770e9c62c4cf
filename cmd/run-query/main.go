package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mshogin/lineage/internal/application/services"
	domainservices "github.com/mshogin/lineage/internal/domain/services"
	"github.com/mshogin/lineage/internal/domain/services/tools"
	"github.com/mshogin/lineage/internal/infrastructure/catalog"
	"github.com/mshogin/lineage/internal/infrastructure/config"
	"github.com/mshogin/lineage/internal/infrastructure/embeddings"
	"github.com/mshogin/lineage/internal/infrastructure/logging"
	"github.com/mshogin/lineage/internal/infrastructure/providers"
	"github.com/mshogin/lineage/internal/infrastructure/storage"
)

// run-query executes a single agent investigation from the command
// line and prints the result, without starting the HTTP server.
func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	maxSteps := flag.Int("max-steps", 0, "Phase transition budget (overrides config)")
	maxTools := flag.Int("max-tools", 0, "Tool result budget (overrides config)")
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}
	query := strings.Join(flag.Args(), " ")

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Keep the CLI quiet unless something goes wrong.
	logging.SetDefaultLogger(logging.NewStructuredLogger(os.Stderr, logging.ErrorLevel))

	ctx := context.Background()

	db, err := storage.NewDB(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	keyword, err := storage.NewKeywordIndex("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening keyword index: %v\n", err)
		os.Exit(1)
	}
	defer keyword.Close()

	var embedder domainservices.Embedder
	switch cfg.Embeddings.Provider {
	case "openai":
		embedder = embeddings.NewOpenAIEmbedder(cfg.Embeddings.APIKey, cfg.Embeddings.Model, cfg.Embeddings.BaseURL, cfg.Embeddings.Dimension)
	default:
		embedder = embeddings.NewLocalEmbedder(cfg.Embeddings.Dimension)
	}

	loader := catalog.NewLoader(db, keyword, embedder, nil)
	if cfg.Catalog.Seed {
		if err := loader.LoadSample(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error seeding catalog: %v\n", err)
			os.Exit(1)
		}
	}
	if cfg.Catalog.Dir != "" {
		if err := loader.LoadDir(ctx, cfg.Catalog.Dir); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading catalog: %v\n", err)
			os.Exit(1)
		}
	}

	decisionMaker, err := providers.New(cfg.LLM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing provider: %v\n", err)
		os.Exit(1)
	}

	registry := tools.NewRegistry(tools.Deps{
		Vector:   db,
		Keyword:  keyword,
		Graph:    db,
		Embedder: embedder,
	})
	dispatcher := services.NewToolDispatcher(registry, cfg.Agent.ToolTimeout)
	orchestrator := services.NewOrchestrator(decisionMaker, dispatcher, services.OrchestratorOptions{
		DecisionTimeout: cfg.Agent.DecisionTimeout,
		ToolTimeout:     cfg.Agent.ToolTimeout,
		MaxTokens:       cfg.LLM.MaxTokens,
		MaxTransitions:  cfg.Agent.MaxTransitions,
	})

	steps := cfg.Agent.MaxSteps
	if *maxSteps > 0 {
		steps = *maxSteps
	}
	toolBudget := cfg.Agent.MaxTools
	if *maxTools > 0 {
		toolBudget = *maxTools
	}

	fmt.Printf("Query: %s\n", query)
	fmt.Printf("Provider: %s (%s)\n\n", decisionMaker.Name(), cfg.LLM.Model)

	start := time.Now()
	result, err := orchestrator.Run(ctx, query, steps, toolBudget)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Answer ===")
	fmt.Println(result.FinalAnswer)
	fmt.Println()
	fmt.Printf("Confidence: %.2f\n", result.Confidence)
	fmt.Printf("Steps: %d, Tools: %s\n", result.StepCount, strings.Join(result.ToolsInvoked, ", "))
	if len(result.Errors) > 0 {
		fmt.Printf("Recovered errors: %s\n", strings.Join(result.Errors, "; "))
	}
	fmt.Printf("Elapsed: %v\n", time.Since(start).Round(time.Millisecond))
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: run-query [flags] <question>\n\n")
	fmt.Fprintf(os.Stderr, "Example:\n")
	fmt.Fprintf(os.Stderr, "  run-query \"What feeds into the revenue dashboard?\"\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
}
