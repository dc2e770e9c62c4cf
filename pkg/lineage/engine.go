// Package lineage embeds the data-lineage agent engine in another
// program: one constructor wires the stores, the Decision Maker
// provider, the tool registry and the investigation loop.
package lineage

import (
	"context"
	"fmt"
	"time"

	"github.com/mshogin/lineage/internal/application/services"
	"github.com/mshogin/lineage/internal/domain/models"
	domainservices "github.com/mshogin/lineage/internal/domain/services"
	"github.com/mshogin/lineage/internal/domain/services/tools"
	"github.com/mshogin/lineage/internal/infrastructure/catalog"
	"github.com/mshogin/lineage/internal/infrastructure/config"
	"github.com/mshogin/lineage/internal/infrastructure/embeddings"
	"github.com/mshogin/lineage/internal/infrastructure/metrics"
	"github.com/mshogin/lineage/internal/infrastructure/providers"
	"github.com/mshogin/lineage/internal/infrastructure/storage"
)

// Engine is an embedded lineage engine instance. Safe for concurrent
// use; every Run gets its own agent state.
type Engine struct {
	cfg           *config.Config
	db            *storage.DB
	keyword       *storage.KeywordIndex
	embedder      domainservices.Embedder
	decisionMaker domainservices.DecisionMaker
	orchestrator  *services.Orchestrator
	direct        *services.DirectQueryService
	loader        *catalog.Loader
	collector     *metrics.Collector
}

// Option tweaks engine construction.
type Option func(*options)

type options struct {
	decisionMaker domainservices.DecisionMaker
	embedder      domainservices.Embedder
}

// WithDecisionMaker replaces the configured provider, for tests or
// custom integrations.
func WithDecisionMaker(dm domainservices.DecisionMaker) Option {
	return func(o *options) { o.decisionMaker = dm }
}

// WithEmbedder replaces the configured embedder.
func WithEmbedder(embedder domainservices.Embedder) Option {
	return func(o *options) { o.embedder = embedder }
}

// New builds an engine from configuration. Pass nil for defaults:
// in-memory stores, local embeddings, the built-in sample catalog and
// an Ollama decision maker.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db, err := storage.NewDB(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}

	keyword, err := storage.NewKeywordIndex(cfg.Storage.BleveDir)
	if err != nil {
		db.Close()
		return nil, err
	}

	embedder := o.embedder
	if embedder == nil {
		switch cfg.Embeddings.Provider {
		case "openai":
			embedder = embeddings.NewOpenAIEmbedder(cfg.Embeddings.APIKey, cfg.Embeddings.Model, cfg.Embeddings.BaseURL, cfg.Embeddings.Dimension)
		default:
			embedder = embeddings.NewLocalEmbedder(cfg.Embeddings.Dimension)
		}
	}

	decisionMaker := o.decisionMaker
	if decisionMaker == nil {
		decisionMaker, err = providers.New(cfg.LLM)
		if err != nil {
			keyword.Close()
			db.Close()
			return nil, err
		}
	}

	loader := catalog.NewLoader(db, keyword, embedder, nil)
	if cfg.Catalog.Seed {
		if err := loader.LoadSample(ctx); err != nil {
			keyword.Close()
			db.Close()
			return nil, err
		}
	}
	if cfg.Catalog.Dir != "" {
		if err := loader.LoadDir(ctx, cfg.Catalog.Dir); err != nil {
			keyword.Close()
			db.Close()
			return nil, err
		}
	}

	registry := tools.NewRegistry(tools.Deps{
		Vector:   db,
		Keyword:  keyword,
		Graph:    db,
		Embedder: embedder,
	})
	collector := metrics.NewCollector()
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

	return &Engine{
		cfg:           cfg,
		db:            db,
		keyword:       keyword,
		embedder:      embedder,
		decisionMaker: decisionMaker,
		orchestrator:  orchestrator,
		direct:        direct,
		loader:        loader,
		collector:     collector,
	}, nil
}

// Metrics exposes the engine's usage counters.
func (e *Engine) Metrics() metrics.EngineMetrics {
	return e.collector.GetEngineMetrics()
}

// Run executes a full agent investigation for the query.
func (e *Engine) Run(ctx context.Context, query string) (*models.FinalResult, error) {
	return e.RunWithLimits(ctx, query, e.cfg.Agent.MaxSteps, e.cfg.Agent.MaxTools)
}

// RunWithLimits executes an investigation with per-call budgets.
func (e *Engine) RunWithLimits(ctx context.Context, query string, maxSteps, maxTools int) (*models.FinalResult, error) {
	result, err := e.orchestrator.Run(ctx, query, maxSteps, maxTools)
	if err != nil {
		return nil, err
	}
	e.collector.RecordQuery(result.Elapsed, result.Confidence)
	return result, nil
}

// DirectQuery answers in a single retrieve-then-generate pass.
func (e *Engine) DirectQuery(ctx context.Context, query string, depth int) (*models.QueryResponse, error) {
	req := &models.QueryRequest{Query: query, Depth: depth}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return e.direct.Query(ctx, req)
}

// LoadCatalogFile ingests one YAML catalog file into the stores.
func (e *Engine) LoadCatalogFile(ctx context.Context, path string) error {
	return e.loader.LoadFile(ctx, path)
}

// Close releases the backing stores.
func (e *Engine) Close() error {
	var firstErr error
	if err := e.keyword.Close(); err != nil {
		firstErr = err
	}
	if err := e.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
