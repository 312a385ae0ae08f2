// Package app assembles the capacity planner agent from its parts.
package app

import (
	"context"
	"fmt"

	"github.com/nickbooth1/airport-capacity-planner/internal/agent"
	"github.com/nickbooth1/airport-capacity-planner/internal/airport"
	"github.com/nickbooth1/airport-capacity-planner/internal/config"
	"github.com/nickbooth1/airport-capacity-planner/internal/confirmation"
	"github.com/nickbooth1/airport-capacity-planner/internal/embedding"
	"github.com/nickbooth1/airport-capacity-planner/internal/httpapi"
	"github.com/nickbooth1/airport-capacity-planner/internal/learning"
	"github.com/nickbooth1/airport-capacity-planner/internal/llm"
	"github.com/nickbooth1/airport-capacity-planner/internal/memory"
	"github.com/nickbooth1/airport-capacity-planner/internal/nlp"
	"github.com/nickbooth1/airport-capacity-planner/internal/observability"
	"github.com/nickbooth1/airport-capacity-planner/internal/params"
	"github.com/nickbooth1/airport-capacity-planner/internal/registry"
	"github.com/nickbooth1/airport-capacity-planner/internal/router"
	"github.com/nickbooth1/airport-capacity-planner/internal/session"
	"github.com/nickbooth1/airport-capacity-planner/internal/tools"
	"github.com/nickbooth1/airport-capacity-planner/internal/vectorstore"
)

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Sessions *session.Manager
	Agent    *agent.Agent
	Store    memory.Store
	Metrics  *observability.Metrics

	// Cleanup releases external resources (DB connections) on shutdown.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := memory.NewStore(ctx, cfg.DatabaseURL, cfg.ContextRetention)
	if err != nil {
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}

	var vectors *vectorstore.Store
	if cfg.EmbeddingURL != "" {
		provider, err := embedding.NewHTTPProvider(embedding.HTTPConfig{
			URL:        cfg.EmbeddingURL,
			APIKey:     cfg.EmbeddingAPIKey,
			Model:      cfg.EmbeddingModel,
			Dimensions: cfg.EmbeddingDim,
			MaxRetries: cfg.EmbeddingMaxRetries,
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("embedding provider init failed: %w", err)
		}
		vectors = vectorstore.New(provider, store, vectorstore.Config{
			CacheTTL:  cfg.EmbeddingCacheTTL,
			CacheSize: cfg.EmbeddingCacheSize,
			MaxChars:  cfg.EmbeddingMaxChars,
		})
	}

	generator, err := llm.New(cfg.GeneratorMode, cfg.GeneratorURL, cfg.GeneratorAPIKey)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("generator init failed: %w", err)
	}

	services := airport.NewServices(nil)
	reg := registry.New()
	reg.RegisterInstance(router.ServiceCapacity, services.Capacity)
	reg.RegisterInstance(router.ServiceMaintenance, services.Maintenance)
	reg.RegisterInstance(router.ServiceInfrastructure, services.Infrastructure)
	reg.RegisterInstance(router.ServiceStand, services.Stand)

	sessions := session.NewManager(cfg.SessionInactivity)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})
	sessions.StartJanitor(ctx, cfg.SessionInactivity/2)

	confirmations := confirmation.NewManager(cfg.OperationTTL, store)
	confirmations.SetExpireHook(func(operationID, _ string) {
		metrics.OperationEvents.WithLabelValues("expired").Inc()
		metrics.PendingOperations.Set(float64(confirmations.PendingCount()))
	})
	confirmations.StartSweeper(ctx, cfg.OperationSweepEvery)

	engine := learning.NewEngine(store, cfg.LearningRate)
	if generator != nil {
		engine.SetGenerator(llm.NewRewriter(generator))
	}

	pipelineOpts := []nlp.Option{
		nlp.WithValidator(services.Model),
		nlp.WithLowConfidenceThreshold(cfg.LowConfidenceThreshold),
		nlp.WithLegacyIntentFallback(cfg.LegacyIntentFallback),
	}
	if generator != nil {
		pipelineOpts = append(pipelineOpts, nlp.WithExtractor(llm.NewExtractor(generator)))
	}
	pipeline := nlp.NewPipeline(pipelineOpts...)

	ag := agent.New(agent.Deps{
		Store:         store,
		Vectors:       vectors,
		Pipeline:      pipeline,
		Orchestrator:  tools.NewOrchestrator(reg, nil),
		Validator:     params.NewValidator(nil),
		Confirmations: confirmations,
		Engine:        engine,
		Sessions:      sessions,
		Metrics:       metrics,
	})

	go runMaintenance(ctx, store, cfg.MaintenanceInterval)

	api := httpapi.New(cfg, sessions, ag, store, engine, metrics)

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Sessions: sessions,
		Agent:    ag,
		Store:    store,
		Metrics:  metrics,
		Cleanup:  store.Close,
	}, nil
}
