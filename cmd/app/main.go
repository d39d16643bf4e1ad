package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"crew-orchestrator/internal/config"
	"crew-orchestrator/internal/domain/ports/adapter"
	aiAdapters "crew-orchestrator/internal/infra/adapters/ai"
	"crew-orchestrator/internal/infra/crews"
	"crew-orchestrator/internal/infra/logging"
	"crew-orchestrator/internal/infra/memstore"
	"crew-orchestrator/internal/infra/metrics"
	"crew-orchestrator/internal/infra/web"
	"crew-orchestrator/internal/infra/webhook"
	"crew-orchestrator/internal/infra/worker"
	"crew-orchestrator/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}
	metrics.MustRegister()

	// ---- AI adapters (every configured provider, routed by model name) ----
	var ai adapter.AIServiceAdapter
	if cfg.Runtime.Dev {
		ai = aiAdapters.NewNoopAIAdapter()
		logger.Info().Msg("AI adapter: noop (dev)")
	} else {
		byProvider := map[string]adapter.AIServiceAdapter{}
		defaultProvider := ""
		if cfg.AI.OpenRouterKey != "" {
			a, err := aiAdapters.NewOpenRouterAdapter(cfg.AI.OpenRouterKey, cfg.AI.DefaultModel, cfg.AI.OpenRouterBaseURL)
			if err != nil {
				log.Fatalf("openrouter adapter: %v", err)
			}
			byProvider["openrouter"] = aiAdapters.NewInstrumentedAI(a, "openrouter")
			defaultProvider = "openrouter"
			logger.Info().Str("base", cfg.AI.OpenRouterBaseURL).Msg("AI provider: OpenRouter")
		}
		if cfg.AI.OpenAIKey != "" {
			a, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel)
			if err != nil {
				log.Fatalf("openai adapter: %v", err)
			}
			byProvider["openai"] = aiAdapters.NewInstrumentedAI(a, "openai")
			if defaultProvider == "" {
				defaultProvider = "openai"
			}
			logger.Info().Msg("AI provider: OpenAI")
		}
		if cfg.AI.GeminiKey != "" {
			a, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, 0)
			if err != nil {
				log.Fatalf("gemini adapter: %v", err)
			}
			byProvider["gemini"] = aiAdapters.NewInstrumentedAI(a, "gemini")
			if defaultProvider == "" {
				defaultProvider = "gemini"
			}
			logger.Info().Msg("AI provider: Gemini")
		}
		if len(byProvider) == 0 {
			log.Fatalf("no AI provider configured: set ai.openrouter_key, ai.openai_key or ai.gemini_key in %s", *cfgPath)
		}
		ai = aiAdapters.NewMultiAIAdapter(defaultProvider, byProvider, nil)
		logger.Info().Str("default_provider", defaultProvider).Str("default_model", cfg.AI.DefaultModel).Msg("AI routing ready")
	}
	ai = aiAdapters.NewLimitedAI(ai, cfg.AI.ConcurrentLimit)

	// ---- Crews ----
	registry := crews.NewRegistry(logger)
	crews.RegisterBuiltins(registry, cfg.Crews.Enabled)
	deps := crews.Deps{AI: ai, DefaultModel: cfg.AI.DefaultModel, Log: logger}

	// ---- Job pipeline ----
	repo := memstore.NewJobRepository()
	pool := worker.NewPool(cfg.Worker.Workers, cfg.Worker.QueueSize, logger)
	pool.Start(ctx)
	notifier := webhook.NewNotifier(cfg.Webhook.Timeout, logger)

	jobUC := usecase.NewJobUseCase(repo, registry, deps, pool, notifier, cfg.HITL.MaxFeedbackRounds, logger)

	// ---- HTTP server ----
	srv := web.NewServer(cfg.Server, jobUC, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	cancel()
	pool.Stop()
	logger.Info().Msg("stopped")
}
