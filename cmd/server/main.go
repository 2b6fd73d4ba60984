// Command server runs the spielwerk game generation service.
//
// Configuration is layered: built-in defaults, a YAML config file
// (-config flag, SPIELWERK_CONFIG env, ./config.yaml,
// /etc/spielwerk/config.yaml), then SPIELWERK_* environment overrides.
//
//	SPIELWERK_BACKEND_URL - LLM backend URL (required for provider=openai)
//	SPIELWERK_LOGIC_MODEL - Model for the logic stage (required)
//	SPIELWERK_PORT        - Listen port (default: 8080)
//	SPIELWERK_STORAGE     - Storage type: "memory" or "postgres"
//	SPIELWERK_DEBUG       - Debug categories (e.g. "pipeline,providers")
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/rhuss/spielwerk/pkg/auth"
	"github.com/rhuss/spielwerk/pkg/auth/apikey"
	"github.com/rhuss/spielwerk/pkg/auth/jwt"
	"github.com/rhuss/spielwerk/pkg/config"
	"github.com/rhuss/spielwerk/pkg/debug"
	"github.com/rhuss/spielwerk/pkg/pipeline"
	"github.com/rhuss/spielwerk/pkg/provider"
	"github.com/rhuss/spielwerk/pkg/provider/anthropic"
	"github.com/rhuss/spielwerk/pkg/provider/openaicompat"
	"github.com/rhuss/spielwerk/pkg/retrieval"
	"github.com/rhuss/spielwerk/pkg/storage/memory"
	"github.com/rhuss/spielwerk/pkg/storage/postgres"
	"github.com/rhuss/spielwerk/pkg/transport"
	transporthttp "github.com/rhuss/spielwerk/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	debug.Init(os.Getenv("SPIELWERK_DEBUG"), os.Getenv("SPIELWERK_LOG_LEVEL"))

	// Create provider client.
	var client provider.ModelClient
	switch cfg.Provider.Type {
	case "anthropic":
		client = anthropic.NewClient(cfg.Provider.BackendURL, cfg.Provider.APIKey, cfg.Provider.Timeout)
	default:
		client = openaicompat.NewClient(cfg.Provider.BackendURL, cfg.Provider.APIKey, cfg.Provider.Timeout)
	}
	defer client.Close()

	// Create conversation store.
	var store transport.ConversationStore
	switch cfg.Storage.Type {
	case "postgres":
		pg, err := postgres.New(context.Background(), postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return fmt.Errorf("creating postgres store: %w", err)
		}
		store = pg
		slog.Info("storage enabled", "type", "postgres", "max_conns", cfg.Storage.Postgres.MaxConns)
	default:
		store = memory.New(cfg.Storage.MaxSize)
		slog.Info("storage enabled", "type", "memory", "max_size", cfg.Storage.MaxSize)
	}
	defer store.Close()

	// Create the optional retrieval sidecar.
	var sidecar *retrieval.Sidecar
	var ingester transport.DocumentIngester
	if cfg.Retrieval.Enabled() {
		backend := retrieval.NewQdrant(cfg.Retrieval.QdrantURL)
		embedder := retrieval.NewOpenAIEmbeddingClient(cfg.Retrieval.EmbeddingURL, cfg.Retrieval.EmbeddingModel)
		sidecar = retrieval.NewSidecar(backend, embedder, cfg.Retrieval.Collection)
		sidecar.TopK = cfg.Retrieval.TopK
		ingester = sidecar
		slog.Info("retrieval enabled", "qdrant", cfg.Retrieval.QdrantURL, "collection", cfg.Retrieval.Collection)
	} else {
		slog.Info("retrieval disabled")
	}

	// Create the generation pipeline.
	orch, err := pipeline.New(client, store, sidecar, pipeline.Config{
		LogicModel:        cfg.Pipeline.LogicModel,
		RenderModel:       cfg.Pipeline.RenderModel,
		LogicTemperature:  cfg.Pipeline.LogicTemperature,
		RenderTemperature: cfg.Pipeline.RenderTemperature,
		RenderMaxTokens:   cfg.Pipeline.RenderMaxTokens,
		HistoryLimit:      cfg.Pipeline.HistoryLimit,
	})
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	// Create HTTP server.
	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	}
	if mw := buildAuthMiddleware(cfg); mw != nil {
		opts = append(opts, transporthttp.WithAuth(mw))
	}

	srv := transporthttp.NewServer(orch, store, ingester, opts...)

	slog.Info("server starting",
		"port", cfg.Server.Port,
		"provider", cfg.Provider.Type,
		"logic_model", cfg.Pipeline.LogicModel,
		"auth", cfg.Auth.Type)
	return srv.ListenAndServe()
}

// buildAuthMiddleware constructs the authentication middleware from config.
// Returns nil when auth is disabled.
func buildAuthMiddleware(cfg *config.Config) transport.Middleware {
	var chain *auth.Chain

	switch cfg.Auth.Type {
	case "apikey":
		keys := make([]apikey.Key, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			keys = append(keys, apikey.Key{
				Value: k.Key,
				Identity: auth.Identity{
					Subject: k.Subject,
					Tenant:  k.TenantID,
					Tier:    k.ServiceTier,
				},
			})
		}
		chain = auth.NewChain(false, apikey.New(keys))
	case "jwt":
		chain = auth.NewChain(false, jwt.New(jwt.Config{
			JWKSURL:  cfg.Auth.JWT.JWKSURL,
			Issuer:   cfg.Auth.JWT.Issuer,
			Audience: cfg.Auth.JWT.Audience,
		}))
	default:
		return nil
	}

	limiter := auth.NewSlidingWindow(auth.Limits{
		DefaultPerMinute: cfg.Auth.RateLimit.DefaultPerMinute,
		TierPerMinute:    cfg.Auth.RateLimit.TierPerMinute,
	})
	return auth.Middleware(chain, limiter, cfg.Auth.Bypass)
}
