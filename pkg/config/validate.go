package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for consistency. All problems are
// collected and returned as a single joined error.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be positive, got %d", c.Server.MaxBodySize))
	}

	switch c.Provider.Type {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("provider.type must be one of openai, anthropic, got %q", c.Provider.Type))
	}
	if c.Provider.Type == "openai" && c.Provider.BackendURL == "" {
		errs = append(errs, errors.New("provider.backend_url is required when provider.type is openai"))
	}
	if c.Provider.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("provider.timeout must be positive, got %s", c.Provider.Timeout))
	}

	if c.Pipeline.LogicModel == "" {
		errs = append(errs, errors.New("pipeline.logic_model is required"))
	}
	if c.Pipeline.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("pipeline.history_limit must not be negative, got %d", c.Pipeline.HistoryLimit))
	}
	if c.Pipeline.MaxPromptSize <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_prompt_size must be positive, got %d", c.Pipeline.MaxPromptSize))
	}

	if c.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK))
	}
	if c.Retrieval.QdrantURL != "" && c.Retrieval.EmbeddingURL == "" {
		errs = append(errs, errors.New("retrieval.embedding_url is required when retrieval.qdrant_url is set"))
	}

	switch c.Storage.Type {
	case "memory":
		if c.Storage.MaxSize <= 0 {
			errs = append(errs, fmt.Errorf("storage.max_size must be positive, got %d", c.Storage.MaxSize))
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			errs = append(errs, errors.New("storage.postgres.dsn is required when storage.type is postgres"))
		}
		if c.Storage.Postgres.MaxConns <= 0 {
			errs = append(errs, fmt.Errorf("storage.postgres.max_conns must be positive, got %d", c.Storage.Postgres.MaxConns))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be one of memory, postgres, got %q", c.Storage.Type))
	}

	switch c.Auth.Type {
	case "none", "":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, errors.New("auth.api_keys must not be empty when auth.type is apikey"))
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d].key is empty", i))
			}
		}
	case "jwt":
		if c.Auth.JWT.JWKSURL == "" {
			errs = append(errs, errors.New("auth.jwt.jwks_url is required when auth.type is jwt"))
		}
		if c.Auth.JWT.Issuer == "" {
			errs = append(errs, errors.New("auth.jwt.issuer is required when auth.type is jwt"))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be one of none, apikey, jwt, got %q", c.Auth.Type))
	}

	if c.Auth.RateLimit.DefaultPerMinute < 0 {
		errs = append(errs, errors.New("auth.rate_limit.default_per_minute must not be negative"))
	}
	for tier, rpm := range c.Auth.RateLimit.TierPerMinute {
		if rpm < 0 {
			errs = append(errs, fmt.Errorf("auth.rate_limit.tier_per_minute[%q] must not be negative", tier))
		}
	}

	return errors.Join(errs...)
}
