// Package config provides unified configuration for the spielwerk service.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (SPIELWERK_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the spielwerk service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Provider      ProviderConfig      `yaml:"provider"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 10 MB
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
}

// ProviderConfig holds settings for the LLM backend.
type ProviderConfig struct {
	Type       string        `yaml:"type"`         // "openai" or "anthropic", default: "openai"
	BackendURL string        `yaml:"backend_url"`  // required for type=openai
	APIKey     string        `yaml:"api_key"`      // optional
	APIKeyFile string        `yaml:"api_key_file"` // _file variant for api_key
	Timeout    time.Duration `yaml:"timeout"`      // per-call deadline, default: 300s
}

// PipelineConfig holds per-stage generation settings.
type PipelineConfig struct {
	LogicModel        string   `yaml:"logic_model"` // required
	RenderModel       string   `yaml:"render_model"`
	LogicTemperature  *float64 `yaml:"logic_temperature"`
	RenderTemperature *float64 `yaml:"render_temperature"`
	RenderMaxTokens   *int     `yaml:"render_max_tokens"`
	HistoryLimit      int      `yaml:"history_limit"` // default: 5
	MaxPromptSize     int      `yaml:"max_prompt_size"`
}

// RetrievalConfig holds settings for the best-effort retrieval sidecar.
// Retrieval is disabled unless both URLs are set.
type RetrievalConfig struct {
	QdrantURL      string `yaml:"qdrant_url"`
	EmbeddingURL   string `yaml:"embedding_url"`
	EmbeddingModel string `yaml:"embedding_model"` // default: "text-embedding-3-small"
	Collection     string `yaml:"collection"`      // default: "spielwerk"
	TopK           int    `yaml:"top_k"`           // default: 3
}

// Enabled reports whether retrieval is configured.
func (r RetrievalConfig) Enabled() bool {
	return r.QdrantURL != "" && r.EmbeddingURL != ""
}

// StorageConfig holds conversation persistence settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory" or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type      string          `yaml:"type"`       // "none", "apikey", or "jwt", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"`   // API key entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`        // settings for type=jwt
	RateLimit RateLimitConfig `yaml:"rate_limit"` // per-minute request budgets
	Bypass    []string        `yaml:"bypass"`     // paths that skip authentication
}

// RateLimitConfig holds per-minute request budgets, keyed by service
// tier. A budget of 0 disables limiting for that tier.
type RateLimitConfig struct {
	DefaultPerMinute int            `yaml:"default_per_minute"` // default: 60
	TierPerMinute    map[string]int `yaml:"tier_per_minute"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key"`
	KeyFile     string `yaml:"key_file"` // _file variant for key
	Subject     string `yaml:"subject"`
	TenantID    string `yaml:"tenant_id"`
	ServiceTier string `yaml:"service_tier"`
}

// JWTConfig holds JWT validation settings.
type JWTConfig struct {
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
	JWKSURL  string `yaml:"jwks_url"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			MaxBodySize:     10 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Provider: ProviderConfig{
			Type:    "openai",
			Timeout: 300 * time.Second,
		},
		Pipeline: PipelineConfig{
			HistoryLimit:  5,
			MaxPromptSize: 64 * 1024,
		},
		Retrieval: RetrievalConfig{
			EmbeddingModel: "text-embedding-3-small",
			Collection:     "spielwerk",
			TopK:           3,
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			Type: "none",
			RateLimit: RateLimitConfig{
				DefaultPerMinute: 60,
			},
			Bypass: []string{"/healthz", "/readyz", "/metrics"},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
