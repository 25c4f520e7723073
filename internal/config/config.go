// Package config provides hierarchical configuration loading for memorybridge.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the memorybridge service.
type Config struct {
	Server      Server      `yaml:"server"`
	MCP         MCP         `yaml:"mcp"`
	Logging     Logging     `yaml:"logging"`
	Breaker     Breaker     `yaml:"breaker"`
	Gateway     Gateway     `yaml:"gateway"`
	Mem0        Mem0        `yaml:"mem0"`
	Memory      Memory      `yaml:"memory"`
	Cache       Cache       `yaml:"cache"`
	NATS        NATS        `yaml:"nats"`
	Postgres    Postgres    `yaml:"postgres"`
	OTEL        OTEL        `yaml:"otel"`
	Credentials Credentials `yaml:"credentials"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port           string  `yaml:"port"`
	CORSOrigin     string  `yaml:"cors_origin"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"` // per workspace; 0 disables
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// MCP holds the MCP server configuration.
type MCP struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
	Name    string `yaml:"name"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level      string `yaml:"level"`
	Service    string `yaml:"service"`
	Async      bool   `yaml:"async"`
	BufferSize int    `yaml:"buffer_size"` // async channel capacity
	Workers    int    `yaml:"workers"`     // async drain goroutines
}

// Breaker holds circuit breaker configuration for the gateway client.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Gateway holds the hosted graph-memory (Zep) client configuration.
type Gateway struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`     // per remote call
	MaxRetries uint64        `yaml:"max_retries"` // idempotent calls only
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// Mem0 holds the secondary memory provider configuration. Only the key is
// read; no client is wired.
type Mem0 struct {
	APIKey string `yaml:"api_key"`
}

// Deployment environments, used to pick the default max data size.
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

var maxDataSizeByEnv = map[string]int{
	EnvDevelopment: 10000,
	EnvTest:        5000,
	EnvProduction:  50000,
}

// Memory holds orchestration defaults.
type Memory struct {
	Environment  string `yaml:"environment"`
	MaxDataSize  int    `yaml:"max_data_size"` // 0 = environment default
	Reranker     string `yaml:"reranker"`
	DefaultLimit int    `yaml:"default_limit"`
}

// EffectiveMaxDataSize returns MaxDataSize when set, otherwise the default
// for the configured environment.
func (m Memory) EffectiveMaxDataSize() int {
	if m.MaxDataSize > 0 {
		return m.MaxDataSize
	}
	if n, ok := maxDataSizeByEnv[m.Environment]; ok {
		return n
	}
	return maxDataSizeByEnv[EnvDevelopment]
}

// Cache holds the graph search cache configuration.
type Cache struct {
	Enabled     bool          `yaml:"enabled"`
	L1MaxSizeMB int64         `yaml:"l1_max_size_mb"`
	L2Bucket    string        `yaml:"l2_bucket"`
	TTL         time.Duration `yaml:"ttl"`
}

// NATS holds NATS JetStream configuration. An empty URL disables memory
// events and the L2 cache.
type NATS struct {
	URL string `yaml:"url"`
}

// Postgres holds PostgreSQL connection configuration. An empty DSN disables
// the workspace credential store.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	HealthCheck     time.Duration `yaml:"health_check"`
}

// OTEL holds OpenTelemetry configuration.
type OTEL struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	Insecure    bool    `yaml:"insecure"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// Credentials holds the secret used to encrypt stored gateway keys.
type Credentials struct {
	EncryptionSecret string `yaml:"encryption_secret"`
}

// ZepEnabled reports whether a gateway API key is configured.
func (c *Config) ZepEnabled() bool {
	return c.Gateway.APIKey != ""
}

// Mem0Enabled reports whether the secondary provider key is configured.
func (c *Config) Mem0Enabled() bool {
	return c.Mem0.APIKey != ""
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:           "8080",
			CORSOrigin:     "http://localhost:3000",
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		MCP: MCP{
			Enabled: true,
			Port:    "8081",
			Name:    "memorybridge",
		},
		Logging: Logging{
			Level:      "info",
			Service:    "memorybridge",
			BufferSize: 10000,
			Workers:    2,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Gateway: Gateway{
			BaseURL:    "https://api.getzep.com",
			Timeout:    10 * time.Second,
			MaxRetries: 2,
			RetryDelay: 200 * time.Millisecond,
		},
		Memory: Memory{
			Environment:  EnvDevelopment,
			Reranker:     "cross_encoder",
			DefaultLimit: 10,
		},
		Cache: Cache{
			L1MaxSizeMB: 32,
			L2Bucket:    "MEMORY_SEARCH_CACHE",
			TTL:         2 * time.Minute,
		},
		Postgres: Postgres{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 10 * time.Minute,
			HealthCheck:     time.Minute,
		},
		OTEL: OTEL{
			Endpoint:    "localhost:4317",
			ServiceName: "memorybridge",
			Insecure:    true,
			SampleRate:  1.0,
		},
	}
}
