package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/memorybridge/internal/domain/memory"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "memorybridge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "MEMORYBRIDGE_PORT")
	setString(&cfg.Server.CORSOrigin, "MEMORYBRIDGE_CORS_ORIGIN")
	setFloat64(&cfg.Server.RateLimitRPS, "MEMORYBRIDGE_RATE_LIMIT_RPS")
	setInt(&cfg.Server.RateLimitBurst, "MEMORYBRIDGE_RATE_LIMIT_BURST")

	setBool(&cfg.MCP.Enabled, "MEMORYBRIDGE_MCP_ENABLED")
	setString(&cfg.MCP.Port, "MEMORYBRIDGE_MCP_PORT")

	setString(&cfg.Logging.Level, "MEMORYBRIDGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "MEMORYBRIDGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "MEMORYBRIDGE_LOG_ASYNC")

	setInt(&cfg.Breaker.MaxFailures, "MEMORYBRIDGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "MEMORYBRIDGE_BREAKER_TIMEOUT")

	// Gateway
	setString(&cfg.Gateway.BaseURL, "ZEP_API_URL")
	setString(&cfg.Gateway.APIKey, "ZEP_API_KEY")
	setDuration(&cfg.Gateway.Timeout, "MEMORYBRIDGE_GATEWAY_TIMEOUT")
	setUint64(&cfg.Gateway.MaxRetries, "MEMORYBRIDGE_GATEWAY_MAX_RETRIES")
	setString(&cfg.Mem0.APIKey, "MEM0_API_KEY")

	// Memory
	setString(&cfg.Memory.Environment, "MEMORYBRIDGE_ENV")
	setInt(&cfg.Memory.MaxDataSize, "MEMORYBRIDGE_MAX_DATA_SIZE")
	setString(&cfg.Memory.Reranker, "MEMORYBRIDGE_RERANKER")
	setInt(&cfg.Memory.DefaultLimit, "MEMORYBRIDGE_DEFAULT_LIMIT")

	// Cache
	setBool(&cfg.Cache.Enabled, "MEMORYBRIDGE_CACHE_ENABLED")
	setInt64(&cfg.Cache.L1MaxSizeMB, "MEMORYBRIDGE_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "MEMORYBRIDGE_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.TTL, "MEMORYBRIDGE_CACHE_TTL")

	setString(&cfg.NATS.URL, "NATS_URL")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "MEMORYBRIDGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "MEMORYBRIDGE_PG_MIN_CONNS")

	// OTEL
	setBool(&cfg.OTEL.Enabled, "MEMORYBRIDGE_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "MEMORYBRIDGE_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "MEMORYBRIDGE_OTEL_SAMPLE_RATE")

	setString(&cfg.Credentials.EncryptionSecret, "MEMORYBRIDGE_ENCRYPTION_SECRET")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Server.RateLimitRPS > 0 && cfg.Server.RateLimitBurst < 1 {
		return errors.New("server.rate_limit_burst must be >= 1 when rate limiting is enabled")
	}
	if cfg.Gateway.BaseURL == "" {
		return errors.New("gateway.base_url is required")
	}
	if cfg.Gateway.Timeout <= 0 {
		return errors.New("gateway.timeout must be > 0")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if _, ok := maxDataSizeByEnv[cfg.Memory.Environment]; !ok {
		return fmt.Errorf("memory.environment %q must be development, test, or production", cfg.Memory.Environment)
	}
	if cfg.Memory.MaxDataSize < 0 {
		return errors.New("memory.max_data_size must be >= 0")
	}
	if !slices.Contains(memory.ValidRerankers, memory.Reranker(cfg.Memory.Reranker)) {
		return fmt.Errorf("memory.reranker %q is not supported", cfg.Memory.Reranker)
	}
	if cfg.Memory.DefaultLimit < 1 {
		return errors.New("memory.default_limit must be >= 1")
	}
	if cfg.Postgres.DSN != "" && cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Postgres.DSN != "" && cfg.Credentials.EncryptionSecret == "" {
		return errors.New("credentials.encryption_secret is required when postgres.dsn is set")
	}
	if cfg.Cache.Enabled && cfg.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be > 0 when the cache is enabled")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
