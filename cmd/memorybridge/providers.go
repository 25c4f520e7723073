package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/memorybridge/internal/adapter/gatewaycache"
	mbnats "github.com/Strob0t/memorybridge/internal/adapter/nats"
	"github.com/Strob0t/memorybridge/internal/adapter/natskv"
	mbotel "github.com/Strob0t/memorybridge/internal/adapter/otel"
	"github.com/Strob0t/memorybridge/internal/adapter/postgres"
	"github.com/Strob0t/memorybridge/internal/adapter/ristretto"
	"github.com/Strob0t/memorybridge/internal/adapter/tiered"
	"github.com/Strob0t/memorybridge/internal/adapter/zep"
	"github.com/Strob0t/memorybridge/internal/config"
	"github.com/Strob0t/memorybridge/internal/domain/credential"
	"github.com/Strob0t/memorybridge/internal/port/cache"
	"github.com/Strob0t/memorybridge/internal/port/memorygateway"
	"github.com/Strob0t/memorybridge/internal/port/messagequeue"
	"github.com/Strob0t/memorybridge/internal/resilience"
	"github.com/Strob0t/memorybridge/internal/service"
)

const (
	idempotencyBucket = "MEMORY_IDEMPOTENCY"
	idempotencyTTL    = 24 * time.Hour
)

// providers holds the wired infrastructure and services shared by the
// server and the stdio entry point.
type providers struct {
	zep         *zep.Client    // nil without an environment key
	queue       *mbnats.Queue  // nil without NATS
	store       *postgres.Store // nil without Postgres
	memory      *service.MemoryService
	credentials *service.CredentialService // nil without Postgres
	toolkit     *service.Toolkit
	idempotency cache.Cache

	closers []func()
}

// Close releases everything in reverse order of acquisition.
func (p *providers) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

func (p *providers) onClose(fn func()) { p.closers = append(p.closers, fn) }

// newZepClient builds a gateway client with its own breaker.
func newZepClient(cfg *config.Config, baseURL, apiKey string) *zep.Client {
	if baseURL == "" {
		baseURL = cfg.Gateway.BaseURL
	}
	c := zep.NewClient(baseURL, apiKey, cfg.Gateway.Timeout)
	c.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout,
		resilience.WithHealthyErrors(zep.IsHealthyError)))
	c.SetRetry(cfg.Gateway.MaxRetries, cfg.Gateway.RetryDelay)
	return c
}

func buildProviders(ctx context.Context, cfg *config.Config) (_ *providers, err error) {
	if !cfg.ZepEnabled() && cfg.Postgres.DSN == "" {
		return nil, errors.New("no gateway credentials: set ZEP_API_KEY or configure postgres for workspace credentials")
	}

	p := &providers{}
	defer func() {
		if err != nil {
			p.Close()
		}
	}()

	// --- Infrastructure ---

	var l2, idemL2 cache.Cache
	if cfg.NATS.URL != "" {
		queue, err := mbnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		p.queue = queue
		p.onClose(func() { _ = queue.Close() })

		if cfg.Cache.Enabled {
			kv, err := natskv.Open(ctx, queue.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.TTL)
			if err != nil {
				return nil, fmt.Errorf("search cache bucket: %w", err)
			}
			l2 = kv
		}
		kv, err := natskv.Open(ctx, queue.JetStream(), idempotencyBucket, idempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("idempotency bucket: %w", err)
		}
		idemL2 = kv
	}

	l1, err := ristretto.New(int(cfg.Cache.L1MaxSizeMB))
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	p.onClose(l1.Close)
	p.idempotency = tiered.New(l1, idemL2, idempotencyTTL)

	var searches *gatewaycache.Searches
	if cfg.Cache.Enabled {
		searches = gatewaycache.NewSearches(tiered.New(l1, l2, cfg.Cache.TTL), cfg.Cache.TTL)
		if p.queue != nil {
			cancel, err := p.queue.Subscribe(ctx, messagequeue.SubjectGraphIngested, searches.HandleIngested)
			if err != nil {
				return nil, fmt.Errorf("search cache subscriber: %w", err)
			}
			p.onClose(cancel)
		}
		slog.Info("search cache enabled", "ttl", cfg.Cache.TTL, "shared", l2 != nil)
	}

	factory := func(baseURL, apiKey string) memorygateway.Gateway {
		c := newZepClient(cfg, baseURL, apiKey)
		if searches == nil {
			return c
		}
		return searches.Wrap(c)
	}

	var fallback memorygateway.Gateway
	if cfg.ZepEnabled() {
		p.zep = newZepClient(cfg, cfg.Gateway.BaseURL, cfg.Gateway.APIKey)
		fallback = p.zep
		if searches != nil {
			fallback = searches.Wrap(p.zep)
		}
	}

	// --- Services ---

	p.memory = service.NewMemoryService(fallback, cfg.Memory)
	if p.queue != nil {
		p.memory.SetQueue(p.queue)
	}
	metrics, err := mbotel.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	p.memory.SetMetrics(metrics)

	if cfg.Postgres.DSN != "" {
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		p.onClose(pool.Close)
		slog.Info("postgres connected")

		p.store = postgres.NewStore(pool)
		key := credential.DeriveKey(cfg.Credentials.EncryptionSecret)
		resolver := service.NewGatewayResolver(p.store, key, factory, fallback)
		p.memory.SetGatewaySource(resolver)
		p.credentials = service.NewCredentialService(p.store, key)
		p.credentials.SetResolver(resolver)
	}

	p.toolkit = service.NewToolkit(p.memory)
	return p, nil
}
