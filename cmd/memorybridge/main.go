package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	mbhttp "github.com/Strob0t/memorybridge/internal/adapter/http"
	"github.com/Strob0t/memorybridge/internal/adapter/mcp"
	mbotel "github.com/Strob0t/memorybridge/internal/adapter/otel"
	"github.com/Strob0t/memorybridge/internal/adapter/ws"
	"github.com/Strob0t/memorybridge/internal/config"
	"github.com/Strob0t/memorybridge/internal/logger"
	"github.com/Strob0t/memorybridge/internal/middleware"
	"github.com/Strob0t/memorybridge/internal/secrets"
)

func main() {
	var err error
	switch {
	case len(os.Args) > 1 && os.Args[1] == "admin":
		err = runAdmin(os.Args[2:])
	case len(os.Args) > 1 && os.Args[1] == "stdio":
		err = runStdio(os.Args[2:])
	default:
		err = run()
	}
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// loadConfig loads the configuration and overlays the service secrets.
func loadConfig() (*config.Config, *secrets.Vault, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	vault, err := secrets.NewVault(secrets.EnvLoader(secrets.ServiceKeys...))
	if err != nil {
		return nil, nil, fmt.Errorf("secrets: %w", err)
	}
	vault.Overlay(cfg)
	return cfg, vault, nil
}

func run() error {
	cfg, vault, err := loadConfig()
	if err != nil {
		return err
	}

	log, closer := logger.New(cfg.Logging)
	defer closer.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"environment", cfg.Memory.Environment,
		"zep_api_key", vault.Redacted(secrets.KeyZepAPIKey),
		"mem0_enabled", cfg.Mem0Enabled(),
		"nats", cfg.NATS.URL != "",
		"postgres", cfg.Postgres.DSN != "",
	)

	ctx := context.Background()

	otelShutdown, err := mbotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Error("otel shutdown failed", "error", err)
		}
	}()

	p, err := buildProviders(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	holder := config.NewHolder(cfg, config.DefaultConfigFile)

	hub := ws.NewHub(cfg.Server.CORSOrigin)
	p.memory.SetBroadcaster(hub)

	// --- HTTP ---
	handlers := &mbhttp.Handlers{
		Memory:  p.memory,
		Toolkit: p.toolkit,
	}

	r := chi.NewRouter()

	r.Use(mbhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(mbhttp.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(mbotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(middleware.MemoryUser)
	if cfg.Server.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
		stopCleanup := limiter.StartCleanup(time.Minute, 10*time.Minute)
		defer stopCleanup()
		r.Use(limiter.Handler)
	}
	r.Use(mbhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", healthHandler(p))

	// Live memory events of the caller's workspace
	r.With(mbhttp.RequireUser).Get("/ws", hub.HandleWS)

	mbhttp.MountRoutes(r, handlers, middleware.Idempotency(p.idempotency, idempotencyTTL))

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	var mcpSrv *mcp.Server
	if cfg.MCP.Enabled {
		mcpSrv = mcp.NewServer(mcp.ServerConfig{
			Addr:    ":" + cfg.MCP.Port,
			Name:    cfg.MCP.Name,
			Version: mbhttp.Version,
		}, mcp.ServerDeps{Toolkit: p.toolkit})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
	}

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

loop:
	for {
		select {
		case <-hup:
			reload(holder, vault, p)
		case <-done:
			break loop
		}
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := mcpSrv.Stop(shutdownCtx); err != nil {
		slog.Error("mcp shutdown failed", "error", err)
	}
	return srv.Shutdown(shutdownCtx)
}

// reload re-reads configuration and secrets on SIGHUP. Memory settings take
// effect immediately; connection settings and gateway keys need a restart.
func reload(holder *config.Holder, vault *secrets.Vault, p *providers) {
	if err := vault.Reload(); err != nil {
		slog.Error("secrets reload failed", "error", err)
	}
	if err := holder.Reload(); err != nil {
		slog.Error("config reload failed", "error", err)
		return
	}
	cfg := holder.Get()
	p.memory.UpdateSettings(cfg.Memory)
	slog.Info("config reloaded",
		"environment", cfg.Memory.Environment,
		"max_data_size", cfg.Memory.EffectiveMaxDataSize(),
		"reranker", cfg.Memory.Reranker,
	)
}

// healthHandler reports the gateway and the optional backends. Any failing
// dependency turns the status to "degraded" with a 503.
func healthHandler(p *providers) http.HandlerFunc {
	type healthStatus struct {
		Status   string `json:"status"`
		Gateway  string `json:"gateway"`
		NATS     string `json:"nats"`
		Postgres string `json:"postgres"`
	}

	check := func(enabled bool, err error) string {
		switch {
		case !enabled:
			return "disabled"
		case err != nil:
			return "down"
		default:
			return "up"
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		var gwErr, pgErr, natsErr error
		if p.zep != nil {
			gwErr = p.zep.Health(ctx)
		}
		if p.store != nil {
			pgErr = p.store.Ping(ctx)
		}
		if p.queue != nil && !p.queue.IsConnected() {
			natsErr = errors.New("nats disconnected")
		}

		status := healthStatus{
			Status:   "ok",
			Gateway:  check(p.zep != nil, gwErr),
			NATS:     check(p.queue != nil, natsErr),
			Postgres: check(p.store != nil, pgErr),
		}
		code := http.StatusOK
		if gwErr != nil || pgErr != nil || natsErr != nil {
			status.Status = "degraded"
			code = http.StatusServiceUnavailable
			slog.WarnContext(ctx, "health check degraded", "gateway", gwErr, "postgres", pgErr, "nats", natsErr)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}
