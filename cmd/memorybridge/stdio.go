package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mbhttp "github.com/Strob0t/memorybridge/internal/adapter/http"
	"github.com/Strob0t/memorybridge/internal/adapter/mcp"
	"github.com/Strob0t/memorybridge/internal/domain/memory"
	"github.com/Strob0t/memorybridge/internal/logger"
)

// runStdio serves the memory tools over stdin/stdout for a single user, for
// agents that spawn the binary as an MCP subprocess. Logs go to stderr.
func runStdio(args []string) error {
	fs := flag.NewFlagSet("stdio", flag.ContinueOnError)
	workspace := fs.String("workspace", os.Getenv("MEMORYBRIDGE_WORKSPACE_ID"), "workspace id (required)")
	userID := fs.String("user", os.Getenv("MEMORYBRIDGE_USER_ID"), "user id (required)")
	email := fs.String("email", os.Getenv("MEMORYBRIDGE_USER_EMAIL"), "user email (required)")
	firstName := fs.String("first-name", os.Getenv("MEMORYBRIDGE_USER_FIRST_NAME"), "user first name")
	lastName := fs.String("last-name", os.Getenv("MEMORYBRIDGE_USER_LAST_NAME"), "user last name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user := memory.UserMemory{
		WorkspaceID: *workspace,
		UserID:      *userID,
		Email:       *email,
		FirstName:   *firstName,
		LastName:    *lastName,
	}
	if err := user.Validate(); err != nil {
		return fmt.Errorf("stdio user: %w", err)
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	log, closer := logger.NewWithWriter(os.Stderr, cfg.Logging)
	defer closer.Close()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildProviders(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	srv := mcp.NewServer(mcp.ServerConfig{Name: cfg.MCP.Name, Version: mbhttp.Version}, mcp.ServerDeps{Toolkit: p.toolkit})
	slog.Info("serving memory tools over stdio", "workspace_id", user.WorkspaceID)
	return srv.ServeStdio(ctx, user, os.Stdin, os.Stdout)
}
