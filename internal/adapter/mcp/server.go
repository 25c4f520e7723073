// Package mcp exposes the memory toolkit as a Model Context Protocol server.
// Tools are served over streamable HTTP, with the calling principal taken from
// the same headers as the REST API, or over stdio for a single fixed user.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/memorybridge/internal/domain/memory"
	"github.com/Strob0t/memorybridge/internal/middleware"
	"github.com/Strob0t/memorybridge/internal/service"
)

// EndpointPath is where the streamable HTTP transport is mounted.
const EndpointPath = "/mcp"

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
}

// ServerDeps holds the services backing the MCP tools. A nil Toolkit makes
// every tool return an error result.
type ServerDeps struct {
	Toolkit *service.Toolkit
}

// Server wraps an mcp-go server and its HTTP transport.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *http.Server
}

// NewServer creates an MCP server with the memory tools and resources
// registered.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(true),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the streamable HTTP handler. The principal headers of each
// request are copied into the tool call context.
func (s *Server) Handler() http.Handler {
	streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath(EndpointPath),
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if u, ok := middleware.UserFromHeaders(r.Header); ok {
				ctx = middleware.WithUser(ctx, u)
			}
			return ctx
		}),
	)
	mux := http.NewServeMux()
	mux.Handle(EndpointPath, streamable)
	return middleware.RequestID(mux)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("mcp listen %s: %w", s.cfg.Addr, err)
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server error", "error", err)
		}
	}()
	slog.Info("mcp server started", "addr", ln.Addr().String(), "path", EndpointPath)
	return nil
}

// Stop gracefully shuts down the HTTP transport.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("mcp shutdown: %w", err)
	}
	slog.Info("mcp server stopped")
	return nil
}

// ServeStdio serves the tools over stdio until ctx is cancelled or in is
// closed. Every call runs as user.
func (s *Server) ServeStdio(ctx context.Context, user memory.UserMemory, in io.Reader, out io.Writer) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("stdio user: %w", err)
	}
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	stdio.SetContextFunc(func(ctx context.Context) context.Context {
		return middleware.WithUser(ctx, user)
	})
	return stdio.Listen(ctx, in, out)
}
