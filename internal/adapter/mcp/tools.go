package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	mbotel "github.com/Strob0t/memorybridge/internal/adapter/otel"
	"github.com/Strob0t/memorybridge/internal/domain/memory"
	"github.com/Strob0t/memorybridge/internal/middleware"
	"github.com/Strob0t/memorybridge/internal/service"
)

// toolCall runs one toolkit operation for an authenticated principal.
type toolCall func(ctx context.Context, tk *service.Toolkit, user memory.UserMemory, req mcplib.CallToolRequest) (string, error)

// registerTools registers the memory tools, with input schemas taken from the
// toolkit definitions.
func (s *Server) registerTools() {
	calls := map[string]toolCall{
		service.ToolSearchMemory:     callSearchMemory,
		service.ToolStoreMemory:      callStoreMemory,
		service.ToolGetMemoryContext: callGetMemoryContext,
	}
	for _, def := range service.ToolDefinitions() {
		call, ok := calls[def.Name]
		if !ok {
			continue
		}
		schema, err := json.Marshal(def.InputSchema)
		if err != nil {
			slog.Error("mcp: marshal tool schema", "tool", def.Name, "error", err)
			continue
		}
		s.mcpServer.AddTools(mcpserver.ServerTool{
			Tool:    mcplib.NewToolWithRawSchema(def.Name, def.Description, schema),
			Handler: s.handler(def.Name, call),
		})
	}
}

func (s *Server) handler(name string, call toolCall) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
		ctx, span := mbotel.StartToolSpan(ctx, name)
		defer span.End()

		if s.deps.Toolkit == nil {
			return mcplib.NewToolResultError("memory toolkit not configured"), nil
		}
		user, ok := middleware.UserFromContext(ctx)
		if !ok {
			return mcplib.NewToolResultError("missing " + middleware.HeaderWorkspaceID + " or " + middleware.HeaderUserID), nil
		}
		text, err := call(ctx, s.deps.Toolkit, user, req)
		if err != nil {
			return mcplib.NewToolResultErrorFromErr("invalid arguments", err), nil
		}
		return mcplib.NewToolResultText(text), nil
	}
}

func callSearchMemory(ctx context.Context, tk *service.Toolkit, user memory.UserMemory, req mcplib.CallToolRequest) (string, error) { //nolint:gocritic // hugeParam: mcp-go request
	var in service.SearchMemoryInput
	if err := req.BindArguments(&in); err != nil {
		return "", err
	}
	return tk.SearchMemory(ctx, user, in), nil
}

func callStoreMemory(ctx context.Context, tk *service.Toolkit, user memory.UserMemory, req mcplib.CallToolRequest) (string, error) { //nolint:gocritic // hugeParam: mcp-go request
	var in service.StoreMemoryInput
	if err := req.BindArguments(&in); err != nil {
		return "", err
	}
	return tk.StoreMemory(ctx, user, in), nil
}

func callGetMemoryContext(ctx context.Context, tk *service.Toolkit, user memory.UserMemory, req mcplib.CallToolRequest) (string, error) { //nolint:gocritic // hugeParam: mcp-go request
	var in service.GetMemoryContextInput
	if err := req.BindArguments(&in); err != nil {
		return "", err
	}
	return tk.GetMemoryContext(ctx, user, in), nil
}
