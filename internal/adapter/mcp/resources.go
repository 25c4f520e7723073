package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Strob0t/memorybridge/internal/service"
)

// Resource URIs. Clients that read resources instead of calling tools/list
// get the same definitions the tools are registered with.
const (
	ToolsResourceURI    = "memorybridge://tools"
	toolResourcePrefix  = ToolsResourceURI + "/"
	toolResourceTmplURI = toolResourcePrefix + "{name}"
	jsonMIME            = "application/json"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(ToolsResourceURI, "Memory Tools",
			mcplib.WithResourceDescription("Definitions and input schemas of all memory tools"),
			mcplib.WithMIMEType(jsonMIME),
		),
		s.handleToolsResource,
	)
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(toolResourceTmplURI, "Memory Tool",
			mcplib.WithTemplateDescription("Definition and input schema of one memory tool"),
			mcplib.WithTemplateMIMEType(jsonMIME),
		),
		s.handleToolResource,
	)
}

func (s *Server) handleToolsResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	return jsonContents(req.Params.URI, service.ToolDefinitions())
}

func (s *Server) handleToolResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	name := strings.TrimPrefix(req.Params.URI, toolResourcePrefix)
	for _, def := range service.ToolDefinitions() {
		if def.Name == name {
			return jsonContents(req.Params.URI, def)
		}
	}
	return nil, fmt.Errorf("unknown memory tool %q", name)
}

func jsonContents(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{URI: uri, MIMEType: jsonMIME, Text: string(data)},
	}, nil
}
