package mcp

import (
	"context"
	"encoding/json"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Strob0t/memorybridge/internal/service"
)

func readResource(t *testing.T, fn func(context.Context, mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error), uri string) (string, error) {
	t.Helper()
	var req mcplib.ReadResourceRequest
	req.Params.URI = uri
	contents, err := fn(context.Background(), req)
	if err != nil {
		return "", err
	}
	if len(contents) != 1 {
		t.Fatalf("expected one content block, got %d", len(contents))
	}
	text, ok := contents[0].(mcplib.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if text.URI != uri || text.MIMEType != jsonMIME {
		t.Fatalf("unexpected content header %s %s", text.URI, text.MIMEType)
	}
	return text.Text, nil
}

func TestToolsResource(t *testing.T) {
	s := NewServer(ServerConfig{Name: "test"}, ServerDeps{})

	body, err := readResource(t, s.handleToolsResource, ToolsResourceURI)
	if err != nil {
		t.Fatal(err)
	}
	var defs []map[string]any
	if err := json.Unmarshal([]byte(body), &defs); err != nil {
		t.Fatal(err)
	}
	if len(defs) != len(service.ToolDefinitions()) {
		t.Fatalf("expected %d definitions, got %d", len(service.ToolDefinitions()), len(defs))
	}
}

func TestToolResource(t *testing.T) {
	s := NewServer(ServerConfig{Name: "test"}, ServerDeps{})

	tests := []struct {
		name    string
		tool    string
		wantErr bool
	}{
		{"search", service.ToolSearchMemory, false},
		{"store", service.ToolStoreMemory, false},
		{"context", service.ToolGetMemoryContext, false},
		{"unknown", "forget_everything", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := readResource(t, s.handleToolResource, toolResourcePrefix+tt.tool)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error for an unknown tool")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			var def struct {
				Name        string         `json:"name"`
				InputSchema map[string]any `json:"input_schema"`
			}
			if err := json.Unmarshal([]byte(body), &def); err != nil {
				t.Fatal(err)
			}
			if def.Name != tt.tool || def.InputSchema == nil {
				t.Fatalf("unexpected definition %+v", def)
			}
		})
	}
}
