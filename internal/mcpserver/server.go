// Package mcpserver exposes the tool catalog as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/finassist/finassist/internal/audit"
	"github.com/finassist/finassist/internal/finance"
	"github.com/finassist/finassist/internal/idempotency"
	"github.com/finassist/finassist/internal/security"
	"github.com/finassist/finassist/internal/tools"
)

// ServerName is reported to MCP clients.
const ServerName = "finassist"

// Runner executes one tool call for a family.
type Runner interface {
	Execute(ctx context.Context, fam finance.Family, req tools.Request) tools.Result
}

// Builder constructs an MCP server bound to one family.
type Builder struct {
	// Catalog lists the tools to expose.
	Catalog *tools.Catalog
	// Runner executes tool calls.
	Runner Runner
	// Family scopes every call.
	Family finance.Family
	// Version is reported to clients.
	Version string
	// Logger is used for structured logging.
	Logger *slog.Logger
	// Audit records cache events.
	Audit audit.Logger
	// Cache stores successful results.
	Cache *idempotency.Cache[tools.Result]
}

// Build creates an MCP server with one tool per catalog entry.
func (b Builder) Build() (*mcp.Server, error) {
	if b.Catalog == nil || b.Runner == nil {
		return nil, fmt.Errorf("catalog and runner are required")
	}
	if strings.TrimSpace(b.Family.ID) == "" {
		return nil, fmt.Errorf("family is required")
	}
	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: b.Version,
	}, nil)
	for _, def := range b.Catalog.All() {
		b.addTool(server, def)
	}
	return server, nil
}

func (b Builder) addTool(server *mcp.Server, def tools.Definition) {
	mcpTool := &mcp.Tool{
		Name:        def.Name,
		Description: def.Description,
		InputSchema: def.Parameters,
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}
	mcp.AddTool(server, mcpTool, func(ctx context.Context, _ *mcp.CallToolRequest, input map[string]any) (*mcp.CallToolResult, any, error) {
		res := b.Call(ctx, def.Name, input)
		return toCallResult(res)
	})
}

// Call runs one tool call through the cache and the runner.
func (b Builder) Call(ctx context.Context, name string, input map[string]any) tools.Result {
	callID, args := correlationID(input)
	if b.Logger != nil {
		b.Logger.Debug("mcp tool call", "tool", name, "call_id", callID, "family_id", b.Family.ID, "args", security.RedactArguments(args))
	}

	cacheKey := ""
	if b.Cache != nil {
		key, err := idempotency.Key(b.Family.ID+":"+name, args)
		if err != nil {
			if b.Logger != nil {
				b.Logger.Warn("cache key build failed", "tool", name, "error", err)
			}
		} else {
			cacheKey = key
		}
	}
	if cacheKey != "" {
		if cached, ok := b.Cache.Get(cacheKey); ok {
			cached.CallID = callID
			b.record(ctx, "cache_hit", name, callID)
			return cached
		}
	}

	res := b.Runner.Execute(ctx, b.Family, tools.Request{CallID: callID, Name: name, Arguments: args})
	if cacheKey != "" && !res.IsError() {
		b.Cache.Set(cacheKey, res)
		b.record(ctx, "cache_store", name, callID)
	}
	return res
}

func (b Builder) record(ctx context.Context, eventType, name, callID string) {
	if b.Audit == nil {
		return
	}
	b.Audit.Record(ctx, audit.Event{Type: eventType, Tool: name, CallID: callID, FamilyID: b.Family.ID, Status: "ok"})
}

// correlationID takes the caller's correlation or request id, or makes one,
// and returns the arguments without it.
func correlationID(input map[string]any) (string, map[string]any) {
	id := ""
	args := make(map[string]any, len(input))
	for k, v := range input {
		switch k {
		case "correlation_id", "request_id":
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" && id == "" {
				id = strings.TrimSpace(s)
			}
		default:
			args[k] = v
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	return id, args
}

func toCallResult(res tools.Result) (*mcp.CallToolResult, any, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, nil, fmt.Errorf("encode %s result: %w", res.Name, err)
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(raw)}},
		StructuredContent: json.RawMessage(raw),
		IsError:           res.IsError(),
	}, nil, nil
}

// ServeStdio serves server over stdin/stdout until ctx is done.
func ServeStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns a streamable HTTP handler for server.
func Handler(server *mcp.Server, stateless bool) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{Stateless: stateless})
}
