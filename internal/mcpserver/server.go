// Package mcpserver exposes the registered tool packages as a Model Context
// Protocol server using the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk).
//
// Every tool handler runs inside an OTel span with its latency and outcome
// recorded; handler errors are returned to the caller as in-band tool errors
// (IsError results) rather than protocol failures, so an assistant can read
// the message and correct its call.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tolarian/tutor/internal/observe"
	"github.com/tolarian/tutor/internal/tools"
)

// Server wraps an SDK server plus the telemetry shared by all tool handlers.
type Server struct {
	srv     *mcpsdk.Server
	metrics *observe.Metrics
}

// New builds a Server named name/version and registers every tool from the
// given tool sets. Tool names must be unique across sets. metrics may be nil
// to disable recording.
func New(name, version string, metrics *observe.Metrics, toolSets ...[]tools.Tool) (*Server, error) {
	srv := mcpsdk.NewServer(&mcpsdk.Implementation{Name: name, Version: version}, nil)
	s := &Server{srv: srv, metrics: metrics}

	seen := make(map[string]bool)
	for _, set := range toolSets {
		for _, t := range set {
			if seen[t.Definition.Name] {
				return nil, fmt.Errorf("mcpserver: duplicate tool %q", t.Definition.Name)
			}
			seen[t.Definition.Name] = true

			schema, err := toSchema(t.Definition.Parameters)
			if err != nil {
				return nil, fmt.Errorf("mcpserver: tool %q: %w", t.Definition.Name, err)
			}

			openWorld := t.Definition.OpenWorld
			srv.AddTool(&mcpsdk.Tool{
				Name:        t.Definition.Name,
				Title:       t.Definition.Title,
				Description: t.Definition.Description,
				InputSchema: schema,
				Annotations: &mcpsdk.ToolAnnotations{
					Title:          t.Definition.Title,
					ReadOnlyHint:   t.Definition.ReadOnly,
					IdempotentHint: t.Definition.Idempotent,
					OpenWorldHint:  &openWorld,
				},
			}, s.wrap(t))
		}
	}

	return s, nil
}

// Run serves MCP over transport until ctx is cancelled or the peer
// disconnects. For a stdio deployment pass &mcpsdk.StdioTransport{}.
func (s *Server) Run(ctx context.Context, transport mcpsdk.Transport) error {
	if err := s.srv.Run(ctx, transport); err != nil {
		return fmt.Errorf("mcpserver: %w", err)
	}
	return nil
}

// Connect attaches the server to a single transport and returns the live
// session. Used by in-process clients and tests; stdio servers use [Run].
func (s *Server) Connect(ctx context.Context, transport mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	ss, err := s.srv.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: connect: %w", err)
	}
	return ss, nil
}

// wrap adapts a tool handler to the SDK handler signature, adding tracing,
// metrics, and logging around the call.
func (s *Server) wrap(t tools.Tool) mcpsdk.ToolHandler {
	name := t.Definition.Name
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		args := "{}"
		if req.Params.Arguments != nil {
			raw, err := json.Marshal(req.Params.Arguments)
			if err != nil {
				return nil, fmt.Errorf("mcpserver: tool %q: encode arguments: %w", name, err)
			}
			args = string(raw)
		}

		ctx, span := observe.StartSpan(ctx, "tool."+name)
		defer span.End()

		start := time.Now()
		out, err := t.Handler(ctx, args)
		elapsed := time.Since(start)

		status := "ok"
		if err != nil {
			status = "error"
		}
		if s.metrics != nil {
			s.metrics.RecordToolCall(ctx, name, status, elapsed)
		}
		observe.Logger(ctx).LogAttrs(ctx, slog.LevelInfo, "tool call",
			slog.String("tool", name),
			slog.String("status", status),
			slog.Duration("duration", elapsed),
		)

		if err != nil {
			// In-band error: the calling assistant sees the message and
			// can fix its arguments or choose another tool.
			return &mcpsdk.CallToolResult{
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: out}},
		}, nil
	}
}

// toSchema converts a JSON Schema expressed as a plain map into the SDK's
// schema type via a JSON round-trip.
func toSchema(params map[string]any) (*jsonschema.Schema, error) {
	if params == nil {
		params = map[string]any{"type": "object"}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode parameter schema: %w", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("invalid parameter schema: %w", err)
	}
	return &schema, nil
}
