package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tolarian/tutor/internal/tools"
)

func echoTool(name string) tools.Tool {
	return tools.Tool{
		Definition: tools.Definition{
			Name:        name,
			Description: "Echoes its message argument.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{"type": "string"},
				},
				"required": []string{"message"},
			},
			ReadOnly:   true,
			Idempotent: true,
		},
		Handler: func(ctx context.Context, args string) (string, error) {
			var a struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal([]byte(args), &a); err != nil {
				return "", err
			}
			if a.Message == "" {
				return "", fmt.Errorf("%s: message must not be empty", name)
			}
			return "echo: " + a.Message, nil
		},
	}
}

// newSession starts the server over in-memory transports and returns a
// connected client session.
func newSession(t *testing.T, toolSets ...[]tools.Tool) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()

	srv, err := New("tutor-test", "0.0.0", nil, toolSets...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, serverTransport)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = ss.Wait() })

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "0.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })

	return cs
}

func textContent(t *testing.T, res *mcpsdk.CallToolResult) string {
	t.Helper()
	var sb strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func TestServer_ListsRegisteredTools(t *testing.T) {
	cs := newSession(t, []tools.Tool{echoTool("echo_one")}, []tools.Tool{echoTool("echo_two")})

	found := make(map[string]*mcpsdk.Tool)
	for tool, err := range cs.Tools(context.Background(), nil) {
		if err != nil {
			t.Fatalf("list tools: %v", err)
		}
		found[tool.Name] = tool
	}

	for _, name := range []string{"echo_one", "echo_two"} {
		tool, ok := found[name]
		if !ok {
			t.Fatalf("tool %q not listed", name)
		}
		if tool.Description == "" {
			t.Errorf("%s: description not carried over", name)
		}
		if tool.Annotations == nil || !tool.Annotations.ReadOnlyHint {
			t.Errorf("%s: read-only annotation not carried over", name)
		}
	}
}

func TestServer_CallTool(t *testing.T) {
	cs := newSession(t, []tools.Tool{echoTool("echo")})

	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"message": "hello"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", textContent(t, res))
	}
	if got := textContent(t, res); got != "echo: hello" {
		t.Errorf("result = %q, want echo: hello", got)
	}
}

func TestServer_HandlerErrorIsInBand(t *testing.T) {
	cs := newSession(t, []tools.Tool{echoTool("echo")})

	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"message": ""},
	})
	if err != nil {
		t.Fatalf("a handler error must not be a protocol error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected IsError result")
	}
	if got := textContent(t, res); !strings.Contains(got, "message must not be empty") {
		t.Errorf("error text = %q, want the handler's message", got)
	}
}

func TestNew_RejectsDuplicateToolNames(t *testing.T) {
	_, err := New("tutor-test", "0.0.0", nil,
		[]tools.Tool{echoTool("echo")},
		[]tools.Tool{echoTool("echo")},
	)
	if err == nil {
		t.Fatal("expected an error for duplicate tool names")
	}
}

func TestToSchema(t *testing.T) {
	schema, err := toSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
		},
		"required": []string{"query"},
	})
	if err != nil {
		t.Fatalf("toSchema: %v", err)
	}
	if schema.Type != "object" {
		t.Errorf("type = %q, want object", schema.Type)
	}
	if _, ok := schema.Properties["query"]; !ok {
		t.Error("query property lost in conversion")
	}

	// Nil parameters fall back to a permissive object schema.
	schema, err = toSchema(nil)
	if err != nil {
		t.Fatalf("toSchema(nil): %v", err)
	}
	if schema.Type != "object" {
		t.Errorf("nil params type = %q, want object", schema.Type)
	}
}
