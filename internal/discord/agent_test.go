package discord

import (
	"context"
	"strings"
	"testing"

	"github.com/tolarian/tutor/internal/tools"
	"github.com/tolarian/tutor/pkg/llm"
)

// scriptedProvider returns its responses in order and records every request.
type scriptedProvider struct {
	responses []*llm.CompletionResponse
	requests  []llm.CompletionRequest
}

func (p *scriptedProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.requests = append(p.requests, req)
	if len(p.responses) == 0 {
		return &llm.CompletionResponse{Content: "out of script"}, nil
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func lookupTool(t *testing.T, gotArgs *string) tools.Tool {
	t.Helper()
	return tools.Tool{
		Definition: tools.Definition{
			Name:        "card_lookup",
			Description: "Looks up a card.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{"type": "string"},
				},
			},
		},
		Handler: func(_ context.Context, args string) (string, error) {
			if gotArgs != nil {
				*gotArgs = args
			}
			return "Lightning Bolt deals 3 damage to any target.", nil
		},
	}
}

func TestAgent_DirectAnswer(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.CompletionResponse{
		{Content: "The stack resolves top-down."},
	}}
	agent, err := NewAgent(provider, nil, []tools.Tool{lookupTool(t, nil)})
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}

	answer, err := agent.Answer(context.Background(), "How does the stack work?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer != "The stack resolves top-down." {
		t.Errorf("answer = %q", answer)
	}

	req := provider.requests[0]
	if req.SystemPrompt == "" {
		t.Error("system prompt not sent")
	}
	if len(req.Tools) != 1 || req.Tools[0].Name != "card_lookup" {
		t.Errorf("tool definitions not offered: %+v", req.Tools)
	}
}

func TestAgent_RunsRequestedTool(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "card_lookup", Arguments: `{"name":"Lightning Bolt"}`}}},
		{Content: "Bolt deals 3 damage."},
	}}

	var gotArgs string
	agent, err := NewAgent(provider, nil, []tools.Tool{lookupTool(t, &gotArgs)})
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}

	answer, err := agent.Answer(context.Background(), "What does Lightning Bolt do?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer != "Bolt deals 3 damage." {
		t.Errorf("answer = %q", answer)
	}
	if gotArgs != `{"name":"Lightning Bolt"}` {
		t.Errorf("tool received args %q", gotArgs)
	}

	// The second request must carry the assistant's tool call and the tool
	// result, linked by ID.
	second := provider.requests[1]
	if len(second.Messages) != 3 {
		t.Fatalf("second request has %d messages, want 3", len(second.Messages))
	}
	if second.Messages[1].Role != "assistant" || len(second.Messages[1].ToolCalls) != 1 {
		t.Errorf("assistant turn not recorded: %+v", second.Messages[1])
	}
	toolMsg := second.Messages[2]
	if toolMsg.Role != "tool" || toolMsg.ToolCallID != "call-1" {
		t.Errorf("tool result not linked: %+v", toolMsg)
	}
	if !strings.Contains(toolMsg.Content, "Lightning Bolt deals 3 damage") {
		t.Errorf("tool result content = %q", toolMsg.Content)
	}
}

func TestAgent_UnknownToolReportedToModel(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "no_such_tool", Arguments: "{}"}}},
		{Content: "done"},
	}}
	agent, err := NewAgent(provider, nil, []tools.Tool{lookupTool(t, nil)})
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}

	if _, err := agent.Answer(context.Background(), "hi"); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	toolMsg := provider.requests[1].Messages[2]
	if !strings.Contains(toolMsg.Content, `unknown tool "no_such_tool"`) {
		t.Errorf("model not told about the unknown tool: %q", toolMsg.Content)
	}
}

func TestAgent_TurnLimit(t *testing.T) {
	// A model that never stops calling tools must be cut off.
	var responses []*llm.CompletionResponse
	for i := 0; i < maxAgentTurns+2; i++ {
		responses = append(responses, &llm.CompletionResponse{
			ToolCalls: []llm.ToolCall{{ID: "loop", Name: "card_lookup", Arguments: "{}"}},
		})
	}
	provider := &scriptedProvider{responses: responses}
	agent, err := NewAgent(provider, nil, []tools.Tool{lookupTool(t, nil)})
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}

	if _, err := agent.Answer(context.Background(), "loop forever"); err == nil {
		t.Fatal("expected an error once the turn limit is hit")
	}
	if len(provider.requests) != maxAgentTurns {
		t.Errorf("provider called %d times, want %d", len(provider.requests), maxAgentTurns)
	}
}

func TestNewAgent_RejectsDuplicateToolNames(t *testing.T) {
	_, err := NewAgent(&scriptedProvider{}, nil,
		[]tools.Tool{lookupTool(t, nil)},
		[]tools.Tool{lookupTool(t, nil)},
	)
	if err == nil {
		t.Fatal("expected an error for duplicate tool names")
	}
}
