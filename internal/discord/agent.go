package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tolarian/tutor/internal/observe"
	"github.com/tolarian/tutor/internal/tools"
	"github.com/tolarian/tutor/pkg/llm"
)

// maxAgentTurns caps the tool-calling loop so a confused model cannot spin
// forever against the upstream APIs.
const maxAgentTurns = 8

const systemPrompt = `You are Tolarian Tutor, a Magic: The Gathering assistant.
You answer questions about cards, rules, combos, and Commander deckbuilding.
Use the available tools to look up real data before answering; do not guess
card text, prices, legality, or rules numbers. Keep answers concise and
formatted for Discord (plain markdown, no tables). When a tool returns no
results, say so plainly.`

// Agent answers free-form questions by running an LLM tool-calling loop over
// the registered tool handlers. It is the conversational counterpart to the
// MCP server: same tools, but the model driving them is ours.
type Agent struct {
	provider llm.Provider
	handlers map[string]tools.Tool
	defs     []llm.ToolDefinition
	metrics  *observe.Metrics
}

// NewAgent builds an Agent over the given tool sets. Duplicate tool names
// are rejected. metrics may be nil to disable recording.
func NewAgent(provider llm.Provider, metrics *observe.Metrics, toolSets ...[]tools.Tool) (*Agent, error) {
	a := &Agent{
		provider: provider,
		handlers: make(map[string]tools.Tool),
		metrics:  metrics,
	}
	for _, set := range toolSets {
		for _, t := range set {
			if _, ok := a.handlers[t.Definition.Name]; ok {
				return nil, fmt.Errorf("discord: duplicate tool %q", t.Definition.Name)
			}
			a.handlers[t.Definition.Name] = t
			a.defs = append(a.defs, llm.ToolDefinition{
				Name:        t.Definition.Name,
				Description: t.Definition.Description,
				Parameters:  t.Definition.Parameters,
			})
		}
	}
	return a, nil
}

// Answer runs the tool loop for a single question and returns the model's
// final text reply.
func (a *Agent) Answer(ctx context.Context, question string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "agent.answer")
	defer span.End()

	if a.metrics != nil {
		a.metrics.ActiveAgentRuns.Add(ctx, 1)
		defer a.metrics.ActiveAgentRuns.Add(ctx, -1)
	}

	answer, err := a.loop(ctx, question)

	if a.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		a.metrics.RecordAgentConversation(ctx, status)
	}
	return answer, err
}

func (a *Agent) loop(ctx context.Context, question string) (string, error) {
	messages := []llm.Message{{Role: "user", Content: question}}

	for turn := 0; turn < maxAgentTurns; turn++ {
		resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
			Messages:     messages,
			Tools:        a.defs,
			SystemPrompt: systemPrompt,
		})
		if err != nil {
			return "", fmt.Errorf("discord: completion: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			messages = append(messages, llm.Message{
				Role:       "tool",
				ToolCallID: tc.ID,
				Content:    a.runTool(ctx, tc),
			})
		}
	}

	return "", fmt.Errorf("discord: no final answer after %d turns", maxAgentTurns)
}

// runTool executes one requested tool call. Failures are returned as text so
// the model can read the message and adjust its next call.
func (a *Agent) runTool(ctx context.Context, tc llm.ToolCall) string {
	tool, ok := a.handlers[tc.Name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", tc.Name)
	}

	args := tc.Arguments
	if args == "" {
		args = "{}"
	}

	start := time.Now()
	out, err := tool.Handler(ctx, args)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	if a.metrics != nil {
		a.metrics.RecordToolCall(ctx, tc.Name, status, elapsed)
	}
	observe.Logger(ctx).LogAttrs(ctx, slog.LevelInfo, "agent tool call",
		slog.String("tool", tc.Name),
		slog.String("status", status),
		slog.Duration("duration", elapsed),
	)

	if err != nil {
		return "Error: " + err.Error()
	}
	return out
}
