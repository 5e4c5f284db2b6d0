package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/ragroute/internal/engine"
	"github.com/kalambet/ragroute/internal/session"
)

// Classifier decides how to answer the last user message of history.
type Classifier interface {
	Decide(ctx context.Context, history []Message, tools []engine.Tool) (Decision, error)
}

// FollowUpper turns a strategy's output into a final reply. Only needed
// when the router loops back to the model after a tool runs.
type FollowUpper interface {
	FollowUp(ctx context.Context, history []Message, d ToolDecision, output string) (string, error)
}

// Compile-time checks.
var (
	_ Classifier  = (*ModelClassifier)(nil)
	_ FollowUpper = (*ModelClassifier)(nil)
)

// ModelClassifier asks a tool-calling chat model to pick a strategy.
type ModelClassifier struct {
	chat        engine.Chatter
	model       string
	temperature float64
	logger      *slog.Logger
}

// NewModelClassifier creates a classifier over the given chat backend.
func NewModelClassifier(chat engine.Chatter, model string, temperature float64) *ModelClassifier {
	return &ModelClassifier{chat: chat, model: model, temperature: temperature, logger: slog.Default()}
}

// Decide sends history with the tool declarations. A reply without tool
// calls is a direct answer. When the model requests several calls only the
// first is honoured.
func (c *ModelClassifier) Decide(ctx context.Context, history []Message, tools []engine.Tool) (Decision, error) {
	reply, err := c.chat.Chat(ctx, engine.ChatRequest{
		Model:       c.model,
		Messages:    toEngineMessages(history),
		Tools:       tools,
		Temperature: engine.Float(c.temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("classifying query: %w", err)
	}

	if len(reply.ToolCalls) == 0 {
		return DirectAnswer{Text: strings.TrimSpace(reply.Content)}, nil
	}
	if len(reply.ToolCalls) > 1 {
		ignored := make([]string, 0, len(reply.ToolCalls)-1)
		for _, tc := range reply.ToolCalls[1:] {
			ignored = append(ignored, tc.Name)
		}
		c.logger.Warn("model requested several tool calls, running the first",
			"tool", reply.ToolCalls[0].Name, "ignored", ignored)
	}

	tc := reply.ToolCalls[0]
	inv, err := ParseToolCall(tc)
	if err != nil {
		return nil, err
	}
	return ToolDecision{CallID: tc.ID, Call: inv}, nil
}

// FollowUp replays the tool call and its output to the model, without tools,
// and returns the model's text.
func (c *ModelClassifier) FollowUp(ctx context.Context, history []Message, d ToolDecision, output string) (string, error) {
	callID := d.CallID
	if callID == "" {
		callID = "call_0"
	}
	msgs := toEngineMessages(history)
	msgs = append(msgs,
		engine.Message{
			Role: session.RoleAssistant,
			ToolCalls: []engine.ToolCall{{
				ID:        callID,
				Name:      d.Call.ToolName(),
				Arguments: encodeArgs(d.Call),
			}},
		},
		engine.Message{Role: session.RoleTool, Content: output, ToolCallID: callID},
	)

	reply, err := c.chat.Chat(ctx, engine.ChatRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: engine.Float(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("summarizing tool output: %w", err)
	}
	return strings.TrimSpace(reply.Content), nil
}

// toEngineMessages converts stored history for the model. Stored tool
// messages have no matching tool call in the transcript, so they are
// presented as assistant turns.
func toEngineMessages(history []Message) []engine.Message {
	out := make([]engine.Message, len(history))
	for i, m := range history {
		role := m.Role
		if role == session.RoleTool {
			role = session.RoleAssistant
		}
		out[i] = engine.Message{Role: role, Content: m.Content}
	}
	return out
}
