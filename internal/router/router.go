// Package router decides, for each user query, whether the document strategy
// or the web search strategy answers it, runs exactly that one strategy, and
// records the exchange in the session history.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kalambet/ragroute/internal/session"
)

// ErrEmptyQuery is returned for a query that is empty after trimming.
var ErrEmptyQuery = errors.New("empty query")

// Options tunes the routing flow.
type Options struct {
	// LoopBack feeds the strategy output back to the model once and stores
	// the model's text as the reply. Off by default: the raw strategy output
	// is the reply.
	LoopBack bool
}

// Router orchestrates one question-answer turn.
type Router struct {
	sessions   session.Store
	classifier Classifier
	strategies Strategies
	opts       Options
	logger     *slog.Logger
}

// New creates a Router. LoopBack requires a classifier that implements
// FollowUpper.
func New(sessions session.Store, classifier Classifier, strategies Strategies, opts Options) (*Router, error) {
	if opts.LoopBack {
		if _, ok := classifier.(FollowUpper); !ok {
			return nil, fmt.Errorf("loop back needs a classifier that can follow up, got %T", classifier)
		}
	}
	return &Router{
		sessions:   sessions,
		classifier: classifier,
		strategies: strategies,
		opts:       opts,
		logger:     slog.Default(),
	}, nil
}

// Ask answers query within sessionID. The user message and exactly one reply
// message are appended to the session; nothing is stored when Ask fails.
func (r *Router) Ask(ctx context.Context, sessionID, query string) (Turn, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Turn{}, ErrEmptyQuery
	}
	start := time.Now()

	history, err := r.sessions.Load(ctx, sessionID)
	if err != nil {
		return Turn{}, fmt.Errorf("loading history: %w", err)
	}
	userMsg := Message{
		ID:        uuid.New().String(),
		Role:      session.RoleUser,
		Content:   query,
		CreatedAt: time.Now().UTC(),
	}
	convo := make([]Message, 0, len(history)+2)
	convo = append(convo, PolicyMessage(query))
	convo = append(convo, history...)
	convo = append(convo, userMsg)

	decision, err := r.classifier.Decide(ctx, convo, Tools())
	if err != nil {
		return Turn{}, err
	}

	var reply Message
	var tool string
	switch d := decision.(type) {
	case DirectAnswer:
		reply = Message{Role: session.RoleAssistant, Content: d.Text}
	case ToolDecision:
		tool = d.Call.ToolName()
		reply, err = r.runTool(ctx, convo, d)
		if err != nil {
			return Turn{}, err
		}
	default:
		return Turn{}, fmt.Errorf("unsupported decision %T", decision)
	}
	reply.ID = uuid.New().String()
	reply.CreatedAt = time.Now().UTC()

	if err := r.sessions.Append(ctx, sessionID, userMsg, reply); err != nil {
		return Turn{}, fmt.Errorf("saving history: %w", err)
	}

	r.logger.Debug("turn complete",
		"session_id", sessionID,
		"tool", tool,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return Turn{
		SessionID: sessionID,
		Query:     query,
		Tool:      tool,
		Reply:     reply,
		History:   append(append(history, userMsg), reply),
	}, nil
}

// runTool executes the chosen strategy and builds the reply message.
func (r *Router) runTool(ctx context.Context, convo []Message, d ToolDecision) (Message, error) {
	result, err := r.execute(ctx, d.Call)
	if err != nil {
		return Message{}, fmt.Errorf("%s: %w", d.Call.ToolName(), err)
	}

	reply := Message{Role: session.RoleTool, Tool: d.Call.ToolName()}
	switch res := result.(type) {
	case TextAnswer:
		reply.Content = res.Text
	case SearchResults:
		reply.Content = res.Set.Text()
		reply.Search = res.Set
	}

	if !r.opts.LoopBack {
		return reply, nil
	}
	text, err := r.classifier.(FollowUpper).FollowUp(ctx, convo, d, reply.Content)
	if err != nil {
		return Message{}, err
	}
	reply.Role = session.RoleAssistant
	reply.Content = text
	return reply, nil
}

func (r *Router) execute(ctx context.Context, inv Invocation) (Result, error) {
	switch c := inv.(type) {
	case RagCall:
		text, err := r.strategies.RAG(ctx, c.Query)
		if err != nil {
			return nil, err
		}
		return TextAnswer{Text: text}, nil
	case WebCall:
		set, err := r.strategies.Web(ctx, c.Query)
		if err != nil {
			return nil, err
		}
		return SearchResults{Set: set}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownTool, inv)
	}
}

// History returns the stored messages of a session.
func (r *Router) History(ctx context.Context, sessionID string) ([]Message, error) {
	return r.sessions.Load(ctx, sessionID)
}

// Forget deletes a session's history.
func (r *Router) Forget(ctx context.Context, sessionID string) error {
	return r.sessions.Delete(ctx, sessionID)
}
