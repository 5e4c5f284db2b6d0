package router

import (
	"github.com/kalambet/ragroute/internal/session"
	"github.com/kalambet/ragroute/internal/websearch"
)

// Message is one entry of a conversation.
type Message = session.Message

// Invocation is a request to run one answer strategy. It is either a RagCall
// or a WebCall.
type Invocation interface {
	ToolName() string
	UserQuery() string
	isInvocation()
}

// RagCall asks the document strategy to answer Query.
type RagCall struct{ Query string }

// WebCall asks the web search strategy to look up Query.
type WebCall struct{ Query string }

func (RagCall) ToolName() string    { return ToolRAG }
func (c RagCall) UserQuery() string { return c.Query }
func (RagCall) isInvocation()       {}

func (WebCall) ToolName() string    { return ToolWebSearch }
func (c WebCall) UserQuery() string { return c.Query }
func (WebCall) isInvocation()       {}

// Decision is what the classifier chose. It is either a DirectAnswer or a
// ToolDecision.
type Decision interface{ isDecision() }

// DirectAnswer is a reply the model produced without any tool.
type DirectAnswer struct{ Text string }

// ToolDecision selects exactly one strategy. CallID is the model's id for
// the call, needed only when the result is fed back to the model.
type ToolDecision struct {
	CallID string
	Call   Invocation
}

func (DirectAnswer) isDecision() {}
func (ToolDecision) isDecision() {}

// Result is the raw output of a strategy. It is either a TextAnswer or a
// SearchResults.
type Result interface{ isResult() }

// TextAnswer is the document strategy's reply.
type TextAnswer struct{ Text string }

// SearchResults is the web strategy's result bundle.
type SearchResults struct{ Set *websearch.ResultSet }

func (TextAnswer) isResult()    {}
func (SearchResults) isResult() {}

// Turn is the outcome of one Ask call.
type Turn struct {
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Tool      string    `json:"tool"`
	Reply     Message   `json:"reply"`
	History   []Message `json:"messages"`
}
