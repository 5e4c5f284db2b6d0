// Package session persists conversation history keyed by session id.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/ragroute/internal/websearch"
)

// ErrNotFound is returned when deleting a session that holds no messages.
var ErrNotFound = errors.New("session not found")

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of a conversation. Tool names the strategy that
// produced a tool message; Search carries the raw web results, if any.
type Message struct {
	ID        string               `json:"id"`
	Role      string               `json:"role"`
	Content   string               `json:"content"`
	Tool      string               `json:"tool,omitempty"`
	Search    *websearch.ResultSet `json:"search,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// Store keeps the ordered message history of each session.
type Store interface {
	// Load returns the session's messages in append order. An unknown
	// session has an empty history.
	Load(ctx context.Context, id string) ([]Message, error)

	// Append adds messages to the end of the session's history.
	Append(ctx context.Context, id string, msgs ...Message) error

	// Delete forgets the session.
	Delete(ctx context.Context, id string) error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Options configures the session backends.
type Options struct {
	// TTL bounds how long an idle session is kept by the memory and redis
	// backends. Zero keeps sessions forever.
	TTL time.Duration
	// MaxMessages trims loaded history to the most recent N messages.
	// Zero means unbounded.
	MaxMessages int
}

// tail returns the last n messages, or all of them when n <= 0.
func tail(msgs []Message, n int) []Message {
	if n > 0 && len(msgs) > n {
		return msgs[len(msgs)-n:]
	}
	return msgs
}

func validID(id string) error {
	if id == "" {
		return fmt.Errorf("empty session id")
	}
	return nil
}
