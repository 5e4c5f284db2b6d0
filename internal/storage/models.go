package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// MessageRow is one persisted conversation message.
type MessageRow struct {
	ID         string
	SessionID  string
	Role       string
	Content    string
	Tool       string
	SearchJSON string // web search bundle, JSON encoded; empty for other messages
	CreatedAt  time.Time
}

// Manifest records a completed index build for one source document.
type Manifest struct {
	Fingerprint  string
	Path         string
	ChunkSize    int
	ChunkOverlap int
	EmbedModel   string
	ChunkCount   int
	CreatedAt    time.Time
}
