package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kalambet/ragroute/internal/storage"
	"github.com/kalambet/ragroute/internal/websearch"
)

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore persists sessions in the messages table of the shared database.
type SQLiteStore struct {
	db  *storage.Store
	max int
}

// NewSQLiteStore wraps an open database. TTL is not applied; sessions are
// kept until deleted.
func NewSQLiteStore(db *storage.Store, opts Options) *SQLiteStore {
	return &SQLiteStore{db: db, max: opts.MaxMessages}
}

func (s *SQLiteStore) Load(_ context.Context, id string) ([]Message, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	rows, err := s.db.ListMessages(id, s.max)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	msgs := make([]Message, len(rows))
	for i, r := range rows {
		msgs[i] = Message{
			ID:        r.ID,
			Role:      r.Role,
			Content:   r.Content,
			Tool:      r.Tool,
			CreatedAt: r.CreatedAt,
		}
		if r.SearchJSON != "" {
			var rs websearch.ResultSet
			if err := json.Unmarshal([]byte(r.SearchJSON), &rs); err != nil {
				return nil, fmt.Errorf("decoding search results of message %s: %w", r.ID, err)
			}
			msgs[i].Search = &rs
		}
	}
	return msgs, nil
}

func (s *SQLiteStore) Append(_ context.Context, id string, msgs ...Message) error {
	if err := validID(id); err != nil {
		return err
	}
	rows := make([]storage.MessageRow, len(msgs))
	for i, m := range msgs {
		rows[i] = storage.MessageRow{
			ID:        m.ID,
			SessionID: id,
			Role:      m.Role,
			Content:   m.Content,
			Tool:      m.Tool,
			CreatedAt: m.CreatedAt,
		}
		if m.Search != nil {
			b, err := json.Marshal(m.Search)
			if err != nil {
				return fmt.Errorf("encoding search results: %w", err)
			}
			rows[i].SearchJSON = string(b)
		}
	}
	if err := s.db.AppendMessages(rows); err != nil {
		return fmt.Errorf("saving session %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(_ context.Context, id string) error {
	err := s.db.DeleteSession(id)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
