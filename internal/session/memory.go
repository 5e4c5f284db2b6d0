package session

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps sessions in process memory. History is lost on restart.
type MemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
	max   int
}

// NewMemoryStore creates a MemoryStore whose sessions expire after opts.TTL
// without writes.
func NewMemoryStore(opts Options) *MemoryStore {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &MemoryStore{
		cache: cache.New(ttl, 10*time.Minute),
		max:   opts.MaxMessages,
	}
}

func (s *MemoryStore) Load(_ context.Context, id string) ([]Message, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	x, found := s.cache.Get(id)
	if !found {
		return nil, nil
	}
	msgs := tail(x.([]Message), s.max)
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, id string, msgs ...Message) error {
	if err := validID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var history []Message
	if x, found := s.cache.Get(id); found {
		history = x.([]Message)
	}
	next := make([]Message, 0, len(history)+len(msgs))
	next = append(next, history...)
	next = append(next, msgs...)
	s.cache.Set(id, next, cache.DefaultExpiration)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.cache.Get(id); !found {
		return ErrNotFound
	}
	s.cache.Delete(id)
	return nil
}
