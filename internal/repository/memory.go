package repository

import (
	"context"
	"errors"
	"strings"
	"sync"

	"travel-agent/internal/domain"
)

// MemoryStore keeps conversations in process. Values are deep-copied on the
// way in and out so callers never share state with the store.
type MemoryStore struct {
	mu         sync.RWMutex
	items      map[string]*domain.ConversationState
	maxHistory int
}

func NewMemoryStore(maxHistory int) *MemoryStore {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &MemoryStore{
		items:      make(map[string]*domain.ConversationState),
		maxHistory: maxHistory,
	}
}

func (s *MemoryStore) Get(_ context.Context, conversationID string) (*domain.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	return state.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, state *domain.ConversationState) error {
	if state == nil || strings.TrimSpace(state.ID) == "" {
		return errors.New("repository: Put: conversation id is required")
	}
	stored := state.Clone()
	stored.History = stored.Window(s.maxHistory)
	stored.Persisted = state.LastSeq()

	s.mu.Lock()
	s.items[state.ID] = stored
	s.mu.Unlock()

	state.Persisted = stored.Persisted
	return nil
}

// Len reports how many conversations are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
