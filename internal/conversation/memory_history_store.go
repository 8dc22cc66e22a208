package conversation

import (
	"context"
	"sync"
)

// MemoryHistoryStore keeps history in process. Used by the terminal chat
// and tests.
type MemoryHistoryStore struct {
	mu       sync.Mutex
	sessions map[string][]ChatMessage
}

var _ HistoryStore = (*MemoryHistoryStore)(nil)

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{sessions: make(map[string][]ChatMessage)}
}

func (s *MemoryHistoryStore) Load(ctx context.Context, sessionKey string) ([]ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatMessage(nil), s.sessions[sessionKey]...), nil
}

func (s *MemoryHistoryStore) Append(ctx context.Context, sessionKey string, msgs ...ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionKey] = append(s.sessions[sessionKey], msgs...)
	return nil
}

func (s *MemoryHistoryStore) Clear(ctx context.Context, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey)
	return nil
}
