package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/graphchat/internal/domain"
)

// MessageStore is a volatile, process-lifetime TranscriptStore.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[domain.SessionID][]domain.Message
}

var _ domain.TranscriptStore = (*MessageStore)(nil)

func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[domain.SessionID][]domain.Message),
	}
}

func (s *MessageStore) AppendMessages(_ context.Context, sessionID domain.SessionID, msgs ...*domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.messages[sessionID]
	if err := domain.CheckSequence(len(current), msgs); err != nil {
		return err
	}

	for _, m := range msgs {
		current = append(current, *m)
	}
	s.messages[sessionID] = current
	return nil
}

// GetMessagesBySession returns a copy, so later appends never show through.
func (s *MessageStore) GetMessagesBySession(_ context.Context, sessionID domain.SessionID) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.messages[sessionID]
	out := make([]*domain.Message, 0, len(stored))
	for i := range stored {
		m := stored[i]
		out = append(out, &m)
	}
	return out, nil
}

func (s *MessageStore) CountMessages(_ context.Context, sessionID domain.SessionID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.messages[sessionID]), nil
}
