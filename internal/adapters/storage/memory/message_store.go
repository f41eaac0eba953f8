package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jperalta/sciquery-agent/internal/domain"
)

// MessageStore keeps per-thread message sequences in memory. Used for local
// development and tests.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[domain.ThreadID][]*domain.Message
	now      func() time.Time
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[domain.ThreadID][]*domain.Message),
		now:      time.Now,
	}
}

func (s *MessageStore) AppendMessages(ctx context.Context, threadID domain.ThreadID, msgs []*domain.Message) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.messages[threadID]
	if len(msgs) <= len(existing) {
		return len(existing), nil
	}

	for i, msg := range msgs[len(existing):] {
		cp := *msg
		cp.ThreadID = threadID
		cp.Index = len(existing) + i
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = s.now()
		}
		s.messages[threadID] = append(s.messages[threadID], &cp)
	}
	return len(msgs), nil
}

func (s *MessageStore) LoadMessages(ctx context.Context, threadID domain.ThreadID) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[threadID]
	out := make([]*domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MessageStore) ListDisplayMessages(ctx context.Context, threadID domain.ThreadID) ([]domain.DisplayMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.DisplayMessage
	for _, m := range s.messages[threadID] {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			continue
		}
		out = append(out, domain.DisplayMessage{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}

// deleteThread drops a thread's messages; called by ThreadStore on cascade.
func (s *MessageStore) deleteThread(threadID domain.ThreadID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, threadID)
}
