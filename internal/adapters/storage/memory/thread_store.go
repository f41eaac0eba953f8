package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jperalta/sciquery-agent/internal/domain"
)

// ThreadStore keeps thread metadata in memory. Deleting a thread cascades
// into the paired MessageStore, mirroring the referential design of the
// durable backend.
type ThreadStore struct {
	mu      sync.RWMutex
	threads map[domain.ThreadID]*domain.Thread
	msgs    *MessageStore
	now     func() time.Time
}

func NewThreadStore(msgs *MessageStore) *ThreadStore {
	return &ThreadStore{
		threads: make(map[domain.ThreadID]*domain.Thread),
		msgs:    msgs,
		now:     time.Now,
	}
}

func (s *ThreadStore) CreateThread(ctx context.Context, id domain.ThreadID, title, preview string) (*domain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.threads[id]; exists {
		return nil, domain.ErrThreadExists
	}
	if title == "" {
		title = "Untitled"
	}

	now := s.now()
	t := &domain.Thread{
		ID:        id,
		Title:     title,
		Preview:   domain.TruncatePreview(preview),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.threads[id] = t

	cp := *t
	return &cp, nil
}

func (s *ThreadStore) GetThread(ctx context.Context, id domain.ThreadID) (*domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.threads[id]
	if !ok {
		return nil, domain.ErrThreadNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *ThreadStore) ListThreads(ctx context.Context, limit, offset int) ([]*domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*domain.Thread, 0, len(s.threads))
	for _, t := range s.threads {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	out := make([]*domain.Thread, len(all))
	for i, t := range all {
		cp := *t
		out[i] = &cp
	}
	return out, nil
}

func (s *ThreadStore) UpdateThreadMetadata(ctx context.Context, id domain.ThreadID, upd domain.ThreadUpdate) (*domain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[id]
	if !ok {
		return nil, domain.ErrThreadNotFound
	}

	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Preview != nil {
		t.Preview = domain.TruncatePreview(*upd.Preview)
	}
	if upd.MessageCount != nil {
		t.MessageCount = *upd.MessageCount
	}
	t.UpdatedAt = s.now()

	cp := *t
	return &cp, nil
}

func (s *ThreadStore) DeleteThread(ctx context.Context, id domain.ThreadID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[id]; !ok {
		return false, nil
	}
	delete(s.threads, id)
	if s.msgs != nil {
		s.msgs.deleteThread(id)
	}
	return true, nil
}
