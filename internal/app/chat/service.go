package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jperalta/sciquery-agent/internal/app/agentflow"
	"github.com/jperalta/sciquery-agent/internal/domain"
	"github.com/jperalta/sciquery-agent/internal/observability"
)

const titleMaxLen = 50

// Service exposes the caller-facing operations of the assistant: turn
// submission plus thread management. The HTTP adapter is a thin layer over
// it.
type Service struct {
	agent    *agentflow.Agent
	threads  domain.ThreadStore
	messages domain.MessageStore
	now      func() time.Time
	newID    func() string
}

func NewService(agent *agentflow.Agent, threads domain.ThreadStore, messages domain.MessageStore) *Service {
	return &Service{
		agent:    agent,
		threads:  threads,
		messages: messages,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

type SubmitTurnInput struct {
	ThreadID domain.ThreadID // empty = start a new thread
	Message  string
}

type SubmitTurnOutput struct {
	Thread       *domain.Thread
	FinalMessage *domain.Message
}

// SubmitTurn runs one conversation turn: rehydrate history, run the agent,
// persist the new suffix, refresh thread metadata. The agent itself never
// fails; persistence errors propagate untouched.
func (s *Service) SubmitTurn(ctx context.Context, in SubmitTurnInput) (*SubmitTurnOutput, error) {
	question := strings.TrimSpace(in.Message)
	if question == "" {
		return nil, errors.New("message is required")
	}

	threadID := in.ThreadID
	if threadID == "" {
		threadID = domain.ThreadID(s.newID())
		if _, err := s.threads.CreateThread(ctx, threadID,
			titleFromMessage(question), domain.TruncatePreview(question)); err != nil {
			return nil, fmt.Errorf("creating thread: %w", err)
		}
	} else {
		if _, err := s.threads.GetThread(ctx, threadID); err != nil {
			return nil, err
		}
	}

	ctx = observability.WithThreadID(ctx, string(threadID))
	log := observability.LoggerFromContext(ctx)
	log.Info("turn started")

	history, err := s.messages.LoadMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	turn := s.agent.Run(ctx, question, history)

	// The store receives the complete known sequence and persists only the
	// suffix; a retried call after a partial failure is therefore safe.
	full := make([]*domain.Message, 0, len(history)+len(turn))
	full = append(full, history...)
	full = append(full, turn...)

	count, err := s.messages.AppendMessages(ctx, threadID, full)
	if err != nil {
		return nil, fmt.Errorf("persisting turn: %w", err)
	}

	preview := domain.TruncatePreview(question)
	thread, err := s.threads.UpdateThreadMetadata(ctx, threadID, domain.ThreadUpdate{
		MessageCount: &count,
		Preview:      &preview,
	})
	if err != nil {
		return nil, fmt.Errorf("updating thread metadata: %w", err)
	}

	final := turn[len(turn)-1]
	log.Info("turn completed", "messages_written", len(turn), "message_count", count)

	return &SubmitTurnOutput{
		Thread:       thread,
		FinalMessage: final,
	}, nil
}

func (s *Service) ListThreads(ctx context.Context, limit, offset int) ([]*domain.Thread, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.threads.ListThreads(ctx, limit, offset)
}

func (s *Service) GetThread(ctx context.Context, id domain.ThreadID) (*domain.Thread, error) {
	return s.threads.GetThread(ctx, id)
}

func (s *Service) RenameThread(ctx context.Context, id domain.ThreadID, title string) (*domain.Thread, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title is required")
	}
	return s.threads.UpdateThreadMetadata(ctx, id, domain.ThreadUpdate{Title: &title})
}

func (s *Service) DeleteThread(ctx context.Context, id domain.ThreadID) (bool, error) {
	deleted, err := s.threads.DeleteThread(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		observability.LoggerFromContext(ctx).Info("thread deleted", "thread_id", id)
	}
	return deleted, nil
}

// GetMessages returns the user-facing transcript of a thread.
func (s *Service) GetMessages(ctx context.Context, id domain.ThreadID) ([]domain.DisplayMessage, error) {
	if _, err := s.threads.GetThread(ctx, id); err != nil {
		return nil, err
	}
	return s.messages.ListDisplayMessages(ctx, id)
}

func titleFromMessage(message string) string {
	r := []rune(message)
	if len(r) > titleMaxLen {
		return string(r[:titleMaxLen])
	}
	return message
}
