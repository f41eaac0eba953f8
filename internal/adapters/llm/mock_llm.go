package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/jperalta/sciquery-agent/internal/domain"
)

// MockLLM is the local-development and test double. GenerateFunc, when set,
// scripts the behavior; otherwise a canned reply echoing the last user
// message is returned.
type MockLLM struct {
	GenerateFunc func(ctx context.Context, req domain.GenerateRequest) (*domain.Message, error)
}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) Generate(ctx context.Context, req domain.GenerateRequest) (*domain.Message, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}

	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == domain.RoleUser {
			last = req.Messages[i].Content
			break
		}
	}

	return &domain.Message{
		Role:      domain.RoleAssistant,
		Content:   fmt.Sprintf("Mock synthesis for %q. The available context supports this answer [W1].\n\nReferences:\n[W1] https://en.wikipedia.org/wiki/Example", last),
		CreatedAt: time.Now(),
	}, nil
}
