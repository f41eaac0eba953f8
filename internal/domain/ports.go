package domain

import "context"

// ToolSpec describes one tool the language model may invoke.
type ToolSpec struct {
	Name        string
	Description string
	// Parameters is a JSON-schema-shaped description of the arguments.
	Parameters map[string]any
}

// GenerateRequest is the full context handed to the language model for one
// completion: system instructions, the ordered conversation so far, and the
// tools it may call.
type GenerateRequest struct {
	System   string
	Messages []*Message
	Tools    []ToolSpec
}

// LLMClient defines how the core application interacts with a language
// model. The returned message carries RoleAssistant and may request tool
// calls via Message.ToolCalls.
type LLMClient interface {
	Generate(ctx context.Context, req GenerateRequest) (*Message, error)
}

// SearchClient issues one query against a knowledge provider. It never
// returns an error: retrieval failure degrades to an empty slice so a turn
// can always proceed.
type SearchClient interface {
	Search(ctx context.Context, provider Provider, query string, limit int) []SearchResult
}

// ThreadStore defines thread metadata persistence.
type ThreadStore interface {
	// CreateThread fails with ErrThreadExists when the id collides.
	CreateThread(ctx context.Context, id ThreadID, title, preview string) (*Thread, error)
	// GetThread fails with ErrThreadNotFound for unknown ids.
	GetThread(ctx context.Context, id ThreadID) (*Thread, error)
	// ListThreads returns threads ordered newest-updated first.
	ListThreads(ctx context.Context, limit, offset int) ([]*Thread, error)
	// UpdateThreadMetadata applies the non-nil fields of upd and always
	// refreshes the update timestamp.
	UpdateThreadMetadata(ctx context.Context, id ThreadID, upd ThreadUpdate) (*Thread, error)
	// DeleteThread removes the thread and all of its messages; reports
	// whether a thread was actually removed.
	DeleteThread(ctx context.Context, id ThreadID) (bool, error)
}

// MessageStore defines message persistence.
type MessageStore interface {
	// AppendMessages receives the complete message sequence for the thread
	// as known to the caller and persists only the suffix beyond what is
	// already stored, assigning contiguous indices. Calling it twice with
	// the same sequence writes nothing the second time. Returns the total
	// persisted count.
	AppendMessages(ctx context.Context, threadID ThreadID, msgs []*Message) (int, error)
	// LoadMessages returns the full sequence, index ascending.
	LoadMessages(ctx context.Context, threadID ThreadID) ([]*Message, error)
	// ListDisplayMessages returns user/assistant messages only, index
	// ascending.
	ListDisplayMessages(ctx context.Context, threadID ThreadID) ([]DisplayMessage, error)
}
