package domain

import "errors"

// PreviewMaxLen bounds the thread preview stored alongside metadata.
const PreviewMaxLen = 100

var (
	ErrThreadExists   = errors.New("thread already exists")
	ErrThreadNotFound = errors.New("thread not found")
)

// Thread is the persisted metadata of one multi-turn conversation.
// MessageCount is maintained by the store, never by callers.
type Thread struct {
	ID           ThreadID
	Title        string
	Preview      string
	CreatedAt    Timestamp
	UpdatedAt    Timestamp
	MessageCount int
}

// ToolCall is one tool invocation requested by an assistant message.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Message is one entry in a thread's timeline. Identity is
// (ThreadID, Index); indices are contiguous from 0 and a message is
// immutable once written.
type Message struct {
	ThreadID  ThreadID
	Index     int
	Role      Role
	Content   string
	ToolCalls []ToolCall // set when Role == RoleAssistant and the model requested tools
	ToolCallID string    // set when Role == RoleTool, back-reference to the call
	CreatedAt Timestamp
}

// DisplayMessage is the user-facing projection of a message; internal
// system/tool traffic never appears in it.
type DisplayMessage struct {
	Role      Role
	Content   string
	CreatedAt Timestamp
}

// ThreadUpdate carries the optional metadata fields of an update; each nil
// field is left untouched. The update timestamp always refreshes.
type ThreadUpdate struct {
	Title        *string
	Preview      *string
	MessageCount *int
}

// TruncatePreview clamps s to PreviewMaxLen runes for storage.
func TruncatePreview(s string) string {
	r := []rune(s)
	if len(r) > PreviewMaxLen {
		return string(r[:PreviewMaxLen])
	}
	return s
}
