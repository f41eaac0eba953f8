package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/jperalta/sciquery-agent/internal/domain"
)

// Store implements domain.ThreadStore and domain.MessageStore on one sqlite
// database. Every write is a single transaction; a failure mid-write leaves
// previously committed rows intact.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS conversation_threads (
	thread_id     TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT 'Untitled',
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	message_count INTEGER DEFAULT 0,
	preview       TEXT
);

CREATE TABLE IF NOT EXISTS messages (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	thread_id     TEXT NOT NULL,
	role          TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system', 'tool')),
	content       TEXT NOT NULL,
	tool_calls    TEXT,
	tool_call_id  TEXT,
	created_at    TEXT NOT NULL,
	message_index INTEGER NOT NULL,
	FOREIGN KEY (thread_id) REFERENCES conversation_threads(thread_id) ON DELETE CASCADE,
	UNIQUE (thread_id, message_index)
);

CREATE INDEX IF NOT EXISTS idx_messages_thread_id ON messages(thread_id);
CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
`

// Open creates (or opens) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ─────────────────────────────────────────
// ThreadStore
// ─────────────────────────────────────────

func (s *Store) CreateThread(ctx context.Context, id domain.ThreadID, title, preview string) (*domain.Thread, error) {
	if title == "" {
		title = "Untitled"
	}
	now := s.now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_threads
			(thread_id, title, created_at, updated_at, message_count, preview)
		VALUES (?, ?, ?, ?, 0, ?)`,
		string(id), title, formatTime(now), formatTime(now), domain.TruncatePreview(preview))
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
			return nil, domain.ErrThreadExists
		}
		return nil, fmt.Errorf("inserting thread: %w", err)
	}

	return &domain.Thread{
		ID:        id,
		Title:     title,
		Preview:   domain.TruncatePreview(preview),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *Store) GetThread(ctx context.Context, id domain.ThreadID) (*domain.Thread, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT thread_id, title, created_at, updated_at, message_count, preview
		FROM conversation_threads
		WHERE thread_id = ?`, string(id))
	return scanThread(row)
}

func (s *Store) ListThreads(ctx context.Context, limit, offset int) ([]*domain.Thread, error) {
	// thread_id as tie-breaker keeps pagination stable when timestamps
	// collide.
	rows, err := s.db.QueryContext(ctx, `
		SELECT thread_id, title, created_at, updated_at, message_count, preview
		FROM conversation_threads
		ORDER BY updated_at DESC, thread_id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	defer rows.Close()

	var threads []*domain.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

func (s *Store) UpdateThreadMetadata(ctx context.Context, id domain.ThreadID, upd domain.ThreadUpdate) (*domain.Thread, error) {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(s.now().UTC())}

	if upd.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.Preview != nil {
		sets = append(sets, "preview = ?")
		args = append(args, domain.TruncatePreview(*upd.Preview))
	}
	if upd.MessageCount != nil {
		sets = append(sets, "message_count = ?")
		args = append(args, *upd.MessageCount)
	}
	args = append(args, string(id))

	res, err := s.db.ExecContext(ctx,
		"UPDATE conversation_threads SET "+strings.Join(sets, ", ")+" WHERE thread_id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("updating thread: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, domain.ErrThreadNotFound
	}

	return s.GetThread(ctx, id)
}

func (s *Store) DeleteThread(ctx context.Context, id domain.ThreadID) (bool, error) {
	// Messages go with the thread via ON DELETE CASCADE.
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM conversation_threads WHERE thread_id = ?", string(id))
	if err != nil {
		return false, fmt.Errorf("deleting thread: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ─────────────────────────────────────────
// MessageStore
// ─────────────────────────────────────────

func (s *Store) AppendMessages(ctx context.Context, threadID domain.ThreadID, msgs []*domain.Message) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting append transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE thread_id = ?", string(threadID)).Scan(&existing); err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}

	// Only the suffix beyond the persisted count is new; repeated calls
	// with the same sequence are no-ops.
	if len(msgs) <= existing {
		return existing, nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (thread_id, role, content, tool_calls, tool_call_id, created_at, message_index)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range msgs[existing:] {
		var toolCalls sql.NullString
		if len(msg.ToolCalls) > 0 {
			raw, err := json.Marshal(msg.ToolCalls)
			if err != nil {
				return 0, fmt.Errorf("serializing tool calls: %w", err)
			}
			toolCalls = sql.NullString{String: string(raw), Valid: true}
		}
		var toolCallID sql.NullString
		if msg.ToolCallID != "" {
			toolCallID = sql.NullString{String: msg.ToolCallID, Valid: true}
		}

		createdAt := msg.CreatedAt
		if createdAt.IsZero() {
			createdAt = s.now()
		}

		if _, err := stmt.ExecContext(ctx,
			string(threadID), string(msg.Role), msg.Content,
			toolCalls, toolCallID, formatTime(createdAt.UTC()), existing+i,
		); err != nil {
			return 0, fmt.Errorf("inserting message %d: %w", existing+i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing append: %w", err)
	}
	return len(msgs), nil
}

func (s *Store) LoadMessages(ctx context.Context, threadID domain.ThreadID) ([]*domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_index, role, content, tool_calls, tool_call_id, created_at
		FROM messages
		WHERE thread_id = ?
		ORDER BY message_index`, string(threadID))
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	var msgs []*domain.Message
	for rows.Next() {
		var (
			m          domain.Message
			role       string
			toolCalls  sql.NullString
			toolCallID sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&m.Index, &role, &m.Content, &toolCalls, &toolCallID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.ThreadID = threadID
		m.Role = domain.Role(role)
		m.CreatedAt = parseTime(createdAt)
		if toolCallID.Valid {
			m.ToolCallID = toolCallID.String
		}
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("parsing tool calls for index %d: %w", m.Index, err)
			}
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

func (s *Store) ListDisplayMessages(ctx context.Context, threadID domain.ThreadID) ([]domain.DisplayMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at
		FROM messages
		WHERE thread_id = ? AND role IN ('user', 'assistant')
		ORDER BY message_index`, string(threadID))
	if err != nil {
		return nil, fmt.Errorf("loading display messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.DisplayMessage
	for rows.Next() {
		var (
			role      string
			content   string
			createdAt string
		)
		if err := rows.Scan(&role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning display message: %w", err)
		}
		msgs = append(msgs, domain.DisplayMessage{
			Role:      domain.Role(role),
			Content:   content,
			CreatedAt: parseTime(createdAt),
		})
	}
	return msgs, rows.Err()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func scanThread(row interface{ Scan(...any) error }) (*domain.Thread, error) {
	var (
		t         domain.Thread
		id        string
		createdAt string
		updatedAt string
		preview   sql.NullString
	)
	if err := row.Scan(&id, &t.Title, &createdAt, &updatedAt, &t.MessageCount, &preview); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrThreadNotFound
		}
		return nil, fmt.Errorf("scanning thread: %w", err)
	}
	t.ID = domain.ThreadID(id)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	if preview.Valid {
		t.Preview = preview.String
	}
	return &t, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
