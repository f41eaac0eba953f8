package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jperalta/sciquery-agent/internal/app/chat"
	"github.com/jperalta/sciquery-agent/internal/domain"
)

type Server struct {
	svc *chat.Service
}

func NewServer(svc *chat.Service) http.Handler {
	s := &Server{svc: svc}
	mux := http.NewServeMux()

	// /api/health → GET: liveness
	mux.HandleFunc("/api/health", s.handleHealth)

	// /api/chat → POST: submit one turn
	mux.HandleFunc("/api/chat", s.handleChat)

	// /api/threads           → GET: list threads
	// /api/threads/{id}          → GET / PATCH / DELETE
	// /api/threads/{id}/messages → GET: display transcript
	mux.HandleFunc("/api/threads", s.handleThreads)
	mux.HandleFunc("/api/threads/", s.handleThreadWithID)

	return chainMiddlewares(mux, withLogging, withCORS, withRequestID)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type chatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
}

type chatResponse struct {
	Reply    string `json:"reply"`
	ThreadID string `json:"thread_id"`
}

type threadSummary struct {
	ThreadID     string    `json:"thread_id"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

type threadUpdateRequest struct {
	Title string `json:"title"`
}

type displayMessageResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ─────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(w, "message is required")
		return
	}

	out, err := s.svc.SubmitTurn(r.Context(), chat.SubmitTurnInput{
		ThreadID: domain.ThreadID(req.ThreadID),
		Message:  req.Message,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Reply:    out.FinalMessage.Content,
		ThreadID: string(out.Thread.ID),
	})
}

func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	threads, err := s.svc.ListThreads(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]threadSummary, 0, len(threads))
	for _, t := range threads {
		out = append(out, toThreadSummary(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// /api/threads/{id} or /api/threads/{id}/messages
func (s *Server) handleThreadWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/threads/")
	if path == "" {
		http.NotFound(w, r)
		return
	}

	parts := strings.Split(path, "/")
	id := domain.ThreadID(parts[0])
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleGetThread(w, r, id)
		case http.MethodPatch:
			s.handleRenameThread(w, r, id)
		case http.MethodDelete:
			s.handleDeleteThread(w, r, id)
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) == 2 && parts[1] == "messages" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.handleGetMessages(w, r, id)
		return
	}

	http.NotFound(w, r)
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request, id domain.ThreadID) {
	thread, err := s.svc.GetThread(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toThreadSummary(thread))
}

func (s *Server) handleRenameThread(w http.ResponseWriter, r *http.Request, id domain.ThreadID) {
	var req threadUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		badRequest(w, "title is required")
		return
	}

	thread, err := s.svc.RenameThread(r.Context(), id, req.Title)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toThreadSummary(thread))
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request, id domain.ThreadID) {
	deleted, err := s.svc.DeleteThread(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "thread not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request, id domain.ThreadID) {
	msgs, err := s.svc.GetMessages(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]displayMessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, displayMessageResponse{
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

func toThreadSummary(t *domain.Thread) threadSummary {
	return threadSummary{
		ThreadID:     string(t.ID),
		Title:        t.Title,
		Preview:      t.Preview,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		MessageCount: t.MessageCount,
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrThreadNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "thread not found"})
	case errors.Is(err, domain.ErrThreadExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "thread already exists"})
	default:
		internalError(w, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
