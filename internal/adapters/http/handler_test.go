package httpadapter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/jperalta/sciquery-agent/internal/adapters/http"
	"github.com/jperalta/sciquery-agent/internal/adapters/llm"
	memstore "github.com/jperalta/sciquery-agent/internal/adapters/storage/memory"
	"github.com/jperalta/sciquery-agent/internal/app/agentflow"
	"github.com/jperalta/sciquery-agent/internal/app/chat"
	"github.com/jperalta/sciquery-agent/internal/app/planner"
	"github.com/jperalta/sciquery-agent/internal/domain"
)

type stubSearch struct{}

func (stubSearch) Search(ctx context.Context, provider domain.Provider, query string, limit int) []domain.SearchResult {
	if provider != domain.ProviderWikipedia {
		return nil
	}
	return []domain.SearchResult{{
		Source:  domain.ProviderWikipedia,
		Title:   "Entropy",
		URL:     "https://en.wikipedia.org/wiki/Entropy",
		Snippet: "a measure of disorder",
	}}
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	msgs := memstore.NewMessageStore()
	threads := memstore.NewThreadStore(msgs)
	agent := agentflow.New(llm.NewMockLLM(), stubSearch{}, planner.New(nil, nil), 5, 2)
	svc := chat.NewService(agent, threads, msgs)
	return httpadapter.NewServer(svc)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func submitChat(t *testing.T, h http.Handler, message, threadID string) map[string]string {
	t.Helper()

	rec := doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{
		"message":   message,
		"thread_id": threadID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[map[string]string](t, rec)
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestChatStartsAndContinuesThread(t *testing.T) {
	h := newTestServer(t)

	first := submitChat(t, h, "What is entropy?", "")
	require.NotEmpty(t, first["thread_id"])
	assert.NotEmpty(t, first["reply"])

	second := submitChat(t, h, "And enthalpy?", first["thread_id"])
	assert.Equal(t, first["thread_id"], second["thread_id"])
}

func TestChatRejectsBlankMessage(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatRejectsInvalidJSON(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatUnknownThreadIs404(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{
		"message":   "hello?",
		"thread_id": "missing",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAndGetThreads(t *testing.T) {
	h := newTestServer(t)

	first := submitChat(t, h, "What is entropy?", "")

	rec := doJSON(t, h, http.MethodGet, "/api/threads", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]map[string]any](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, first["thread_id"], list[0]["thread_id"])
	assert.Equal(t, "What is entropy?", list[0]["title"])
	assert.EqualValues(t, 2, list[0]["message_count"])

	rec = doJSON(t, h, http.MethodGet, "/api/threads/"+first["thread_id"], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]any](t, rec)
	assert.Equal(t, first["thread_id"], got["thread_id"])

	rec = doJSON(t, h, http.MethodGet, "/api/threads/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRenameThread(t *testing.T) {
	h := newTestServer(t)

	first := submitChat(t, h, "What is entropy?", "")

	rec := doJSON(t, h, http.MethodPatch, "/api/threads/"+first["thread_id"],
		map[string]string{"title": "Thermodynamics"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Thermodynamics", decode[map[string]any](t, rec)["title"])

	rec = doJSON(t, h, http.MethodPatch, "/api/threads/"+first["thread_id"],
		map[string]string{"title": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPatch, "/api/threads/missing",
		map[string]string{"title": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteThread(t *testing.T) {
	h := newTestServer(t)

	first := submitChat(t, h, "What is entropy?", "")

	rec := doJSON(t, h, http.MethodDelete, "/api/threads/"+first["thread_id"], nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/threads/"+first["thread_id"], nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "second delete finds nothing")
}

func TestGetMessages(t *testing.T) {
	h := newTestServer(t)

	first := submitChat(t, h, "What is entropy?", "")

	rec := doJSON(t, h, http.MethodGet, "/api/threads/"+first["thread_id"]+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	msgs := decode[[]map[string]any](t, rec)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0]["role"])
	assert.Equal(t, "What is entropy?", msgs[0]["content"])
	assert.Equal(t, "assistant", msgs[1]["role"])

	rec = doJSON(t, h, http.MethodGet, "/api/threads/missing/messages", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPut, "/api/chat", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/threads", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}
