package agentflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jperalta/sciquery-agent/internal/adapters/llm"
	"github.com/jperalta/sciquery-agent/internal/app/planner"
	"github.com/jperalta/sciquery-agent/internal/domain"
)

// fakeSearch serves canned results per provider and records queries.
type fakeSearch struct {
	results map[domain.Provider][]domain.SearchResult
	queries []string
}

func (f *fakeSearch) Search(ctx context.Context, provider domain.Provider, query string, limit int) []domain.SearchResult {
	f.queries = append(f.queries, query)
	return f.results[provider]
}

func wikiResult(title string) domain.SearchResult {
	return domain.SearchResult{
		Source:  domain.ProviderWikipedia,
		Title:   title,
		URL:     "https://en.wikipedia.org/wiki/" + title,
		Snippet: "a snippet about " + title,
	}
}

func arxivResult(title string) domain.SearchResult {
	return domain.SearchResult{
		Source:   domain.ProviderArxiv,
		Title:    title,
		URL:      "http://arxiv.org/abs/1234.5678",
		Authors:  "A. Researcher",
		Abstract: "abstract of " + title,
	}
}

func newAgent(llmClient domain.LLMClient, search domain.SearchClient, maxSteps int) *Agent {
	// nil planner LLM keeps query planning deterministic in tests.
	return New(llmClient, search, planner.New(nil, nil), maxSteps, 2)
}

func TestRunProducesCitedAnswer(t *testing.T) {
	search := &fakeSearch{results: map[domain.Provider][]domain.SearchResult{
		domain.ProviderWikipedia: {wikiResult("Entropy")},
	}}

	var gotPrompt string
	mock := llm.NewMockLLM()
	mock.GenerateFunc = func(ctx context.Context, req domain.GenerateRequest) (*domain.Message, error) {
		gotPrompt = req.Messages[len(req.Messages)-1].Content
		return &domain.Message{Role: domain.RoleAssistant, Content: "Entropy measures disorder [W1]."}, nil
	}

	agent := newAgent(mock, search, 5)
	turn := agent.Run(context.Background(), "What is entropy?", nil)

	require.Len(t, turn, 2)
	assert.Equal(t, domain.RoleUser, turn[0].Role)
	assert.Equal(t, "What is entropy?", turn[0].Content)
	assert.Equal(t, domain.RoleAssistant, turn[1].Role)
	assert.Contains(t, turn[1].Content, "[W1]")

	assert.Contains(t, gotPrompt, "[W1] Entropy", "evidence block reaches the model")
	assert.Contains(t, gotPrompt, "What is entropy?")
}

func TestRunQueriesPapersProviderUnderPapersStrategy(t *testing.T) {
	search := &fakeSearch{results: map[domain.Provider][]domain.SearchResult{
		domain.ProviderWikipedia: {wikiResult("Entanglement")},
		domain.ProviderArxiv:     {arxivResult("Entanglement at Scale")},
	}}

	var gotPrompt string
	mock := llm.NewMockLLM()
	mock.GenerateFunc = func(ctx context.Context, req domain.GenerateRequest) (*domain.Message, error) {
		gotPrompt = req.Messages[len(req.Messages)-1].Content
		return &domain.Message{Role: domain.RoleAssistant, Content: "See [A1]."}, nil
	}

	agent := newAgent(mock, search, 5)
	agent.Run(context.Background(), "recent papers on entanglement?", nil)

	assert.Len(t, search.queries, 2, "papers strategy queries both providers")

	// General-knowledge evidence always precedes papers evidence.
	wIdx := strings.Index(gotPrompt, "[W1]")
	aIdx := strings.Index(gotPrompt, "[A1]")
	require.GreaterOrEqual(t, wIdx, 0)
	require.GreaterOrEqual(t, aIdx, 0)
	assert.Less(t, wIdx, aIdx)
}

func TestRunWithoutSourcesShortCircuits(t *testing.T) {
	search := &fakeSearch{results: map[domain.Provider][]domain.SearchResult{}}

	mock := llm.NewMockLLM()
	mock.GenerateFunc = func(ctx context.Context, req domain.GenerateRequest) (*domain.Message, error) {
		t.Fatal("synthesis must not run without sources")
		return nil, nil
	}

	agent := newAgent(mock, search, 5)
	turn := agent.Run(context.Background(), "What is entropy?", nil)

	require.Len(t, turn, 2)
	assert.Equal(t, NoSourcesAnswer, turn[1].Content)
}

func TestRunSynthesisFailureYieldsApology(t *testing.T) {
	search := &fakeSearch{results: map[domain.Provider][]domain.SearchResult{
		domain.ProviderWikipedia: {wikiResult("Entropy")},
	}}

	mock := llm.NewMockLLM()
	mock.GenerateFunc = func(ctx context.Context, req domain.GenerateRequest) (*domain.Message, error) {
		return nil, errors.New("model down")
	}

	agent := newAgent(mock, search, 5)
	turn := agent.Run(context.Background(), "What is entropy?", nil)

	require.Len(t, turn, 2)
	assert.Equal(t, FallbackAnswer, turn[1].Content, "a turn always produces a final message")
}

func TestToolLoopExecutesRequestedSearch(t *testing.T) {
	search := &fakeSearch{results: map[domain.Provider][]domain.SearchResult{
		domain.ProviderWikipedia: {wikiResult("Entropy")},
		domain.ProviderArxiv:     {arxivResult("Entropy Production Bounds")},
	}}

	calls := 0
	mock := llm.NewMockLLM()
	mock.GenerateFunc = func(ctx context.Context, req domain.GenerateRequest) (*domain.Message, error) {
		calls++
		if calls == 1 {
			return &domain.Message{
				Role: domain.RoleAssistant,
				ToolCalls: []domain.ToolCall{{
					ID:   "call-1",
					Name: "search_arxiv",
					Args: map[string]any{"query": "entropy production"},
				}},
			}, nil
		}
		// The tool result must be visible on the follow-up request.
		last := req.Messages[len(req.Messages)-1]
		assert.Equal(t, domain.RoleTool, last.Role)
		assert.Contains(t, last.Content, "Entropy Production Bounds")
		return &domain.Message{Role: domain.RoleAssistant, Content: "Bounds are known [A1]."}, nil
	}

	agent := newAgent(mock, search, 5)
	turn := agent.Run(context.Background(), "What is entropy?", nil)

	assert.Equal(t, 2, calls)
	// user, assistant tool request, tool result, final answer
	require.Len(t, turn, 4)
	assert.Equal(t, domain.RoleAssistant, turn[1].Role)
	require.Len(t, turn[1].ToolCalls, 1)
	assert.Equal(t, domain.RoleTool, turn[2].Role)
	assert.Equal(t, "call-1", turn[2].ToolCallID)
	assert.Equal(t, "Bounds are known [A1].", turn[3].Content)
}

func TestToolLoopTerminatesAtCeiling(t *testing.T) {
	search := &fakeSearch{results: map[domain.Provider][]domain.SearchResult{
		domain.ProviderWikipedia: {wikiResult("Entropy")},
	}}

	const maxSteps = 3
	calls := 0
	mock := llm.NewMockLLM()
	mock.GenerateFunc = func(ctx context.Context, req domain.GenerateRequest) (*domain.Message, error) {
		calls++
		return &domain.Message{
			Role:    domain.RoleAssistant,
			Content: "still digging",
			ToolCalls: []domain.ToolCall{{
				ID:   "loop",
				Name: "search_wikipedia",
				Args: map[string]any{"query": "more"},
			}},
		}, nil
	}

	agent := newAgent(mock, search, maxSteps)
	turn := agent.Run(context.Background(), "What is entropy?", nil)

	assert.Equal(t, maxSteps, calls, "the loop is bounded by the step ceiling")

	final := turn[len(turn)-1]
	assert.Empty(t, final.ToolCalls)
	assert.Equal(t, "still digging", final.Content,
		"ceiling reached: last produced content stands as final")
}

func TestBuildEvidenceBlockTagsAndTrims(t *testing.T) {
	long := strings.Repeat("x", 600)
	wiki := []domain.SearchResult{
		{Source: domain.ProviderWikipedia, Title: "First", URL: "u1", Extract: long},
		{Source: domain.ProviderWikipedia, Title: "Second", URL: "u2", Snippet: "short"},
	}
	arxiv := []domain.SearchResult{
		{Source: domain.ProviderArxiv, Title: "Paper", URL: "u3", Authors: "A, B", Abstract: "abs"},
	}

	block := BuildEvidenceBlock(wiki, arxiv)
	lines := strings.Split(block, "\n")
	require.Len(t, lines, 3)

	assert.True(t, strings.HasPrefix(lines[0], "[W1] First"))
	assert.Contains(t, lines[0], "...", "long evidence is trimmed")
	assert.NotContains(t, lines[0], strings.Repeat("x", 501))
	assert.True(t, strings.HasPrefix(lines[1], "[W2] Second"))
	assert.True(t, strings.HasPrefix(lines[2], "[A1] Paper"))
	assert.Contains(t, lines[2], "Authors: A, B")
}
