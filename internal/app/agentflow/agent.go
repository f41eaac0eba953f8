package agentflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jperalta/sciquery-agent/internal/adapters/llm"
	"github.com/jperalta/sciquery-agent/internal/app/planner"
	"github.com/jperalta/sciquery-agent/internal/domain"
	"github.com/jperalta/sciquery-agent/internal/observability"
)

// User-visible fallbacks. A turn always ends with some final message.
const (
	FallbackAnswer = "I ran into an issue generating the answer. Please try again or adjust the question."
	NoSourcesAnswer = "I couldn't find reliable sources for this question. " +
		"Please try rephrasing or asking a different question."
)

const (
	toolSearchWikipedia = "search_wikipedia"
	toolSearchArxiv     = "search_arxiv"
)

// Agent runs one conversation turn: classify the question, retrieve
// evidence, then synthesize with a bounded tool-call loop. It holds no state
// between turns; callers rehydrate history from the store and persist the
// returned messages afterwards.
type Agent struct {
	llm         domain.LLMClient
	search      domain.SearchClient
	planner     *planner.Planner
	maxSteps    int
	searchLimit int
	now         func() time.Time
}

func New(llmClient domain.LLMClient, search domain.SearchClient, pl *planner.Planner, maxSteps, searchLimit int) *Agent {
	if pl == nil {
		pl = planner.New(llmClient, nil)
	}
	if maxSteps <= 0 {
		maxSteps = 5
	}
	if searchLimit <= 0 {
		searchLimit = 2
	}
	return &Agent{
		llm:         llmClient,
		search:      search,
		planner:     pl,
		maxSteps:    maxSteps,
		searchLimit: searchLimit,
		now:         time.Now,
	}
}

// Run executes the turn and returns the new messages it produced, starting
// with the user message and ending with a non-tool-invoking assistant
// message. It never fails: degraded paths still yield a final message.
func (a *Agent) Run(ctx context.Context, question string, history []*domain.Message) []*domain.Message {
	log := observability.LoggerFromContext(ctx)

	userMsg := &domain.Message{
		Role:      domain.RoleUser,
		Content:   question,
		CreatedAt: a.now(),
	}
	turn := []*domain.Message{userMsg}

	// Classify
	strategy := a.planner.Classify(question)
	log.Info("turn classified", "strategy", strategy)

	// Retrieve: encyclopedia always, papers under the papers strategy.
	wikiQuery := a.planner.PlanQuery(ctx, domain.ProviderWikipedia, question)
	wikiResults := a.search.Search(ctx, domain.ProviderWikipedia, wikiQuery, a.searchLimit)

	var arxivResults []domain.SearchResult
	if strategy == domain.StrategyPapers {
		arxivQuery := a.planner.PlanQuery(ctx, domain.ProviderArxiv, question)
		arxivResults = a.search.Search(ctx, domain.ProviderArxiv, arxivQuery, a.searchLimit)
	}

	if len(wikiResults) == 0 && len(arxivResults) == 0 {
		log.Warn("no sources retrieved, answering without synthesis")
		return append(turn, a.assistantMessage(NoSourcesAnswer))
	}

	evidence := BuildEvidenceBlock(wikiResults, arxivResults)

	// Synthesize. The model sees prior history plus an ephemeral prompt
	// carrying the question and evidence; only the raw question is what the
	// turn records as the user message.
	convo := make([]*domain.Message, 0, len(history)+1)
	convo = append(convo, history...)
	convo = append(convo, &domain.Message{
		Role:    domain.RoleUser,
		Content: llm.BuildSynthesisPrompt(question, evidence),
	})

	final := a.synthesize(ctx, convo, &turn)
	return append(turn, a.assistantMessage(final))
}

// synthesize drives the bounded synthesize/tool-call loop and returns the
// final answer text. Intermediate tool rounds are appended to turn so they
// are persisted with the conversation.
func (a *Agent) synthesize(ctx context.Context, convo []*domain.Message, turn *[]*domain.Message) string {
	log := observability.LoggerFromContext(ctx)

	req := domain.GenerateRequest{
		System:   llm.SystemPrompt,
		Messages: convo,
		Tools:    searchToolSpecs(),
	}

	var lastContent string
	for step := 0; step < a.maxSteps; step++ {
		reply, err := a.llm.Generate(ctx, req)
		if err != nil {
			log.Error("synthesis failed", "step", step, "error", err)
			return FallbackAnswer
		}

		if len(reply.ToolCalls) == 0 {
			if strings.TrimSpace(reply.Content) == "" {
				return FallbackAnswer
			}
			return reply.Content
		}

		lastContent = reply.Content
		log.Info("model requested tools", "step", step, "calls", len(reply.ToolCalls))

		assistant := &domain.Message{
			Role:      domain.RoleAssistant,
			Content:   reply.Content,
			ToolCalls: reply.ToolCalls,
			CreatedAt: a.now(),
		}
		*turn = append(*turn, assistant)
		req.Messages = append(req.Messages, assistant)

		for _, call := range reply.ToolCalls {
			result := &domain.Message{
				Role:       domain.RoleTool,
				Content:    a.execToolCall(ctx, call),
				ToolCallID: call.ID,
				CreatedAt:  a.now(),
			}
			*turn = append(*turn, result)
			req.Messages = append(req.Messages, result)
		}
	}

	// Ceiling reached: the last produced content stands, even though the
	// model asked for another round. This bounds latency and cost.
	log.Warn("tool-call ceiling reached", "max_steps", a.maxSteps)
	if strings.TrimSpace(lastContent) == "" {
		return FallbackAnswer
	}
	return lastContent
}

// execToolCall serves one model-requested search. Failures degrade to a
// no-results note, mirroring the retrieval layer's policy.
func (a *Agent) execToolCall(ctx context.Context, call domain.ToolCall) string {
	query, _ := call.Args["query"].(string)
	if query == "" {
		return "No results: the query argument was empty."
	}

	var provider domain.Provider
	switch call.Name {
	case toolSearchWikipedia:
		provider = domain.ProviderWikipedia
	case toolSearchArxiv:
		provider = domain.ProviderArxiv
	default:
		return fmt.Sprintf("No results: unknown tool %q.", call.Name)
	}

	results := a.search.Search(ctx, provider, query, a.searchLimit)
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query)
	}

	var b strings.Builder
	for _, r := range results {
		text := r.Extract
		if text == "" {
			text = r.Snippet
		}
		if text == "" {
			text = r.Abstract
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", r.Title, r.URL, trimEvidence(text))
	}
	return b.String()
}

func (a *Agent) assistantMessage(content string) *domain.Message {
	return &domain.Message{
		Role:      domain.RoleAssistant,
		Content:   content,
		CreatedAt: a.now(),
	}
}

func searchToolSpecs() []domain.ToolSpec {
	queryParams := func(desc string) map[string]any {
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": desc,
				},
			},
			"required": []string{"query"},
		}
	}

	return []domain.ToolSpec{
		{
			Name:        toolSearchWikipedia,
			Description: "Search Wikipedia for background on a topic. Returns titles, URLs, and lead extracts.",
			Parameters:  queryParams("Topic or phrase to look up."),
		},
		{
			Name:        toolSearchArxiv,
			Description: "Search arXiv for scientific papers. Returns titles, authors, abstracts, and URLs.",
			Parameters:  queryParams("arXiv search query; field prefixes like ti: and abs: are supported."),
		},
	}
}
