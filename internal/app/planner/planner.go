package planner

import (
	"context"
	"strings"

	"github.com/jperalta/sciquery-agent/internal/domain"
	"github.com/jperalta/sciquery-agent/internal/observability"
)

// Classifier decides the search strategy for a question. Pluggable so the
// keyword matcher below can later be swapped for a model-based classifier
// without touching callers.
type Classifier interface {
	Classify(question string) domain.Strategy
}

// KeywordClassifier is intentionally coarse: any paper-flavored keyword in
// the question selects the papers strategy. A placeholder, not something to
// harden.
type KeywordClassifier struct{}

var paperKeywords = []string{"paper", "study", "research", "publication", "arxiv", "recent"}

func (KeywordClassifier) Classify(question string) domain.Strategy {
	q := strings.ToLower(question)
	for _, kw := range paperKeywords {
		if strings.Contains(q, kw) {
			return domain.StrategyPapers
		}
	}
	return domain.StrategyGeneral
}

// Planner turns a natural-language question into per-provider queries.
// Every method is total: planning never fails past this boundary.
type Planner struct {
	llm        domain.LLMClient
	classifier Classifier
}

// New builds a planner. llm may be nil, in which case the arXiv rewrite is
// skipped and the deterministic fallback applies.
func New(llm domain.LLMClient, classifier Classifier) *Planner {
	if classifier == nil {
		classifier = KeywordClassifier{}
	}
	return &Planner{llm: llm, classifier: classifier}
}

func (p *Planner) Classify(question string) domain.Strategy {
	return p.classifier.Classify(question)
}

// PlanQuery produces the provider-specific query string for a question.
func (p *Planner) PlanQuery(ctx context.Context, provider domain.Provider, question string) string {
	switch provider {
	case domain.ProviderArxiv:
		return p.planArxivQuery(ctx, question)
	default:
		return question
	}
}

const arxivRewritePrompt = `Rewrite the user's question as a single arXiv API search query.
Use field prefixes (ti:, abs:, all:) and the boolean operators AND, OR, ANDNOT.
Quote multi-word phrases. Answer with the query only, no explanation.`

// planArxivQuery prefers an LLM rewrite into a structured boolean query and
// falls back to stop-word stripping when the model is unavailable or returns
// something unusable.
func (p *Planner) planArxivQuery(ctx context.Context, question string) string {
	if p.llm != nil {
		reply, err := p.llm.Generate(ctx, domain.GenerateRequest{
			System: arxivRewritePrompt,
			Messages: []*domain.Message{
				{Role: domain.RoleUser, Content: question},
			},
		})
		if err == nil && reply != nil {
			if q := sanitizeArxivQuery(reply.Content); q != "" {
				return q
			}
		}
		if err != nil {
			observability.LoggerFromContext(ctx).Warn(
				"arxiv query rewrite failed, using fallback", "error", err)
		}
	}

	if q := stripStopWords(question); q != "" {
		return q
	}
	return question
}

// sanitizeArxivQuery accepts only a compact single-line rewrite.
func sanitizeArxivQuery(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "\n\r") || len(s) > 300 {
		return ""
	}
	return s
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"what": {}, "which": {}, "who": {}, "how": {}, "why": {}, "when": {},
	"do": {}, "does": {}, "did": {}, "can": {}, "could": {}, "about": {},
	"of": {}, "in": {}, "on": {}, "for": {}, "to": {}, "and": {}, "or": {},
	"me": {}, "tell": {}, "explain": {}, "please": {},
}

func stripStopWords(question string) string {
	fields := strings.Fields(question)
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.ToLower(strings.Trim(f, ".,;:!?\"'"))
		if w == "" {
			continue
		}
		if _, ok := stopWords[w]; ok {
			continue
		}
		kept = append(kept, strings.Trim(f, ".,;:!?\"'"))
	}
	return strings.Join(kept, " ")
}
