package agentflow

import (
	"fmt"
	"strings"

	"github.com/jperalta/sciquery-agent/internal/domain"
)

const evidenceSnippetLimit = 500

// BuildEvidenceBlock renders retrieved results as the tagged context the
// model cites from. Encyclopedia results always precede papers results, and
// within a provider the upstream order is kept, so citation ids are stable
// for a given retrieval.
func BuildEvidenceBlock(wiki, arxiv []domain.SearchResult) string {
	var lines []string

	for i, r := range wiki {
		snippet := r.Extract
		if snippet == "" {
			snippet = r.Snippet
		}
		lines = append(lines, fmt.Sprintf("[W%d] %s :: %s (Source: %s)",
			i+1, r.Title, trimEvidence(snippet), r.URL))
	}

	for i, r := range arxiv {
		lines = append(lines, fmt.Sprintf("[A%d] %s :: Authors: %s. Abstract: %s (Source: %s)",
			i+1, r.Title, r.Authors, trimEvidence(r.Abstract), r.URL))
	}

	return strings.Join(lines, "\n")
}

func trimEvidence(text string) string {
	r := []rune(text)
	if len(r) > evidenceSnippetLimit {
		return string(r[:evidenceSnippetLimit]) + "..."
	}
	return text
}
