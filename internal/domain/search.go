package domain

// Provider identifies one of the external knowledge sources.
type Provider string

const (
	ProviderWikipedia Provider = "wikipedia"
	ProviderArxiv     Provider = "arxiv"
)

// SearchResult is the normalized shape both providers are mapped into.
// It lives for a single turn only and is never persisted.
type SearchResult struct {
	Source  Provider
	Title   string
	URL     string
	Snippet string

	// Wikipedia only
	PageID  int64
	Extract string

	// arXiv only
	Authors  string
	Abstract string
}
