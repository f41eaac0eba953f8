package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jperalta/sciquery-agent/internal/domain"
)

// arXiv answers with an Atom feed.

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID      string `xml:"id"`
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Authors []struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

func (c *Client) searchArxiv(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	params := url.Values{}
	params.Set("search_query", arxivQuery(query))
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(limit))
	params.Set("sortBy", "relevance")
	params.Set("sortOrder", "descending")

	body, err := c.get(ctx, c.arxivGate, c.arxivBase+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parsing arxiv feed: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		title := strings.TrimSpace(entry.Title)
		if title == "" {
			title = "Untitled"
		}

		var names []string
		for _, a := range entry.Authors {
			if n := strings.TrimSpace(a.Name); n != "" {
				names = append(names, n)
			}
		}
		authors := "Unknown authors"
		if len(names) > 0 {
			authors = strings.Join(names, ", ")
		}

		results = append(results, domain.SearchResult{
			Source:   domain.ProviderArxiv,
			Title:    title,
			URL:      strings.TrimSpace(entry.ID),
			Authors:  authors,
			Abstract: strings.TrimSpace(entry.Summary),
		})
	}
	return results, nil
}

// arxivQuery passes field-scoped queries (the planner's boolean rewrites)
// through untouched and scopes plain text to all fields.
func arxivQuery(query string) string {
	if strings.Contains(query, ":") {
		return query
	}
	return "all:" + query
}
