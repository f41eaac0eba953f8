package search

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/jperalta/sciquery-agent/internal/domain"
	"github.com/jperalta/sciquery-agent/internal/observability"
)

// Wikipedia search is a two-step flow: a cheap list=search call returning
// ranked candidates, then a per-candidate extracts fetch for the lead
// section. Both steps pass through the same gate.

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			PageID  int64  `json:"pageid"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

type wikiPageResponse struct {
	Query struct {
		Pages map[string]struct {
			PageID  int64  `json:"pageid"`
			Title   string `json:"title"`
			Extract string `json:"extract"`
			FullURL string `json:"fullurl"`
		} `json:"pages"`
	} `json:"query"`
}

func (c *Client) searchWikipedia(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	candidates, err := c.wikiSearch(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	log := observability.LoggerFromContext(ctx)

	// Best-effort enrichment: a missing extract never fails the search.
	for i := range candidates {
		extract, err := c.wikiExtract(ctx, candidates[i].PageID)
		if err != nil {
			log.Warn("wikipedia extract fetch failed", "pageid", candidates[i].PageID, "error", err)
			continue
		}
		candidates[i].Extract = extract
	}

	return candidates, nil
}

func (c *Client) wikiSearch(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("format", "json")
	params.Set("srlimit", strconv.Itoa(limit))
	params.Set("srprop", "snippet|titlesnippet")
	params.Set("utf8", "1")

	body, err := c.get(ctx, c.wikiGate, c.wikiBase+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var parsed wikiSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing wikipedia search response: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(parsed.Query.Search))
	for _, item := range parsed.Query.Search {
		title := item.Title
		if title == "" {
			title = "Untitled"
		}
		results = append(results, domain.SearchResult{
			Source:  domain.ProviderWikipedia,
			Title:   title,
			URL:     pageURLFromTitle(item.Title),
			Snippet: cleanSnippet(item.Snippet),
			PageID:  item.PageID,
		})
	}
	return results, nil
}

// wikiExtract fetches the canonical lead extract for one page.
func (c *Client) wikiExtract(ctx context.Context, pageID int64) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "info|extracts")
	params.Set("inprop", "url")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("redirects", "1")
	params.Set("format", "json")
	params.Set("utf8", "1")
	params.Set("pageids", strconv.FormatInt(pageID, 10))

	body, err := c.get(ctx, c.wikiGate, c.wikiBase+"?"+params.Encode())
	if err != nil {
		return "", err
	}

	var parsed wikiPageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parsing wikipedia page response: %w", err)
	}

	for _, page := range parsed.Query.Pages {
		if page.PageID <= 0 {
			continue
		}
		return strings.TrimSpace(page.Extract), nil
	}
	return "", nil
}

var reHTMLTag = regexp.MustCompile(`<[^>]+>`)

// cleanSnippet strips the highlight markup the search API embeds and
// decodes entities.
func cleanSnippet(snippet string) string {
	text := reHTMLTag.ReplaceAllString(snippet, "")
	return strings.TrimSpace(html.UnescapeString(text))
}

func pageURLFromTitle(title string) string {
	if title == "" {
		return ""
	}
	return "https://en.wikipedia.org/wiki/" + strings.ReplaceAll(title, " ", "_")
}
