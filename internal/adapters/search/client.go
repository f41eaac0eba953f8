package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/jperalta/sciquery-agent/internal/domain"
	"github.com/jperalta/sciquery-agent/internal/observability"
)

const (
	// maxAttempts bounds retries on rate-limit responses; everything else
	// fails the single call immediately.
	maxAttempts = 3
	// fallbackDelay applies when a 429 carries no usable Retry-After.
	fallbackDelay = 2 * time.Second
	// minRetryAfter clamps absurdly small server-suggested waits.
	minRetryAfter = time.Second

	maxBodyBytes = 4 << 20
)

// errForbidden marks a compliance failure (e.g. the provider rejected our
// client identification). Retrying cannot fix it.
var errForbidden = errors.New("provider returned forbidden")

const (
	defaultWikiBaseURL  = "https://en.wikipedia.org/w/api.php"
	defaultArxivBaseURL = "http://export.arxiv.org/api/query"
)

// Options configures the retrieval client. Base URLs are overridable so
// tests can point at local fakes.
type Options struct {
	UserAgent        string
	WikiMinInterval  time.Duration
	ArxivMinInterval time.Duration
	WikiBaseURL      string
	ArxivBaseURL     string
	HTTPClient       *http.Client
}

// Client queries the two knowledge providers and normalizes their payloads
// into domain.SearchResult. Each provider has its own throttle gate; all
// calls from all turns funnel through them.
type Client struct {
	http      *http.Client
	userAgent string

	wikiBase  string
	arxivBase string

	wikiGate  *gate
	arxivGate *gate
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	wikiBase := opts.WikiBaseURL
	if wikiBase == "" {
		wikiBase = defaultWikiBaseURL
	}
	arxivBase := opts.ArxivBaseURL
	if arxivBase == "" {
		arxivBase = defaultArxivBaseURL
	}

	return &Client{
		http:      httpClient,
		userAgent: opts.UserAgent,
		wikiBase:  wikiBase,
		arxivBase: arxivBase,
		wikiGate:  newGate(opts.WikiMinInterval),
		arxivGate: newGate(opts.ArxivMinInterval),
	}
}

// Search implements domain.SearchClient. A failing provider yields an empty
// slice, never an error: retrieval must not abort the turn.
func (c *Client) Search(ctx context.Context, provider domain.Provider, query string, limit int) []domain.SearchResult {
	log := observability.LoggerFromContext(ctx).With("provider", provider, "query", query)

	var (
		results []domain.SearchResult
		err     error
	)

	switch provider {
	case domain.ProviderWikipedia:
		results, err = c.searchWikipedia(ctx, query, limit)
	case domain.ProviderArxiv:
		results, err = c.searchArxiv(ctx, query, limit)
	default:
		log.Warn("unknown search provider")
		return nil
	}

	if err != nil {
		if errors.Is(err, errForbidden) {
			log.Error("provider rejected request, check client identification", "error", err)
		} else {
			log.Warn("search failed, degrading to empty results", "error", err)
		}
		return nil
	}

	log.Info("search done", "results", len(results))
	return results
}

// get issues one throttled GET and retries only on 429, honoring the
// server-suggested wait when present.
func (c *Client) get(ctx context.Context, g *gate, endpoint string) ([]byte, error) {
	op := func() ([]byte, error) {
		var body []byte
		err := g.do(ctx, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return backoff.Permanent(err)
			}
			req.Header.Set("User-Agent", c.userAgent)

			resp, err := c.http.Do(req)
			if err != nil {
				return backoff.Permanent(err)
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				if d, ok := retryAfter(resp); ok {
					return backoff.RetryAfter(int(d.Seconds()))
				}
				// No usable header: the constant backoff supplies the
				// fixed fallback delay.
				return errors.New("too many requests")
			case resp.StatusCode == http.StatusForbidden:
				return backoff.Permanent(errForbidden)
			case resp.StatusCode != http.StatusOK:
				return backoff.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
			}

			b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			if err != nil {
				return backoff.Permanent(err)
			}
			body = b
			return nil
		})
		return body, err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(fallbackDelay)),
		backoff.WithMaxTries(maxAttempts),
	)
}

// retryAfter reads a Retry-After header in seconds form, clamped to
// minRetryAfter.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	d := time.Duration(secs) * time.Second
	if d < minRetryAfter {
		d = minRetryAfter
	}
	return d, true
}
