// webhints.go - Retail web hints via Google Programmable Search

package enrich

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// MaxWebHints is how many search results may ground a provider call.
const MaxWebHints = 2

// WebHint is one search result.
type WebHint struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// WebSearcher finds product pages for a free-text query.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]WebHint, error)
}

// SearchClient restricts Custom Search results to an allow-list of retail domains.
type SearchClient struct {
	svc      *customsearch.Service
	engineID string
	domains  []string
}

// NewSearchClient creates a search client; apiKey, engineID and domains are required.
func NewSearchClient(ctx context.Context, apiKey, engineID string, domains []string, opts ...option.ClientOption) (*SearchClient, error) {
	if apiKey == "" || engineID == "" {
		return nil, fmt.Errorf("search API key and engine id are required")
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("at least one allowed domain is required")
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create search client: %w", err)
	}
	return &SearchClient{svc: svc, engineID: engineID, domains: domains}, nil
}

// BiasQuery appends a site: filter so results come from the allow-list.
func BiasQuery(query string, domains []string) string {
	sites := make([]string, len(domains))
	for i, d := range domains {
		sites[i] = "site:" + d
	}
	return fmt.Sprintf("%s (%s)", strings.TrimSpace(query), strings.Join(sites, " OR "))
}

// Search returns at most MaxWebHints results hosted on allowed domains.
func (c *SearchClient) Search(ctx context.Context, query string) ([]WebHint, error) {
	res, err := c.svc.Cse.List().
		Cx(c.engineID).
		Q(BiasQuery(query, c.domains)).
		Num(int64(MaxWebHints * 2)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("web search failed: %w", err)
	}

	hints := make([]WebHint, 0, MaxWebHints)
	for _, item := range res.Items {
		if !AllowedHost(item.Link, c.domains) {
			continue
		}
		hints = append(hints, WebHint{Title: item.Title, Link: item.Link, Snippet: item.Snippet})
		if len(hints) == MaxWebHints {
			break
		}
	}
	return hints, nil
}

// AllowedHost reports whether link's host is an allowed domain or a subdomain of one.
func AllowedHost(link string, domains []string) bool {
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
