// catalog.go - Barcode metadata lookup (Open Food Facts compatible API)

package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CatalogRecord is what an external barcode service knows about a code.
type CatalogRecord struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Brand    string `json:"brand"`
	Quantity string `json:"quantity"`
	Category string `json:"category"`
}

// CatalogLookup resolves a barcode to catalog metadata.
type CatalogLookup interface {
	Lookup(ctx context.Context, code string) (*CatalogRecord, error)
}

// CatalogClient talks to an Open Food Facts style /api/v2/product/{code}.json endpoint.
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCatalogClient creates a catalog client; baseURL is required.
func NewCatalogClient(baseURL string) (*CatalogClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("catalog base URL is required")
	}
	return &CatalogClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 8 * time.Second},
	}, nil
}

type offResponse struct {
	Status  int `json:"status"`
	Product struct {
		ProductName string `json:"product_name"`
		Brands      string `json:"brands"`
		Quantity    string `json:"quantity"`
		Categories  string `json:"categories"`
	} `json:"product"`
}

// Lookup returns (nil, nil) when the service does not know the code.
func (c *CatalogClient) Lookup(ctx context.Context, code string) (*CatalogRecord, error) {
	endpoint := fmt.Sprintf("%s/api/v2/product/%s.json", c.baseURL, url.PathEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog API error (%d): %s", resp.StatusCode, string(body))
	}

	var payload offResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse catalog response: %w", err)
	}
	if payload.Status != 1 || payload.Product.ProductName == "" {
		return nil, nil
	}

	return &CatalogRecord{
		Code:     code,
		Name:     strings.TrimSpace(payload.Product.ProductName),
		Brand:    firstListItem(payload.Product.Brands),
		Quantity: strings.TrimSpace(payload.Product.Quantity),
		Category: firstListItem(payload.Product.Categories),
	}, nil
}

func firstListItem(s string) string {
	if idx := strings.Index(s, ","); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
