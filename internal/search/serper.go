// Package search wraps the Serper web search API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultEndpoint = "https://google.serper.dev/search"

// Client calls the Serper search API.
type Client struct {
	endpoint string
	apiKey   string
	limit    int // max results per query
	httpc    *http.Client
}

// NewClient builds a search client. limit caps how many organic results a
// query returns.
func NewClient(apiKey string, limit int) *Client {
	if limit <= 0 {
		limit = 5
	}
	return &Client{
		endpoint: defaultEndpoint,
		apiKey:   apiKey,
		limit:    limit,
		httpc:    &http.Client{Timeout: 20 * time.Second},
	}
}

type searchRequest struct {
	Q string `json:"q"`
}

type searchResponse struct {
	Organic []organicResult `json:"organic"`
}

type organicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Search runs one query and formats the top results as a numbered Markdown
// list. Returns an empty string when the engine finds nothing.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	body, err := json.Marshal(searchRequest{Q: query})
	if err != nil {
		return "", fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed searchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse search response: %w", err)
	}

	return c.format(parsed.Organic), nil
}

func (c *Client) format(results []organicResult) string {
	if len(results) > c.limit {
		results = results[:c.limit]
	}

	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%d. [%s](%s)", i+1, r.Title, r.Link)
		if r.Snippet != "" {
			sb.WriteString("\n")
			sb.WriteString(r.Snippet)
		}
	}
	return sb.String()
}
