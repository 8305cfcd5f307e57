package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const defaultBaseURL = "https://api.search.brave.com"

var (
	ErrUnreachable = errors.New("search backend unreachable")
	ErrBadResponse = errors.New("search backend returned a bad response")
)

type Result struct {
	Title       string
	URL         string
	Description string
}

// BraveClient is a thin adapter over the Brave web search API.
type BraveClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewBrave(apiKey string) *BraveClient {
	return &BraveClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// WithBaseURL overrides the API endpoint, for tests.
func (c *BraveClient) WithBaseURL(base string) *BraveClient {
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

// Search runs one web search and returns up to count results.
func (c *BraveClient) Search(ctx context.Context, query string, count int) ([]Result, error) {
	if count <= 0 {
		count = 5
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/res/v1/web/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrBadResponse, resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrBadResponse)
	}

	var out []Result
	gjson.GetBytes(body, "web.results").ForEach(func(_, r gjson.Result) bool {
		out = append(out, Result{
			Title:       r.Get("title").String(),
			URL:         r.Get("url").String(),
			Description: r.Get("description").String(),
		})
		return len(out) < count
	})
	return out, nil
}

// SearchAndFormat renders search results as a readable numbered list.
// No results is not an error.
func (c *BraveClient) SearchAndFormat(ctx context.Context, query string, count int) (string, error) {
	results, err := c.Search(ctx, query, count)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return fmt.Sprintf("No search results found for %q.", query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. %s\n   %s", i+1, r.Title, r.URL)
		if r.Description != "" {
			fmt.Fprintf(&b, "\n   %s", r.Description)
		}
	}
	return b.String(), nil
}

// Health reports whether the API answers an authenticated request.
func (c *BraveClient) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.Search(ctx, "ping", 1)
	return err == nil
}

func classify(err error) error {
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
