package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"CurriculumSpider/internal/batch"
	"CurriculumSpider/internal/config"
	"CurriculumSpider/internal/logging"
	"CurriculumSpider/internal/ports"
)

// ErrMisconfigured is returned when the API key or engine id is missing.
var ErrMisconfigured = errors.New("search client misconfigured")

// StatusError reports a non-2xx Custom Search response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("search returned %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// RateLimited reports whether the error is an HTTP 429.
func RateLimited(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusTooManyRequests
}

// Item is one Custom Search result.
type Item struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	DisplayLink string `json:"displayLink"`
	Pagemap     struct {
		Person []struct {
			Name string `json:"name"`
		} `json:"person"`
	} `json:"pagemap"`
}

// Client talks to the Google Custom Search JSON API. A rate-limited request is retried once
// after the configured backoff.
type Client struct {
	endpoint string
	apiKey   string
	cx       string
	num      int
	backoff  time.Duration
	http     *http.Client
	log      *logging.Logger
	wait     func(ctx context.Context, d time.Duration) error
}

var _ ports.WebSearch = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.SearchConfig, log *logging.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.CX == "" {
		return nil, fmt.Errorf("%w: GOOGLE_API_KEY and GOOGLE_CX are required", ErrMisconfigured)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		cx:       cfg.CX,
		num:      min(max(cfg.ResultsPerQuery, 1), 10),
		backoff:  cfg.RateLimitBackoff,
		http:     &http.Client{Timeout: timeout},
		log:      logging.OrNop(log).With("component", "search"),
		wait:     batch.Sleep,
	}, nil
}

// Search returns result links for query in ranking order.
func (c *Client) Search(ctx context.Context, query string) ([]string, error) {
	items, err := c.Items(ctx, query)
	if err != nil {
		return nil, err
	}
	links := make([]string, 0, len(items))
	for _, it := range items {
		if it.Link != "" {
			links = append(links, it.Link)
		}
	}
	return links, nil
}

// Items returns the raw results for query.
func (c *Client) Items(ctx context.Context, query string) ([]Item, error) {
	items, err := c.get(ctx, query)
	if RateLimited(err) && c.backoff > 0 {
		c.log.Warn("rate limited, retrying", "query", query, "backoff", c.backoff)
		if werr := c.wait(ctx, c.backoff); werr != nil {
			return nil, werr
		}
		items, err = c.get(ctx, query)
	}
	return items, err
}

func (c *Client) get(ctx context.Context, query string) ([]Item, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.cx)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(c.num))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded struct {
		Items []Item `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return decoded.Items, nil
}
