// Package youtube is the primary candidate channel: it reads the public YouTube results page
// and reports durations and view counts alongside each video.
package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"CurriculumSpider/internal/batch"
	"CurriculumSpider/internal/config"
	"CurriculumSpider/internal/domain"
	"CurriculumSpider/internal/logging"
	"CurriculumSpider/internal/ports"
)

const (
	maxPageBytes = 8 << 20
	retryDelay   = time.Second
)

// Scraper implements ports.ResourceSearch over the results page.
type Scraper struct {
	baseURL   string
	userAgent string
	attempts  int
	client    *http.Client
	log       *logging.Logger
	wait      func(ctx context.Context, d time.Duration) error
}

var _ ports.ResourceSearch = (*Scraper)(nil)

// NewScraper builds a Scraper. client may be nil.
func NewScraper(search config.SearchConfig, fetch config.FetchConfig, client *http.Client, log *logging.Logger) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: fetch.Timeout}
	}
	return &Scraper{
		baseURL:   search.YouTubeURL,
		userAgent: fetch.UserAgent,
		attempts:  max(search.YouTubeAttempts, 1),
		client:    client,
		log:       logging.OrNop(log).With("component", "youtube"),
		wait:      batch.Sleep,
	}
}

// Search returns the videos listed for query, deduplicated by id, in page order.
func (s *Scraper) Search(ctx context.Context, query string) ([]domain.CandidateResource, error) {
	var (
		videos []Video
		err    error
	)
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if attempt > 1 {
			if werr := s.wait(ctx, retryDelay); werr != nil {
				return nil, werr
			}
		}
		videos, err = s.page(ctx, query)
		if err == nil {
			break
		}
		s.log.Debug("results page unusable", "query", query, "attempt", attempt, "error", err)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(videos))
	out := make([]domain.CandidateResource, 0, len(videos))
	for _, v := range videos {
		if _, dup := seen[v.ID]; dup {
			continue
		}
		seen[v.ID] = struct{}{}
		out = append(out, domain.CandidateResource{
			ID:              v.ID,
			Title:           v.Title,
			URL:             "https://www.youtube.com/watch?v=" + v.ID,
			SourceChannel:   v.Channel,
			Snippet:         v.Description,
			Views:           v.Views,
			DurationSeconds: v.Duration,
			Origin:          domain.OriginPrimary,
		})
	}
	return out, nil
}

func (s *Scraper) page(ctx context.Context, query string) ([]Video, error) {
	pageURL := s.baseURL + "?" + url.Values{"search_query": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request results page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("results page returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read results page: %w", err)
	}
	return ParseResults(string(body))
}
