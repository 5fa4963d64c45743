package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"CurriculumSpider/internal/config"
	"CurriculumSpider/internal/domain"
	"CurriculumSpider/internal/ports"
)

// ErrUnsupportedContent is returned for responses that are not HTML or plain text.
var ErrUnsupportedContent = errors.New("unsupported content type")

// noiseSelectors are removed before any text is read.
const noiseSelectors = "script, style, noscript, iframe, header, footer, nav, .ad, .advertisement, .sidebar"

// contentSelectors are tried in order; the first match holds the main text.
var contentSelectors = []string{"main", "article", ".content", ".post-content", ".entry-content", "body"}

// maxBodyBytes bounds how much of a response is parsed.
const maxBodyBytes = 5 << 20

// Fetcher downloads pages and reduces them to their main readable text.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxChars  int
}

var _ ports.PageFetcher = (*Fetcher)(nil)

// NewFetcher wires an HTTP client from configuration. client may be nil.
func NewFetcher(cfg config.FetchConfig, client *http.Client) *Fetcher {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{client: client, userAgent: cfg.UserAgent, maxChars: cfg.MaxPageChars}
}

// Fetch downloads pageURL and returns its raw and cleaned text.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (domain.SourceDocument, error) {
	doc, err := f.fetchDocument(ctx, pageURL)
	if err != nil {
		return domain.SourceDocument{}, err
	}

	raw := collapse(doc.Text())
	cleaned := Clean(doc)
	return domain.SourceDocument{
		URL:         pageURL,
		RawText:     raw,
		CleanedText: truncate(cleaned, f.maxChars),
	}, nil
}

func (f *Fetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") && !strings.HasPrefix(ct, "text/") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContent, ct)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// Clean strips navigation and advertising markup and returns the whitespace-collapsed text of
// the main content element. The document is modified in place.
func Clean(doc *goquery.Document) string {
	doc.Find(noiseSelectors).Remove()
	for _, selector := range contentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return collapse(sel.Text())
		}
	}
	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
