package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"CurriculumSpider/internal/config"
)

const page = `<html><head><style>.x{}</style><script>var tracking = 1;</script></head>
<body>
  <header>Site header</header>
  <nav>Home | About</nav>
  <div class="sidebar">Popular posts</div>
  <article>
    <h1>Learning   scales</h1>
    <p>Scales are the
       building blocks of melody.</p>
    <div class="ad">Buy a piano!</div>
  </article>
  <footer>Copyright</footer>
</body></html>`

func TestClean(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	got := Clean(doc)
	want := "Learning scales Scales are the building blocks of melody."
	if got != want {
		t.Fatalf("Clean() = %q, want %q", got, want)
	}
}

func TestCleanPrefersMainOverArticle(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<body><article>teaser</article><main>main text <nav>menu</nav></main></body>`))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	if got := Clean(doc); got != "main text" {
		t.Fatalf("Clean() = %q", got)
	}
}

func TestFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "spider-test" {
			t.Errorf("unexpected user agent %q", ua)
		}
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(page))
		case "/pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher(config.FetchConfig{UserAgent: "spider-test", MaxPageChars: 15}, srv.Client())

	doc, err := f.Fetch(context.Background(), srv.URL+"/page")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if doc.CleanedText != "Learning scales" {
		t.Fatalf("unexpected cleaned text %q", doc.CleanedText)
	}
	if !strings.Contains(doc.RawText, "Site header") {
		t.Fatalf("raw text should keep the whole page, got %q", doc.RawText)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/pdf"); !errors.Is(err, ErrUnsupportedContent) {
		t.Fatalf("expected ErrUnsupportedContent, got %v", err)
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/missing"); err == nil {
		t.Fatal("expected error for 404")
	}
}
