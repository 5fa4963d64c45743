package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"CurriculumSpider/internal/config"
	"CurriculumSpider/internal/domain"
)

const longSummary = "This subtopic covers the core ideas a learner needs before moving on, with practical exercises and checkpoints."

// scriptedOracle answers each pipeline prompt by recognising its system message.
type scriptedOracle struct {
	mu        sync.Mutex
	overrides map[string]func(body string) (string, error)
	calls     atomic.Int64
	seen      []string
}

func (o *scriptedOracle) Generate(_ context.Context, messages []domain.Message) (domain.Completion, error) {
	o.calls.Add(1)
	system, body := messages[0].Content, messages[len(messages)-1].Content
	kind := classify(system)

	o.mu.Lock()
	o.seen = append(o.seen, kind)
	override := o.overrides[kind]
	o.mu.Unlock()

	var (
		text string
		err  error
	)
	if override != nil {
		text, err = override(body)
	} else {
		text, err = defaultReply(kind, body)
	}
	if err != nil {
		return domain.Completion{}, err
	}
	return domain.Completion{Text: text, Usage: domain.TokenUsage{Calls: 1, PromptTokens: 10, CompletionTokens: 5}}, nil
}

func (o *scriptedOracle) count(kind string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, k := range o.seen {
		if k == kind {
			n++
		}
	}
	return n
}

func classify(system string) string {
	switch {
	case strings.Contains(system, "Rate how well"):
		return "score"
	case strings.Contains(system, "video search queries"):
		return "videoQueries"
	case strings.Contains(system, "study one subtopic"):
		return "investigationQueries"
	case strings.Contains(system, "text-rich educational pages"):
		return "foundationQueries"
	case strings.Contains(system, "extract teachable material"):
		return "condense"
	case strings.Contains(system, "curriculum-ready knowledge report"):
		return "synthesis"
	case strings.Contains(system, "design learning curricula"):
		return "subtopics"
	case strings.Contains(system, "focused educational report"):
		return "report"
	case strings.Contains(system, "Summarise the subtopic"):
		return "summary"
	case strings.Contains(system, "help a learner"):
		return "intent"
	default:
		return "unknown"
	}
}

func defaultReply(kind, body string) (string, error) {
	switch kind {
	case "foundationQueries":
		return "1. q1\n2. q2", nil
	case "condense":
		return "digest of the page", nil
	case "synthesis":
		return "# Knowledge Report: piano\n## 1. CORE FOUNDATIONS\n- notes\n## 3. PRACTICAL APPLICATIONS\n- songs", nil
	case "subtopics":
		var b strings.Builder
		for _, title := range []string{"Reading Notes", "Major Scales", "Chord Inversions"} {
			fmt.Fprintf(&b, "SUBTOPIC_START\nTitle: %s\nSummary: %s\nSUBTOPIC_END\n", title, longSummary)
		}
		return b.String(), nil
	case "investigationQueries":
		return "iq1\niq2\niq3", nil
	case "report":
		subtopic, _, _ := strings.Cut(strings.TrimPrefix(body, "Subtopic: "), "\n")
		return "report for " + subtopic, nil
	case "summary":
		return "keyword dense summary", nil
	case "videoQueries":
		return `["vq"]`, nil
	case "score":
		return `{"score": 9, "reason": "clear"}`, nil
	}
	return "", errors.New("unexpected prompt")
}

type fakeSearch struct {
	mu      sync.Mutex
	results map[string][]string
	fail    map[string]error
	queries []string
}

func (f *fakeSearch) Search(_ context.Context, query string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if err := f.fail[query]; err != nil {
		return nil, err
	}
	if links, ok := f.results[query]; ok {
		return links, nil
	}
	return []string{"https://docs.example.com/" + strings.ReplaceAll(query, " ", "-")}, nil
}

type fakeFetcher struct {
	fail bool
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (domain.SourceDocument, error) {
	if f.fail {
		return domain.SourceDocument{}, errors.New("network down")
	}
	text := strings.Repeat("substantial explanatory text ", 40)
	return domain.SourceDocument{URL: url, RawText: text, CleanedText: text}, nil
}

type fakeVideos struct {
	empty bool
}

func (f *fakeVideos) Search(_ context.Context, query string) ([]domain.CandidateResource, error) {
	if f.empty {
		return nil, nil
	}
	out := make([]domain.CandidateResource, 5)
	for i := range out {
		id := fmt.Sprintf("%s-%d", query, i)
		out[i] = domain.CandidateResource{ID: id, Title: id, URL: "https://www.youtube.com/watch?v=" + id, DurationSeconds: 600}
	}
	return out, nil
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Pipeline.BatchDelay = 0
	cfg.Pipeline.StaggerWindow = 0
	cfg.Ranking.BatchDelay = 0
	return cfg
}
