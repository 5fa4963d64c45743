package usecase

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CurriculumSpider/internal/domain"
)

func newCourse(oracle *scriptedOracle, search *fakeSearch, fetcher *fakeFetcher, videos *fakeVideos) *Course {
	return NewCourse(CourseDeps{
		Oracle:    oracle,
		Search:    search,
		Fetcher:   fetcher,
		Primary:   videos,
		Secondary: &fakeVideos{empty: true},
		Config:    testConfig(),
	})
}

func TestGenerateBuildsCurriculum(t *testing.T) {
	t.Parallel()

	oracle := &scriptedOracle{}
	search := &fakeSearch{results: map[string][]string{
		"q1": {"https://a.example.com", "https://b.example.com"},
		"q2": {"https://b.example.com", "https://c.example.com"},
	}}

	report, err := newCourse(oracle, search, &fakeFetcher{}, &fakeVideos{}).Generate(context.Background(), " piano ", "beginner")
	require.NoError(t, err)

	assert.Equal(t, "piano", report.Topic)
	assert.NotEmpty(t, report.RequestID)
	require.Len(t, report.Subtopics, 3)
	for _, sub := range report.Subtopics {
		assert.Equal(t, "report for "+sub.Subtopic, sub.Report)
		assert.Equal(t, "keyword dense summary", sub.Summary, "the investigation summary is reported")
		require.NotNil(t, sub.VideoURL, sub.Subtopic)
		assert.Equal(t, "https://www.youtube.com/watch?v=vq-0", *sub.VideoURL)
		require.NotNil(t, sub.Reason, "the score reason of the chosen video is kept")
		assert.Equal(t, "clear", *sub.Reason)
	}

	assert.Equal(t, 3, oracle.count("condense"), "duplicate urls are condensed once")
	assert.Equal(t, 1, oracle.count("synthesis"))
	assert.Equal(t, 1, oracle.count("subtopics"))
	assert.Equal(t, 3, oracle.count("report"))
	assert.Equal(t, 3, oracle.count("summary"))
	assert.Equal(t, oracle.calls.Load(), report.Usage.Calls)
	assert.Equal(t, 10*report.Usage.Calls, report.Usage.PromptTokens)
}

func TestGenerateFallsBackToTemplatedQueries(t *testing.T) {
	t.Parallel()

	oracle := &scriptedOracle{overrides: map[string]func(string) (string, error){
		"foundationQueries": func(string) (string, error) { return "", errors.New("timeout") },
	}}
	search := &fakeSearch{}

	_, err := newCourse(oracle, search, &fakeFetcher{}, &fakeVideos{}).Generate(context.Background(), "piano", "beginner")
	require.NoError(t, err)
	assert.Contains(t, search.queries, "piano fundamentals guide")
	assert.Contains(t, search.queries, "piano advanced techniques")
}

func TestGenerateToleratesFailedSearches(t *testing.T) {
	t.Parallel()

	oracle := &scriptedOracle{}
	search := &fakeSearch{fail: map[string]error{"q1": errors.New("429 too many requests")}}

	report, err := newCourse(oracle, search, &fakeFetcher{}, &fakeVideos{}).Generate(context.Background(), "piano", "beginner")
	require.NoError(t, err)
	assert.Len(t, report.Subtopics, 3)
	assert.Equal(t, 1, oracle.count("condense"))
}

func TestGenerateFailsWithoutSubtopics(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		oracle  *scriptedOracle
		fetcher *fakeFetcher
	}{
		"unparseable decomposition": {
			oracle: &scriptedOracle{overrides: map[string]func(string) (string, error){
				"subtopics": func(string) (string, error) { return "I cannot do that.", nil },
			}},
			fetcher: &fakeFetcher{},
		},
		"synthesis failure": {
			oracle: &scriptedOracle{overrides: map[string]func(string) (string, error){
				"synthesis": func(string) (string, error) { return "", errors.New("boom") },
			}},
			fetcher: &fakeFetcher{},
		},
		"no sources": {
			oracle:  &scriptedOracle{},
			fetcher: &fakeFetcher{fail: true},
		},
		"every page rejected": {
			oracle: &scriptedOracle{overrides: map[string]func(string) (string, error){
				"condense": func(string) (string, error) { return "OFF_TOPIC", nil },
			}},
			fetcher: &fakeFetcher{},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := newCourse(tt.oracle, &fakeSearch{}, tt.fetcher, &fakeVideos{}).Generate(context.Background(), "piano", "beginner")
			assert.ErrorIs(t, err, ErrNoSubtopics)
			assert.Zero(t, tt.oracle.count("report"), "no investigation after a fatal error")
		})
	}
}

func TestGenerateDegradesPerSubtopic(t *testing.T) {
	t.Parallel()

	oracle := &scriptedOracle{overrides: map[string]func(string) (string, error){
		"report": func(body string) (string, error) {
			if strings.Contains(body, "Major Scales") {
				return "", errors.New("content filter")
			}
			return "fine report", nil
		},
	}}

	report, err := newCourse(oracle, &fakeSearch{}, &fakeFetcher{}, &fakeVideos{empty: true}).Generate(context.Background(), "piano", "beginner")
	require.NoError(t, err)
	require.Len(t, report.Subtopics, 3)

	byTitle := map[string]domain.SubtopicResult{}
	for _, sub := range report.Subtopics {
		byTitle[sub.Subtopic] = sub
	}
	assert.Contains(t, byTitle["Major Scales"].Report, "No detailed report")
	assert.Equal(t, "fine report", byTitle["Reading Notes"].Report)
	for _, sub := range report.Subtopics {
		assert.Nil(t, sub.VideoURL)
		require.NotNil(t, sub.Reason)
		assert.Equal(t, "no candidates found", *sub.Reason)
	}
	assert.Zero(t, oracle.count("score"))
}

func TestGenerateRejectsBlankInput(t *testing.T) {
	t.Parallel()

	_, err := newCourse(&scriptedOracle{}, &fakeSearch{}, &fakeFetcher{}, &fakeVideos{}).Generate(context.Background(), "piano", "  ")
	assert.ErrorIs(t, err, ErrMissingTopic)
}

type peakTracker struct {
	inFlight atomic.Int64
	peak     atomic.Int64
}

func (p *peakTracker) enter() func() {
	n := p.inFlight.Add(1)
	for {
		cur := p.peak.Load()
		if n <= cur || p.peak.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(3 * time.Millisecond)
	return func() { p.inFlight.Add(-1) }
}

type trackedFetcher struct {
	fakeFetcher
	peakTracker
}

func (f *trackedFetcher) Fetch(ctx context.Context, url string) (domain.SourceDocument, error) {
	defer f.enter()()
	return f.fakeFetcher.Fetch(ctx, url)
}

type trackedOracle struct {
	*scriptedOracle
	peakTracker
}

func (o *trackedOracle) Generate(ctx context.Context, messages []domain.Message) (domain.Completion, error) {
	defer o.enter()()
	return o.scriptedOracle.Generate(ctx, messages)
}

func TestGenerateBoundsOutstandingCalls(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	limit := int64(cfg.Pipeline.Concurrency)
	fetcher := &trackedFetcher{}
	scripted := &scriptedOracle{overrides: map[string]func(string) (string, error){
		"score": func(string) (string, error) { return `{"score": 6, "reason": "acceptable"}`, nil },
	}}
	oracle := &trackedOracle{scriptedOracle: scripted}

	report, err := NewCourse(CourseDeps{
		Oracle:  oracle,
		Search:  &fakeSearch{},
		Fetcher: fetcher,
		Primary: &fakeVideos{},
		Config:  cfg,
	}).Generate(context.Background(), "piano", "beginner")
	require.NoError(t, err)
	require.Len(t, report.Subtopics, 3)

	assert.Equal(t, 15, scripted.count("score"), "every subtopic scores its whole pool")
	assert.LessOrEqual(t, fetcher.peak.Load(), limit, "fetches across nested investigations")
	assert.LessOrEqual(t, oracle.peak.Load(), limit, "oracle calls across concurrent rankings")
	for _, sub := range report.Subtopics {
		require.NotNil(t, sub.Reason)
		assert.Equal(t, "acceptable", *sub.Reason)
	}
}
