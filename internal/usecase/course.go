package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"CurriculumSpider/internal/acquisition"
	"CurriculumSpider/internal/batch"
	"CurriculumSpider/internal/config"
	"CurriculumSpider/internal/decompose"
	"CurriculumSpider/internal/domain"
	"CurriculumSpider/internal/logging"
	"CurriculumSpider/internal/ports"
	"CurriculumSpider/internal/prompts"
	"CurriculumSpider/internal/ranking"
	"CurriculumSpider/internal/usage"
)

// ErrNoSubtopics is the only failure that aborts curriculum generation.
var ErrNoSubtopics = errors.New("no subtopics could be extracted")

// ErrMissingTopic is returned when topic or intent is blank.
var ErrMissingTopic = errors.New("topic and intent are required")

// CourseDeps wires the driven adapters into the course pipeline.
type CourseDeps struct {
	Oracle    ports.Oracle
	Search    ports.WebSearch
	Fetcher   ports.PageFetcher
	Primary   ports.ResourceSearch
	Secondary ports.ResourceSearch
	Config    config.Config
	Logger    *logging.Logger
}

// Course turns a topic and intent into a curriculum.
type Course struct {
	oracle    ports.Oracle
	search    ports.WebSearch
	fetcher   ports.PageFetcher
	primary   ports.ResourceSearch
	secondary ports.ResourceSearch
	cfg       config.Config
	log       *logging.Logger
	wait      func(ctx context.Context, d time.Duration) error
}

// NewCourse constructs the pipeline.
func NewCourse(deps CourseDeps) *Course {
	return &Course{
		oracle:    deps.Oracle,
		search:    deps.Search,
		fetcher:   deps.Fetcher,
		primary:   deps.Primary,
		secondary: deps.Secondary,
		cfg:       deps.Config,
		log:       logging.OrNop(deps.Logger).With("component", "course"),
		wait:      batch.Sleep,
	}
}

// run holds the per-request collaborators. All Oracle traffic goes through one meter, and every
// collaborator is bounded by a limiter shared across nested stages.
type run struct {
	*Course
	topic, intent string
	meter         *usage.Meter
	stage         *acquisition.Stage
	log           *logging.Logger
}

// Generate runs foundation acquisition, synthesis, decomposition, investigation and ranking.
// Individual source, subtopic or video failures degrade the report instead of failing it.
func (c *Course) Generate(ctx context.Context, topic, intent string) (domain.CourseReport, error) {
	topic, intent = strings.TrimSpace(topic), strings.TrimSpace(intent)
	if topic == "" || intent == "" {
		return domain.CourseReport{}, ErrMissingTopic
	}

	started := time.Now()
	requestID := uuid.NewString()
	log := c.log.With("request", requestID, "topic", topic)
	meter := usage.NewMeter(c.oracle)
	lim := newLimits(c.cfg.Pipeline.Concurrency)
	bounded := *c
	bounded.oracle = limitedOracle{next: meter, lim: lim.oracle}
	bounded.search = limitedSearch{next: c.search, lim: lim.search}
	bounded.fetcher = limitedFetcher{next: c.fetcher, lim: lim.fetch}
	bounded.primary = limitResources(c.primary, lim.videos)
	bounded.secondary = limitResources(c.secondary, lim.videos)
	r := &run{
		Course: &bounded,
		topic:  topic,
		intent: intent,
		meter:  meter,
		stage:  acquisition.New(bounded.fetcher, bounded.oracle, c.cfg.Pipeline, log),
		log:    log,
	}
	log.Info("curriculum generation started", "intent", intent)

	urls := r.searchAll(ctx, r.foundationQueries(ctx))
	units := batch.Values(r.stage.Condense(ctx, urls, topic, intent))
	log.Info("foundation acquired", "urls", len(urls), "units", len(units))

	report := r.synthesize(ctx, units)
	var subtopics []domain.SubtopicRecord
	if report != "" {
		subtopics = decompose.New(r.oracle, c.cfg.Decompose, c.cfg.Pipeline.Concurrency, c.cfg.Pipeline.BatchDelay, log).
			Decompose(ctx, topic, intent, report)
	}
	if len(subtopics) == 0 {
		log.Error("curriculum generation failed", "error", ErrNoSubtopics, "units", len(units))
		return domain.CourseReport{}, ErrNoSubtopics
	}

	investigations := batch.Run(ctx, subtopics, func(ctx context.Context, _ int, sub domain.SubtopicRecord) (domain.SubtopicInvestigation, error) {
		return r.investigate(ctx, sub), nil
	}, batch.Options{Concurrency: c.cfg.Pipeline.Concurrency, Delay: c.cfg.Pipeline.BatchDelay, Logger: log, Label: "investigate"})

	engine := ranking.New(r.oracle, r.primary, r.secondary, c.cfg.Ranking, c.cfg.Pipeline.StaggerWindow, log,
		ranking.WithScoreConcurrency(c.cfg.Pipeline.Concurrency))
	selections := batch.Run(ctx, subtopics, func(ctx context.Context, i int, sub domain.SubtopicRecord) (domain.RankedSelection, error) {
		summary := sub.Summary
		if investigations[i].Present {
			summary = investigations[i].Value.Summary
		}
		return engine.Select(ctx, ranking.Subject{Topic: topic, Subtopic: sub.Title, Summary: summary}), nil
	}, batch.Options{Concurrency: c.cfg.Ranking.Concurrency, Delay: c.cfg.Pipeline.BatchDelay, Logger: log, Label: "rank"})

	results := make([]domain.SubtopicResult, len(subtopics))
	videos := 0
	for i, sub := range subtopics {
		results[i] = domain.SubtopicResult{Subtopic: sub.Title, Summary: sub.Summary, Report: placeholderReport(sub.Title)}
		if investigations[i].Present {
			results[i].Report = investigations[i].Value.Report
			results[i].Summary = investigations[i].Value.Summary
		}

		reason := "video ranking did not complete"
		if sel := selections[i]; sel.Present {
			reason = sel.Value.Reason
			if sel.Value.Found {
				videoURL := sel.Value.Candidate.URL
				results[i].VideoURL = &videoURL
				videos++
			}
		}
		if reason != "" {
			results[i].Reason = &reason
		}
	}

	elapsed := time.Since(started)
	out := domain.CourseReport{
		RequestID:             requestID,
		Topic:                 topic,
		Intent:                intent,
		ProcessingTimeSeconds: int64(elapsed.Round(time.Second) / time.Second),
		Subtopics:             results,
		Usage:                 meter.Snapshot(),
	}
	log.Info("curriculum generation finished",
		"subtopics", len(results), "videos", videos, "elapsed", elapsed, "oracleCalls", out.Usage.Calls, "tokens", out.Usage.Total())
	return out, nil
}

func (r *run) foundationQueries(ctx context.Context) []string {
	reply, err := r.oracle.Generate(ctx, prompts.FoundationQueries(r.topic, r.intent))
	if err == nil {
		if queries := prompts.QueryLines(reply.Text, 8); len(queries) > 0 {
			return queries
		}
		err = errors.New("reply holds no queries")
	}
	r.log.Warn("falling back to templated foundation queries", "error", err)
	return prompts.FallbackFoundationQueries(r.topic)
}

// searchAll runs the queries concurrently with starts spread over the stagger window and
// returns the unique result URLs in query order. Failed searches contribute nothing.
func (r *run) searchAll(ctx context.Context, queries []string) []string {
	perQuery := make([][]string, len(queries))
	var g errgroup.Group
	for i, query := range queries {
		offset := r.cfg.Pipeline.StaggerWindow * time.Duration(i) / time.Duration(len(queries))
		g.Go(func() error {
			if offset > 0 {
				if err := r.wait(ctx, offset); err != nil {
					return nil
				}
			}
			links, err := r.search.Search(ctx, query)
			if err != nil {
				r.log.Warn("web search failed", "query", query, "error", err)
				return nil
			}
			perQuery[i] = links
			return nil
		})
	}
	_ = g.Wait()

	var urls []string
	for _, links := range perQuery {
		urls = append(urls, links...)
	}
	return acquisition.UniqueURLs(urls)
}

func (r *run) synthesize(ctx context.Context, units []domain.CondensedUnit) string {
	if len(units) == 0 {
		r.log.Warn("nothing to synthesize")
		return ""
	}
	parts := make([]string, len(units))
	for i, u := range units {
		parts[i] = fmt.Sprintf("Source %d (%s):\n%s", i+1, u.SourceURL, u.Text)
	}
	combined := prompts.Truncate(strings.Join(parts, "\n\n---\n\n"), r.cfg.Pipeline.MaxSynthesisChars)

	reply, err := r.oracle.Generate(ctx, prompts.Synthesis(r.topic, r.intent, len(units), combined))
	if err != nil {
		r.log.Error("synthesis failed", "error", err)
		return ""
	}
	return strings.TrimSpace(reply.Text)
}

// investigate researches one subtopic. It always returns a usable investigation: missing
// sources or failed Oracle calls yield placeholder text.
func (r *run) investigate(ctx context.Context, sub domain.SubtopicRecord) domain.SubtopicInvestigation {
	out := domain.SubtopicInvestigation{Subtopic: sub.Title, Report: placeholderReport(sub.Title), Summary: sub.Summary}
	log := r.log.With("subtopic", sub.Title)

	n := max(r.cfg.Pipeline.InvestigateQuery, 1)
	var queries []string
	reply, err := r.oracle.Generate(ctx, prompts.InvestigationQueries(sub.Title, r.topic, r.intent, n))
	if err == nil {
		queries = prompts.QueryLines(reply.Text, n)
	}
	if len(queries) == 0 {
		queries = fallbackInvestigationQueries(sub.Title, r.topic)
		queries = queries[:min(n, len(queries))]
	}

	docs := batch.Values(r.stage.Collect(ctx, r.searchAll(ctx, queries)))
	if len(docs) == 0 {
		log.Warn("no sources collected for subtopic")
		return out
	}
	blocks := make([]string, len(docs))
	for i, d := range docs {
		blocks[i] = fmt.Sprintf("Source: %s\n%s", d.URL, d.CleanedText)
	}
	sources := strings.Join(blocks, "\n\n")

	var g errgroup.Group
	g.Go(func() error {
		material := prompts.Truncate(sources, r.cfg.Pipeline.MaxReportChars)
		reply, err := r.oracle.Generate(ctx, prompts.SubtopicReport(sub.Title, r.topic, r.intent, material))
		if err != nil || strings.TrimSpace(reply.Text) == "" {
			log.Warn("subtopic report failed", "error", err)
			return nil
		}
		out.Report = strings.TrimSpace(reply.Text)
		return nil
	})
	g.Go(func() error {
		material := prompts.Truncate(sources, r.cfg.Pipeline.MaxSummaryChars)
		reply, err := r.oracle.Generate(ctx, prompts.SearchSummary(sub.Title, r.topic, r.intent, material))
		if err != nil || strings.TrimSpace(reply.Text) == "" {
			log.Warn("search summary failed", "error", err)
			return nil
		}
		out.Summary = strings.TrimSpace(reply.Text)
		return nil
	})
	_ = g.Wait()

	log.Debug("subtopic investigated", "sources", len(docs))
	return out
}

func fallbackInvestigationQueries(subtopic, topic string) []string {
	return []string{
		subtopic + " " + topic + " fundamentals",
		subtopic + " tutorial examples",
		subtopic + " advanced techniques",
	}
}

func placeholderReport(subtopic string) string {
	return fmt.Sprintf("No detailed report could be produced for %q. Use the summary as the starting point for this subtopic.", subtopic)
}
