// Package ranking finds and scores instructional videos for one subtopic.
//
// Candidates are gathered from a primary and a secondary channel under staggered, concurrent
// queries, filtered and deduplicated, then scored in small batches. Scoring stops early once a
// good enough candidate has been seen.
package ranking

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"CurriculumSpider/internal/batch"
	"CurriculumSpider/internal/config"
	"CurriculumSpider/internal/domain"
	"CurriculumSpider/internal/logging"
	"CurriculumSpider/internal/ports"
	"CurriculumSpider/internal/prompts"
)

// Subject is what the engine ranks videos for.
type Subject struct {
	Topic    string
	Subtopic string
	Summary  string
}

// Engine selects the best candidate for a subject.
type Engine struct {
	oracle    ports.Oracle
	primary   ports.ResourceSearch
	secondary ports.ResourceSearch
	cfg       config.RankingConfig
	stagger   time.Duration
	log       *logging.Logger
	wait      func(ctx context.Context, d time.Duration) error
	scoreCap  int
}

// Option customises an Engine.
type Option func(*Engine)

// WithWait replaces the context-aware sleep used for staggering and batch delays.
func WithWait(wait func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.wait = wait }
}

// WithScoreConcurrency caps how many candidates of a batch are scored at once.
func WithScoreConcurrency(n int) Option {
	return func(e *Engine) { e.scoreCap = n }
}

// New builds an Engine. secondary may be nil. stagger is the window across which query starts
// are spread.
func New(oracle ports.Oracle, primary, secondary ports.ResourceSearch, cfg config.RankingConfig, stagger time.Duration, log *logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		oracle:    oracle,
		primary:   primary,
		secondary: secondary,
		cfg:       cfg,
		stagger:   stagger,
		log:       logging.OrNop(log).With("component", "ranking"),
		wait:      batch.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Select returns the highest-scoring acceptable candidate, or a "no acceptable candidate"
// selection with the reason.
func (e *Engine) Select(ctx context.Context, subject Subject) domain.RankedSelection {
	log := e.log.With("subtopic", subject.Subtopic)

	queries := e.queries(ctx, subject)
	pool := e.gather(ctx, queries)
	candidates := Prepare(pool, e.cfg.MinDurationSeconds, e.cfg.MaxCandidates)
	log.Info("candidates gathered", "queries", len(queries), "found", len(pool), "eligible", len(candidates))

	if len(candidates) == 0 {
		return domain.NoSelection("no candidates found", 0)
	}

	scored := e.score(ctx, subject, candidates, log)
	return choose(scored, e.cfg.Accept)
}

func (e *Engine) queries(ctx context.Context, subject Subject) []string {
	reply, err := e.oracle.Generate(ctx, prompts.VideoQueries(subject.Topic, subject.Subtopic, subject.Summary))
	if err == nil {
		var queries []string
		if queries, err = prompts.StringArray(reply.Text); err == nil {
			return queries
		}
	}
	e.log.Warn("falling back to templated video queries", "subtopic", subject.Subtopic, "error", err)
	return prompts.FallbackVideoQueries(subject.Topic, subject.Subtopic)
}

// gather issues the queries concurrently, their starts spread across the stagger window. A query
// whose turn comes once the pool is full is not issued. Results keep query order.
func (e *Engine) gather(ctx context.Context, queries []string) []domain.CandidateResource {
	perQuery := make([][]domain.CandidateResource, len(queries))
	var size atomic.Int64

	var g errgroup.Group
	for i, query := range queries {
		offset := e.stagger * time.Duration(i) / time.Duration(len(queries))
		g.Go(func() error {
			if offset > 0 {
				if err := e.wait(ctx, offset); err != nil {
					return nil
				}
			}
			if ctx.Err() != nil || size.Load() >= int64(e.cfg.TargetPool) {
				return nil
			}
			found := e.hybrid(ctx, query)
			perQuery[i] = found
			size.Add(int64(len(found)))
			return nil
		})
	}
	_ = g.Wait()

	var pool []domain.CandidateResource
	for _, found := range perQuery {
		pool = append(pool, found...)
	}
	return pool
}

// hybrid asks the primary channel and tops up from the secondary one when the primary returns
// too little.
func (e *Engine) hybrid(ctx context.Context, query string) []domain.CandidateResource {
	var out []domain.CandidateResource
	primary, err := e.primary.Search(ctx, query)
	if err != nil {
		e.log.Warn("primary search failed", "query", query, "error", err)
	}
	for _, c := range primary {
		c.Origin = domain.OriginPrimary
		out = append(out, c)
	}
	if len(primary) >= e.cfg.MinPrimary || e.secondary == nil {
		return out
	}

	secondary, err := e.secondary.Search(ctx, query)
	if err != nil {
		e.log.Warn("secondary search failed", "query", query, "error", err)
	}
	for _, c := range secondary {
		c.Origin = domain.OriginSecondary
		out = append(out, c)
	}
	return out
}

// Prepare drops short videos of known duration, removes duplicates (first occurrence wins) and
// caps the pool. Unknown durations are kept.
func Prepare(pool []domain.CandidateResource, minDuration, limit int) []domain.CandidateResource {
	seen := make(map[string]struct{}, len(pool))
	out := make([]domain.CandidateResource, 0, min(len(pool), max(limit, 0)))
	for _, c := range pool {
		if c.DurationSeconds > 0 && c.DurationSeconds < minDuration {
			continue
		}
		key := c.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

type scoredCandidate struct {
	candidate domain.CandidateResource
	order     int
}

func (e *Engine) score(ctx context.Context, subject Subject, candidates []domain.CandidateResource, log *logging.Logger) []scoredCandidate {
	var (
		scored []scoredCandidate
		best   float64
	)
	chunks := batch.Chunks(candidates, e.cfg.BatchSize)
	for n, chunk := range chunks {
		if n > 0 {
			if err := e.wait(ctx, e.cfg.BatchDelay); err != nil {
				log.Warn("scoring interrupted", "batches", n, "error", err)
				break
			}
		}

		offset := n * max(e.cfg.BatchSize, 1)
		results := batch.Run(ctx, chunk, func(ctx context.Context, _ int, c domain.CandidateResource) (domain.CandidateResource, error) {
			return e.evaluate(ctx, subject, c)
		}, batch.Options{Concurrency: e.scoreConcurrency(len(chunk)), Logger: log, Label: "score"})

		for i, r := range results {
			if !r.Present {
				continue
			}
			scored = append(scored, scoredCandidate{candidate: r.Value, order: offset + i})
			best = max(best, r.Value.Score)
		}

		done := n + 1
		if best >= e.cfg.Excellent || (done >= 2 && best >= e.cfg.Good) {
			if done < len(chunks) {
				log.Info("stopping early", "batches", done, "best", best)
			}
			break
		}
	}
	return scored
}

func (e *Engine) scoreConcurrency(batchLen int) int {
	if e.scoreCap > 0 {
		return min(batchLen, e.scoreCap)
	}
	return batchLen
}

func (e *Engine) evaluate(ctx context.Context, subject Subject, c domain.CandidateResource) (domain.CandidateResource, error) {
	reply, err := e.oracle.Generate(ctx, prompts.ScoreCandidate(subject.Subtopic, subject.Summary, c))
	if err != nil {
		return c, fmt.Errorf("score %s: %w", c.Key(), err)
	}
	score, reason, err := prompts.Score(reply.Text)
	if err != nil {
		return c, fmt.Errorf("score %s: %w", c.Key(), err)
	}
	c.Score, c.ScoreReason = score, reason
	return c, nil
}

// choose returns the maximum score, ties broken by discovery order, provided it meets accept.
func choose(scored []scoredCandidate, accept float64) domain.RankedSelection {
	if len(scored) == 0 {
		return domain.NoSelection("no candidate could be evaluated", 0)
	}
	best := scored[0]
	for _, s := range scored[1:] {
		if s.candidate.Score > best.candidate.Score ||
			(s.candidate.Score == best.candidate.Score && s.order < best.order) {
			best = s
		}
	}
	if best.candidate.Score < accept {
		return domain.NoSelection(
			fmt.Sprintf("best score %.1f is below the acceptance threshold %.1f", best.candidate.Score, accept),
			len(scored))
	}
	return domain.RankedSelection{
		Candidate: best.candidate,
		Found:     true,
		Reason:    best.candidate.ScoreReason,
		Evaluated: len(scored),
	}
}
