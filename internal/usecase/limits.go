package usecase

import (
	"context"

	"CurriculumSpider/internal/batch"
	"CurriculumSpider/internal/domain"
	"CurriculumSpider/internal/ports"
)

// limits holds one per-request Limiter per external collaborator, so nested stages (an
// investigation inside the subtopic executor, scoring inside the ranking executor) share the bound.
type limits struct {
	oracle, search, fetch, videos *batch.Limiter
}

func newLimits(n int) limits {
	return limits{
		oracle: batch.NewLimiter(n),
		search: batch.NewLimiter(n),
		fetch:  batch.NewLimiter(n),
		videos: batch.NewLimiter(n),
	}
}

type limitedOracle struct {
	next ports.Oracle
	lim  *batch.Limiter
}

func (o limitedOracle) Generate(ctx context.Context, messages []domain.Message) (domain.Completion, error) {
	return batch.Limit(ctx, o.lim, func(ctx context.Context) (domain.Completion, error) {
		return o.next.Generate(ctx, messages)
	})
}

type limitedSearch struct {
	next ports.WebSearch
	lim  *batch.Limiter
}

func (s limitedSearch) Search(ctx context.Context, query string) ([]string, error) {
	return batch.Limit(ctx, s.lim, func(ctx context.Context) ([]string, error) {
		return s.next.Search(ctx, query)
	})
}

type limitedFetcher struct {
	next ports.PageFetcher
	lim  *batch.Limiter
}

func (f limitedFetcher) Fetch(ctx context.Context, url string) (domain.SourceDocument, error) {
	return batch.Limit(ctx, f.lim, func(ctx context.Context) (domain.SourceDocument, error) {
		return f.next.Fetch(ctx, url)
	})
}

type limitedResources struct {
	next ports.ResourceSearch
	lim  *batch.Limiter
}

func (r limitedResources) Search(ctx context.Context, query string) ([]domain.CandidateResource, error) {
	return batch.Limit(ctx, r.lim, func(ctx context.Context) ([]domain.CandidateResource, error) {
		return r.next.Search(ctx, query)
	})
}

// limitResources wraps a channel; a nil channel stays nil so the ranking engine can skip it.
func limitResources(next ports.ResourceSearch, lim *batch.Limiter) ports.ResourceSearch {
	if next == nil {
		return nil
	}
	return limitedResources{next: next, lim: lim}
}
