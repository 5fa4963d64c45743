package ports

import (
	"context"
	"time"

	"CurriculumSpider/internal/domain"
)

// Oracle turns prompt messages into free text (OpenAI, Azure OpenAI, Gemini).
type Oracle interface {
	Generate(ctx context.Context, messages []domain.Message) (domain.Completion, error)
}

// WebSearch returns result URLs for a query in ranking order.
type WebSearch interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// PageFetcher downloads a page and strips boilerplate markup.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (domain.SourceDocument, error)
}

// ResourceSearch is one candidate channel for instructional videos.
type ResourceSearch interface {
	Search(ctx context.Context, query string) ([]domain.CandidateResource, error)
}

// SessionStore keeps per-session conversation history for the intent agent.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) ([]domain.Message, error)
	Append(ctx context.Context, sessionID string, messages ...domain.Message) error
	Evict(ctx context.Context, now time.Time) (int, error)
}

// Scheduler controls periodic background jobs.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
