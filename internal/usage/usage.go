// Package usage accounts for Oracle calls made while serving one request.
package usage

import (
	"context"
	"sync/atomic"

	"CurriculumSpider/internal/domain"
	"CurriculumSpider/internal/ports"
)

// Meter wraps an Oracle and counts calls and tokens. It is safe for concurrent use.
type Meter struct {
	next       ports.Oracle
	calls      atomic.Int64
	failed     atomic.Int64
	prompt     atomic.Int64
	completion atomic.Int64
}

var _ ports.Oracle = (*Meter)(nil)

// NewMeter returns a Meter in front of next.
func NewMeter(next ports.Oracle) *Meter {
	return &Meter{next: next}
}

// Generate forwards to the wrapped Oracle and records the reported usage.
func (m *Meter) Generate(ctx context.Context, messages []domain.Message) (domain.Completion, error) {
	m.calls.Add(1)
	out, err := m.next.Generate(ctx, messages)
	if err != nil {
		m.failed.Add(1)
		return out, err
	}
	m.prompt.Add(out.Usage.PromptTokens)
	m.completion.Add(out.Usage.CompletionTokens)
	return out, nil
}

// Snapshot returns the totals recorded so far.
func (m *Meter) Snapshot() domain.TokenUsage {
	return domain.TokenUsage{
		Calls:            m.calls.Load(),
		PromptTokens:     m.prompt.Load(),
		CompletionTokens: m.completion.Load(),
	}
}

// Failed is the number of calls that returned an error.
func (m *Meter) Failed() int64 {
	return m.failed.Load()
}
