// Package decompose turns a synthesized report into curriculum subtopics. Oversized reports are
// split in two and extracted in independent Oracle passes whose records are merged and deduped.
package decompose

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"CurriculumSpider/internal/batch"
	"CurriculumSpider/internal/config"
	"CurriculumSpider/internal/domain"
	"CurriculumSpider/internal/logging"
	"CurriculumSpider/internal/ports"
	"CurriculumSpider/internal/prompts"
)

// Decomposer extracts subtopic records from a report.
type Decomposer struct {
	oracle  ports.Oracle
	cfg     config.DecomposeConfig
	cascade []Strategy
	exec    batch.Options
	log     *logging.Logger
}

// Option customises a Decomposer.
type Option func(*Decomposer)

// WithCascade replaces the default parsing cascade.
func WithCascade(cascade []Strategy) Option {
	return func(d *Decomposer) { d.cascade = cascade }
}

// New builds a Decomposer. concurrency and delay bound the extraction passes.
func New(oracle ports.Oracle, cfg config.DecomposeConfig, concurrency int, delay time.Duration, log *logging.Logger, opts ...Option) *Decomposer {
	log = logging.OrNop(log).With("component", "decompose")
	d := &Decomposer{
		oracle:  oracle,
		cfg:     cfg,
		cascade: DefaultCascade(),
		exec:    batch.Options{Concurrency: concurrency, Delay: delay, Logger: log, Label: "extract"},
		log:     log,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decompose returns the merged, deduplicated subtopics of report. Failed passes contribute no
// records; a short result is logged but not treated as an error.
func (d *Decomposer) Decompose(ctx context.Context, topic, intent, report string) []domain.SubtopicRecord {
	parts := []string{report}
	if utf8.RuneCountInString(report) > d.cfg.Budget {
		if first, second, method, ok := Split(report, d.cfg.SplitRatio, d.cfg.LineSearchRadius); ok {
			parts = []string{first, second}
			d.log.Info("report split", "method", method, "chars", utf8.RuneCountInString(report),
				"first", utf8.RuneCountInString(first), "second", utf8.RuneCountInString(second))
		}
	}

	results := batch.Run(ctx, parts, func(ctx context.Context, index int, part string) ([]domain.SubtopicRecord, error) {
		return d.extract(ctx, index, topic, intent, part)
	}, d.exec)

	var merged []domain.SubtopicRecord
	for _, records := range batch.Values(results) {
		merged = append(merged, records...)
	}
	subtopics := Dedupe(merged)

	if len(subtopics) < d.cfg.MinSubtopics {
		d.log.Warn("fewer subtopics than expected", "count", len(subtopics), "expected", d.cfg.MinSubtopics)
	} else {
		d.log.Info("subtopics extracted", "count", len(subtopics), "passes", len(parts))
	}
	return subtopics
}

func (d *Decomposer) extract(ctx context.Context, index int, topic, intent, part string) ([]domain.SubtopicRecord, error) {
	reply, err := d.oracle.Generate(ctx, prompts.Subtopics(topic, intent, part))
	if err != nil {
		return nil, fmt.Errorf("extract part %d: %w", index, err)
	}
	records, strategy := Extract(reply.Text, d.cascade, d.cfg.MinSummaryChars)
	if len(records) == 0 {
		d.log.Warn("no subtopics recovered from reply", "part", index, "replyChars", len(reply.Text))
		return nil, nil
	}
	d.log.Debug("subtopics parsed", "part", index, "strategy", strategy, "count", len(records))
	return records, nil
}
