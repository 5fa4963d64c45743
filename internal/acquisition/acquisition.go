// Package acquisition fetches source pages in bounded batches and turns them into condensed,
// intent-focused units (first pass) or filtered raw documents (per-subtopic pass).
package acquisition

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"CurriculumSpider/internal/batch"
	"CurriculumSpider/internal/config"
	"CurriculumSpider/internal/domain"
	"CurriculumSpider/internal/logging"
	"CurriculumSpider/internal/ports"
	"CurriculumSpider/internal/prompts"
)

// Stage wires the page fetcher and the Oracle behind the batch executor.
type Stage struct {
	fetcher ports.PageFetcher
	oracle  ports.Oracle
	cfg     config.PipelineConfig
	log     *logging.Logger
}

// New builds a Stage.
func New(fetcher ports.PageFetcher, oracle ports.Oracle, cfg config.PipelineConfig, log *logging.Logger) *Stage {
	return &Stage{
		fetcher: fetcher,
		oracle:  oracle,
		cfg:     cfg,
		log:     logging.OrNop(log).With("component", "acquisition"),
	}
}

func (s *Stage) options(label string) batch.Options {
	return batch.Options{Concurrency: s.cfg.Concurrency, Delay: s.cfg.BatchDelay, Logger: s.log, Label: label}
}

// Condense fetches, cleans and condenses every unique URL. The result has one entry per unique
// URL in first-seen order; rejected or failed pages are absent.
func (s *Stage) Condense(ctx context.Context, urls []string, topic, intent string) []batch.Result[domain.CondensedUnit] {
	unique := UniqueURLs(urls)
	results := batch.Run(ctx, unique, func(ctx context.Context, _ int, url string) (domain.CondensedUnit, error) {
		return s.condense(ctx, url, topic, intent)
	}, s.options("condense"))

	s.log.Info("condensation finished", "urls", len(unique), "units", batch.Count(results))
	return results
}

func (s *Stage) condense(ctx context.Context, url, topic, intent string) (domain.CondensedUnit, error) {
	doc, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return domain.CondensedUnit{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	if n := utf8.RuneCountInString(doc.CleanedText); n < s.cfg.MinContentChars {
		return domain.CondensedUnit{}, fmt.Errorf("%w: %s has %d chars of content", batch.ErrSkipped, url, n)
	}

	content := prompts.Truncate(doc.CleanedText, s.cfg.MaxCondenseChars)
	reply, err := s.oracle.Generate(ctx, prompts.Condense(topic, intent, content))
	if err != nil {
		return domain.CondensedUnit{}, fmt.Errorf("condense %s: %w", url, err)
	}
	text := strings.TrimSpace(reply.Text)
	if text == "" || prompts.IsRejection(text) {
		return domain.CondensedUnit{}, fmt.Errorf("%w: %s rejected as irrelevant", batch.ErrSkipped, url)
	}
	return domain.CondensedUnit{SourceURL: url, Text: text}, nil
}

// Collect fetches and cleans every unique URL without condensing, dropping pages with less than
// the configured amount of text.
func (s *Stage) Collect(ctx context.Context, urls []string) []batch.Result[domain.SourceDocument] {
	unique := UniqueURLs(urls)
	results := batch.Run(ctx, unique, func(ctx context.Context, _ int, url string) (domain.SourceDocument, error) {
		doc, err := s.fetcher.Fetch(ctx, url)
		if err != nil {
			return domain.SourceDocument{}, fmt.Errorf("fetch %s: %w", url, err)
		}
		if n := utf8.RuneCountInString(doc.CleanedText); n <= s.cfg.MinCollectChars {
			return domain.SourceDocument{}, fmt.Errorf("%w: %s has %d chars of content", batch.ErrSkipped, url, n)
		}
		return doc, nil
	}, s.options("collect"))

	s.log.Debug("collection finished", "urls", len(unique), "documents", batch.Count(results))
	return results
}

// UniqueURLs drops blank and exact-duplicate URLs, keeping first-seen order.
func UniqueURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if strings.TrimSpace(u) == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
