package decompose

import (
	"regexp"
	"strings"

	"CurriculumSpider/internal/domain"
)

// Strategy recovers subtopic records from free text. Parse must be pure.
type Strategy struct {
	Name  string
	Parse func(text string, minSummary int) []domain.SubtopicRecord
}

// DefaultCascade is ordered from the strictest format to the most forgiving one.
func DefaultCascade() []Strategy {
	return []Strategy{
		{Name: "markers", Parse: parseMarkers},
		{Name: "labels", Parse: parseLabels},
		{Name: "paragraphs", Parse: parseParagraphs},
	}
}

// Extract runs the cascade and stops at the first strategy that yields records.
// The returned name is empty when no strategy produced anything.
func Extract(text string, cascade []Strategy, minSummary int) ([]domain.SubtopicRecord, string) {
	for _, s := range cascade {
		if records := s.Parse(text, minSummary); len(records) > 0 {
			return records, s.Name
		}
	}
	return nil, ""
}

var (
	markerBlock = regexp.MustCompile(`(?is)SUBTOPIC_START\s*Title:\s*(.+?)\s*Summary:\s*(.*?)\s*SUBTOPIC_END`)
	labelLine   = regexp.MustCompile(`(?im)^[ \t]*(?:[-*]\s*)?(?:\*\*)?(title|subtopic|summary)(?:\*\*)?[ \t]*:[ \t]*(?:\*\*)?`)
	markerToken = regexp.MustCompile(`(?i)SUBTOPIC_(?:START|END)`)
	chunkStart  = regexp.MustCompile(`^\s*(?:\d+\.|\*|#)`)
	titlePrefix = regexp.MustCompile(`(?i)^\s*(?:\d+[.)]\s*|[-*•]+\s*|#+\s*)*(?:\*\*)?(?:(?:title|subtopic)\s*:\s*)?`)
	spaces      = regexp.MustCompile(`\s+`)
)

func parseMarkers(text string, minSummary int) []domain.SubtopicRecord {
	var out []domain.SubtopicRecord
	for _, m := range markerBlock.FindAllStringSubmatch(text, -1) {
		out = appendRecord(out, m[1], m[2], minSummary)
	}
	return out
}

// parseLabels pairs each Title/Subtopic label with the Summary label that follows it. A value
// runs until the next label line.
func parseLabels(text string, minSummary int) []domain.SubtopicRecord {
	locs := labelLine.FindAllStringSubmatchIndex(text, -1)
	value := func(i int) string {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		return markerToken.ReplaceAllString(text[locs[i][1]:end], "")
	}
	kind := func(i int) string {
		return strings.ToLower(text[locs[i][2]:locs[i][3]])
	}

	var out []domain.SubtopicRecord
	for i := 0; i < len(locs); i++ {
		if kind(i) == "summary" {
			continue
		}
		if i+1 >= len(locs) || kind(i+1) != "summary" {
			continue
		}
		title, _, _ := strings.Cut(strings.TrimSpace(value(i)), "\n")
		out = appendRecord(out, title, value(i+1), minSummary)
		i++
	}
	return out
}

// parseParagraphs treats each chunk as a title line followed by its summary. Chunks break at
// blank lines and before numbered, bulleted or heading lines.
func parseParagraphs(text string, minSummary int) []domain.SubtopicRecord {
	var (
		out   []domain.SubtopicRecord
		chunk []string
	)
	flush := func() {
		defer func() { chunk = chunk[:0] }()
		if len(chunk) < 2 {
			return
		}
		title := cleanTitle(chunk[0])
		if n := len([]rune(title)); n < 10 || n > 100 {
			return
		}
		summary := strings.Join(chunk[1:], " ")
		if len([]rune(summary)) <= 100 {
			return
		}
		out = appendRecord(out, title, summary, minSummary)
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if chunkStart.MatchString(trimmed) {
			flush()
		}
		chunk = append(chunk, trimmed)
	}
	flush()
	return out
}

func appendRecord(out []domain.SubtopicRecord, title, summary string, minSummary int) []domain.SubtopicRecord {
	title = cleanTitle(title)
	summary = strings.TrimSpace(spaces.ReplaceAllString(summary, " "))
	if title == "" || len([]rune(summary)) <= minSummary {
		return out
	}
	return append(out, domain.SubtopicRecord{Title: title, Summary: summary})
}

func cleanTitle(s string) string {
	s = titlePrefix.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.Trim(s, " \t*#\"'")
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// Dedupe keeps the first record per normalized title and drops records without a title.
func Dedupe(records []domain.SubtopicRecord) []domain.SubtopicRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]domain.SubtopicRecord, 0, len(records))
	for _, r := range records {
		key := r.NormalizedTitle()
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
