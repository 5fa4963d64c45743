// Package prompts builds the Oracle conversations used by every pipeline stage and parses the
// free-text replies that come back.
package prompts

import (
	"fmt"
	"strings"

	"CurriculumSpider/internal/domain"
)

// Reply sentinels the Oracle returns verbatim to reject a page during condensation.
const (
	SentinelIrrelevant = "IRRELEVANT_CONTENT"
	SentinelOffTopic   = "OFF_TOPIC"
)

// Markers wrapping one subtopic in the decomposition reply.
const (
	SubtopicBegin = "SUBTOPIC_START"
	SubtopicEnd   = "SUBTOPIC_END"
)

// IntentMarker is the phrase the intent agent emits once topic and intent are known.
const IntentMarker = "Intent extracted"

func system(content string) domain.Message {
	return domain.Message{Role: domain.RoleSystem, Content: content}
}

func user(content string) domain.Message {
	return domain.Message{Role: domain.RoleUser, Content: content}
}

// Condense asks for an intent-focused digest of one cleaned page.
func Condense(topic, intent, content string) []domain.Message {
	return []domain.Message{
		system(fmt.Sprintf(`You extract teachable material from web pages for a learner.
Write a 200-300 word digest of the page that helps someone learn %q with the goal %q.
Keep core concepts, principles, methods, terminology and practical applications.
Drop navigation, advertising, author bios and anything unrelated.
If the page is mostly promotional reply with exactly %s.
If the page does not relate to the topic reply with exactly %s.`, topic, intent, SentinelIrrelevant, SentinelOffTopic)),
		user(fmt.Sprintf("Topic: %s\nIntent: %s\n\nPage content:\n%s", topic, intent, content)),
	}
}

// FoundationQueries asks for web search queries covering the whole topic.
func FoundationQueries(topic, intent string) []domain.Message {
	return []domain.Message{
		system(`You write web search queries that surface text-rich educational pages (guides, tutorials, references).
Produce 6 to 8 queries of 3 to 7 words, each covering a different angle: fundamentals, methods,
common problems, applications, best practices, advanced material. Avoid video platforms.
Reply with one query per line and nothing else.`),
		user(fmt.Sprintf("Topic: %q\nLearning intent: %q", topic, intent)),
	}
}

// FallbackFoundationQueries is used when the Oracle cannot produce queries.
func FallbackFoundationQueries(topic string) []string {
	return []string{
		topic + " fundamentals guide",
		topic + " beginner tutorial",
		topic + " best practices",
		topic + " advanced techniques",
	}
}

// Synthesis merges condensed units into one sectioned report.
func Synthesis(topic, intent string, sources int, combined string) []domain.Message {
	return []domain.Message{
		system(`You organise research digests into a curriculum-ready knowledge report.
Use only the supplied material. Keep teachable knowledge; leave out motivation, product
recommendations and lifestyle advice. Use exactly these markdown sections, in order:

# Knowledge Report: <topic>
## 1. CORE FOUNDATIONS
## 2. KEY METHODOLOGIES
## 3. PRACTICAL APPLICATIONS
## 4. LEARNING PATHWAYS
## 5. COMMON CHALLENGES

Inside each section use nested lists and mark confidence per item as high, medium or low
depending on how many sources agree.`),
		user(fmt.Sprintf("Topic: %q\nLearning intent: %q\nSources analysed: %d\n\nDigests:\n%s", topic, intent, sources, combined)),
	}
}

// Subtopics asks for the curriculum decomposition of one report section.
func Subtopics(topic, intent, section string) []domain.Message {
	return []domain.Message{
		system(fmt.Sprintf(`You design learning curricula. From the report, extract 8 to 15 distinct subtopics ordered
from foundational to advanced. Each must be a concrete learning milestone that serves the
learner's intent, with no overlap between subtopics.

Format every subtopic exactly like this:

%s
Title: <subtopic name>
Summary: <200-300 words: what it teaches, why it matters, where it sits in the progression,
key concepts, prerequisites and practical outcomes>
%s

Use only information from the report.`, SubtopicBegin, SubtopicEnd)),
		user(fmt.Sprintf("Topic: %q\nLearning intent: %q\n\nReport:\n%s", topic, intent, section)),
	}
}

// InvestigationQueries asks for targeted searches about one subtopic.
func InvestigationQueries(subtopic, topic, intent string, n int) []domain.Message {
	return []domain.Message{
		system(fmt.Sprintf(`Write %d web search queries of 4 to 8 words to study one subtopic in depth:
the first about fundamentals, the next about worked examples and tutorials, the last about
advanced techniques. Prefer documentation and written guides over video platforms.
Reply with one query per line.`, n)),
		user(fmt.Sprintf("Subtopic: %s\nMain topic: %s\nLearning intent: %s", subtopic, topic, intent)),
	}
}

// SubtopicReport asks for the learner-facing explanation of a subtopic.
func SubtopicReport(subtopic, topic, intent, sources string) []domain.Message {
	return []domain.Message{
		system(`Write a focused educational report of at most 500 words using only the supplied web content.
Sections: OVERVIEW (2-3 sentences defining the subtopic and how it supports the main topic),
CORE INSIGHTS (what the learner should understand or be able to do), PRACTICAL VALUE
(examples or simple applications). Plain, precise language; no filler.`),
		user(fmt.Sprintf("Subtopic: %s\nMain topic: %s\nLearning intent: %s\n\nWeb content:\n%s", subtopic, topic, intent, sources)),
	}
}

// SearchSummary asks for a keyword-dense paragraph used to derive video queries.
func SearchSummary(subtopic, topic, intent, sources string) []domain.Message {
	return []domain.Message{
		system(`Summarise the subtopic in one paragraph of 50-80 words packed with the technical terms and
concepts that would appear in titles and descriptions of good tutorial videos.`),
		user(fmt.Sprintf("Subtopic: %s\nMain topic: %s\nLearning intent: %s\n\nWeb content:\n%s", subtopic, topic, intent, sources)),
	}
}

// VideoQueries asks for video search queries as a JSON array.
func VideoQueries(topic, subtopic, summary string) []domain.Message {
	return []domain.Message{
		system(`Generate 8 to 10 video search queries of 3 to 6 words built from the key terms of the summary.
Mix tutorials, explanations, walkthroughs and worked examples; avoid wording that favours
short-form clips. Reply with a JSON array of strings only.`),
		user(fmt.Sprintf("Topic: %s\nSubtopic: %s\n\nSummary: %s", topic, subtopic, summary)),
	}
}

// FallbackVideoQueries is used when the Oracle reply holds no usable array.
func FallbackVideoQueries(topic, subtopic string) []string {
	return []string{
		subtopic + " tutorial",
		subtopic + " explained",
		topic + " " + subtopic + " guide",
		"how to " + subtopic,
		subtopic + " examples",
		topic + " " + subtopic + " course",
		subtopic + " complete",
		subtopic + " walkthrough",
		topic + " " + subtopic + " fundamentals",
		subtopic + " comprehensive",
	}
}

// ScoreCandidate asks for a 0-10 teaching-value score from video metadata only.
func ScoreCandidate(subtopic, summary string, c domain.CandidateResource) []domain.Message {
	duration := "unknown"
	if c.DurationSeconds > 0 {
		duration = FormatDuration(c.DurationSeconds)
	}
	views := "unknown"
	if c.Views > 0 {
		views = fmt.Sprintf("%d", c.Views)
	}
	return []domain.Message{
		system(`Rate how well a video would teach the subtopic, from 0 to 10, using only its metadata compared
with the subtopic summary: title fit, description quality, channel credibility, relevance.
Missing metadata is not a reason for a low score on its own.
Reply with JSON: {"score": <number>, "reason": "<one sentence>"}`),
		user(fmt.Sprintf("Subtopic: %s\n\nTitle: %s\nDescription: %s\nChannel: %s\nDuration: %s\nViews: %s\nFound via: %s\n\nSummary: %s",
			subtopic, c.Title, Truncate(c.Snippet, 400), orUnknown(c.SourceChannel), duration, views, c.Origin, summary)),
	}
}

// IntentSystem seeds a new intent-agent conversation.
func IntentSystem() domain.Message {
	return system(fmt.Sprintf(`You help a learner state what they want to learn. Ask short questions until both are clear:
"topic": the specific subject (for example "piano" or "Python programming"),
"intent": learning goal plus current level (for example "complete beginner who wants to build web apps").
When both are clear, output {"topic": "...", "intent": "..."} and say "%s. Starting research..."`, IntentMarker))
}

// FormatDuration renders seconds as H:MM:SS or M:SS.
func FormatDuration(seconds int) string {
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Truncate keeps at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
