package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single prompt or conversation turn sent to the Language Oracle.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TokenUsage accumulates Oracle accounting for one request.
type TokenUsage struct {
	Calls            int64 `json:"calls"`
	PromptTokens     int64 `json:"promptTokens"`
	CompletionTokens int64 `json:"completionTokens"`
}

// Total returns prompt plus completion tokens.
func (u TokenUsage) Total() int64 {
	return u.PromptTokens + u.CompletionTokens
}

// Completion is the Oracle reply together with its token usage, when the provider reports it.
type Completion struct {
	Text  string
	Usage TokenUsage
}

// SourceDocument is owned by one acquisition task from fetch to condensation.
type SourceDocument struct {
	URL         string
	RawText     string
	CleanedText string
}

// CondensedUnit is the intent-focused digest of one source page.
type CondensedUnit struct {
	SourceURL string
	Text      string
}

// SubtopicRecord is one curriculum entry extracted from the synthesized report.
type SubtopicRecord struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// NormalizedTitle is the uniqueness key of a subtopic.
func (r SubtopicRecord) NormalizedTitle() string {
	return strings.ToLower(strings.TrimSpace(r.Title))
}

// Origin records which acquisition path produced a candidate.
type Origin int

const (
	OriginPrimary Origin = iota + 1
	OriginSecondary
)

func (o Origin) String() string {
	switch o {
	case OriginPrimary:
		return "primary"
	case OriginSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// CandidateResource is an instructional video considered for a subtopic.
// DurationSeconds is zero when the channel does not report it.
type CandidateResource struct {
	ID              string
	Title           string
	URL             string
	SourceChannel   string
	Snippet         string
	Views           int64
	DurationSeconds int
	Score           float64
	ScoreReason     string
	Origin          Origin
}

// Key identifies the candidate for deduplication: the channel id when present, else a URL hash.
func (c CandidateResource) Key() string {
	if id := strings.TrimSpace(c.ID); id != "" {
		return id
	}
	sum := sha256.Sum256([]byte(strings.TrimSpace(c.URL)))
	return "url:" + hex.EncodeToString(sum[:8])
}

// RankedSelection is either the accepted candidate or an explicit "no acceptable candidate".
type RankedSelection struct {
	Candidate CandidateResource
	Found     bool
	Reason    string
	Evaluated int
}

// NoSelection builds the "no acceptable candidate" result.
func NoSelection(reason string, evaluated int) RankedSelection {
	return RankedSelection{Reason: reason, Evaluated: evaluated}
}

// Intent is the learner goal extracted by the intent agent.
type Intent struct {
	Topic  string `json:"topic"`
	Intent string `json:"intent"`
}

// IntentReply is the result of one conversational turn.
type IntentReply struct {
	Reply           string  `json:"reply"`
	IntentExtracted bool    `json:"intentExtracted"`
	Intent          *Intent `json:"intent,omitempty"`
}

// SubtopicInvestigation is the per-subtopic output of the second acquisition pass.
type SubtopicInvestigation struct {
	Subtopic string
	Report   string
	Summary  string
}

// SubtopicResult is one entry of the final curriculum.
type SubtopicResult struct {
	Subtopic string  `json:"subtopic"`
	Summary  string  `json:"summary"`
	Report   string  `json:"report"`
	VideoURL *string `json:"video"`
	Reason   *string `json:"reason"`
}

// CourseReport is the full curriculum returned to the transport layer.
type CourseReport struct {
	RequestID             string           `json:"requestId"`
	Topic                 string           `json:"topic"`
	Intent                string           `json:"intent"`
	ProcessingTimeSeconds int64            `json:"processingTime"`
	Subtopics             []SubtopicResult `json:"subtopics"`
	Usage                 TokenUsage       `json:"usage"`
}
