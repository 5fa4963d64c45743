package prompts

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CurriculumSpider/internal/domain"
)

func TestIsRejection(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"IRRELEVANT_CONTENT":               true,
		"this page is off_topic":           true,
		"A solid digest about chord shapes": false,
		"":                                 false,
	}
	for reply, want := range cases {
		assert.Equal(t, want, IsRejection(reply), reply)
	}
}

func TestQueryLines(t *testing.T) {
	t.Parallel()

	reply := "1. piano scales basics\n\n- \"chord inversions guide\"\n* sight reading tips\n3) pedal technique\n"
	got := QueryLines(reply, 3)
	want := []string{"piano scales basics", "chord inversions guide", "sight reading tips"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("QueryLines mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, QueryLines(reply, 0), 4)
	assert.Empty(t, QueryLines("  \n\n", 5))
}

func TestStringArray(t *testing.T) {
	t.Parallel()

	got, err := StringArray("Here you go:\n```json\n[\"go channels tutorial\", \" \", \"select statement explained\"]\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"go channels tutorial", "select statement explained"}, got)

	got, err = StringArray(`Queries [v2]: ["arrays [] in go", "slices explained"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"arrays [] in go", "slices explained"}, got)

	_, err = StringArray("no array here")
	assert.Error(t, err)
	_, err = StringArray("[1, 2]")
	assert.Error(t, err)
	_, err = StringArray(`[""]`)
	assert.Error(t, err)
}

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		reply  string
		score  float64
		reason string
		err    bool
	}{
		{name: "json", reply: `{"score": 8.5, "reason": "clear walkthrough"}`, score: 8.5, reason: "clear walkthrough"},
		{name: "fenced json", reply: "```json\n{\"score\": 6, \"reason\": \"ok\"}\n```", score: 6, reason: "ok"},
		{name: "clamped high", reply: `{"score": 14}`, score: 10},
		{name: "clamped low", reply: `{"score": -2, "reason": "spam"}`, score: 0, reason: "spam"},
		{name: "loose", reply: `Score: 7 because it is good`, score: 7},
		{name: "braces in reason", reply: `{"score": 9, "reason": "covers {root, first, second} inversions"}`, score: 9,
			reason: "covers {root, first, second} inversions"},
		{name: "prose before object", reply: `Rating {draft}: {"score": 5, "reason": "average"} done`, score: 5, reason: "average"},
		{name: "missing", reply: `{"reason": "none"}`, err: true},
		{name: "garbage", reply: "I cannot rate this", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			score, reason, err := Score(tt.reply)
			if tt.err {
				assert.ErrorIs(t, err, ErrNoScore)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.score, score, 1e-9)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestExtractIntent(t *testing.T) {
	t.Parallel()

	reply := `{"topic": "piano", "intent": "beginner who wants to play pop songs"} Intent extracted. Starting research...`
	got, ok := ExtractIntent(reply)
	require.True(t, ok)
	assert.Equal(t, &domain.Intent{Topic: "piano", Intent: "beginner who wants to play pop songs"}, got)

	got, ok = ExtractIntent(`{"topic": "C++ {templates}", "intent": "intermediate"} Intent extracted.`)
	require.True(t, ok)
	assert.Equal(t, "C++ {templates}", got.Topic)

	_, ok = ExtractIntent(`{"topic": "piano", "intent": "beginner"}`)
	assert.False(t, ok, "marker is required")

	_, ok = ExtractIntent(`Intent extracted {"topic": "", "intent": "beginner"}`)
	assert.False(t, ok, "empty topic")

	_, ok = ExtractIntent("Intent extracted but no json")
	assert.False(t, ok)
}

func TestTruncateIsRuneSafe(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "héllo", Truncate("héllo", 10))
	assert.Equal(t, "", Truncate("héllo", 0))
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1:02:03", FormatDuration(3723))
	assert.Equal(t, "4:05", FormatDuration(245))
}

func TestScoreCandidateMentionsMetadata(t *testing.T) {
	t.Parallel()

	msgs := ScoreCandidate("Chord inversions", "summary text", domain.CandidateResource{
		Title: "Inversions in 10 minutes", DurationSeconds: 600, Views: 1200, Origin: domain.OriginSecondary,
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleSystem, msgs[0].Role)
	body := msgs[1].Content
	for _, want := range []string{"Inversions in 10 minutes", "10:00", "1200", "secondary", "Channel: unknown"} {
		assert.True(t, strings.Contains(body, want), "missing %q in %q", want, body)
	}
}

func TestSubtopicsPromptUsesMarkers(t *testing.T) {
	t.Parallel()

	msgs := Subtopics("piano", "beginner", "report")
	assert.Contains(t, msgs[0].Content, SubtopicBegin)
	assert.Contains(t, msgs[0].Content, SubtopicEnd)
}
