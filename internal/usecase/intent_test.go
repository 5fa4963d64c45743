package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CurriculumSpider/internal/domain"
	"CurriculumSpider/internal/session"
)

type chatOracle struct {
	mu      sync.Mutex
	replies []string
	err     error
	sent    [][]domain.Message
}

func (o *chatOracle) Generate(_ context.Context, messages []domain.Message) (domain.Completion, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, append([]domain.Message(nil), messages...))
	if o.err != nil {
		return domain.Completion{}, o.err
	}
	reply := o.replies[0]
	o.replies = o.replies[1:]
	return domain.Completion{Text: reply}, nil
}

func TestIntentAgentConversation(t *testing.T) {
	t.Parallel()

	oracle := &chatOracle{replies: []string{
		"What is your current level?",
		`{"topic": "piano", "intent": "complete beginner"} Intent extracted. Starting research...`,
	}}
	store := session.NewMemoryStore(time.Hour, 10, 50)
	agent := NewIntentAgent(oracle, store, 10, nil)
	ctx := context.Background()

	first, err := agent.Chat(ctx, "s1", "I want to learn piano")
	require.NoError(t, err)
	assert.Equal(t, "What is your current level?", first.Reply)
	assert.False(t, first.IntentExtracted)
	assert.Nil(t, first.Intent)

	second, err := agent.Chat(ctx, "s1", " total beginner ")
	require.NoError(t, err)
	assert.True(t, second.IntentExtracted)
	require.NotNil(t, second.Intent)
	assert.Equal(t, domain.Intent{Topic: "piano", Intent: "complete beginner"}, *second.Intent)

	require.Len(t, oracle.sent, 2)
	assert.Equal(t, domain.RoleSystem, oracle.sent[0][0].Role)
	assert.Len(t, oracle.sent[0], 2)
	last := oracle.sent[1]
	require.Len(t, last, 4)
	assert.Equal(t, domain.RoleSystem, last[0].Role)
	assert.Equal(t, "total beginner", last[3].Content)

	history, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, history, 5)
}

func TestIntentAgentWindowKeepsSystemPrompt(t *testing.T) {
	t.Parallel()

	oracle := &chatOracle{replies: []string{"a", "b", "c"}}
	agent := NewIntentAgent(oracle, session.NewMemoryStore(time.Hour, 10, 50), 2, nil)
	for _, msg := range []string{"one", "two", "three"} {
		_, err := agent.Chat(context.Background(), "s1", msg)
		require.NoError(t, err)
	}

	last := oracle.sent[2]
	require.Len(t, last, 3)
	assert.Equal(t, domain.RoleSystem, last[0].Role)
	assert.Equal(t, "b", last[1].Content)
	assert.Equal(t, "three", last[2].Content)
}

func TestIntentAgentSessionsAreIsolated(t *testing.T) {
	t.Parallel()

	oracle := &chatOracle{replies: []string{"x", "y"}}
	agent := NewIntentAgent(oracle, session.NewMemoryStore(time.Hour, 10, 50), 10, nil)
	_, err := agent.Chat(context.Background(), "a", "hello")
	require.NoError(t, err)
	_, err = agent.Chat(context.Background(), "b", "hi")
	require.NoError(t, err)

	assert.Len(t, oracle.sent[1], 2, "second session starts fresh")
}

func TestIntentAgentErrors(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore(time.Hour, 10, 50)
	agent := NewIntentAgent(&chatOracle{err: errors.New("quota")}, store, 10, nil)

	_, err := agent.Chat(context.Background(), "s1", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, err = agent.Chat(context.Background(), "", "hello")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = agent.Chat(context.Background(), "s1", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate reply")
	assert.Zero(t, store.Len(), "failed turns are not stored")
}

func TestIntentAgentMarkerWithoutObject(t *testing.T) {
	t.Parallel()

	agent := NewIntentAgent(&chatOracle{replies: []string{"Intent extracted. Starting research..."}},
		session.NewMemoryStore(time.Hour, 10, 50), 10, nil)
	reply, err := agent.Chat(context.Background(), "s1", "piano please")
	require.NoError(t, err)
	assert.True(t, reply.IntentExtracted)
	assert.Nil(t, reply.Intent)
}
