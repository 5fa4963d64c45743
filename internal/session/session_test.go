package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CurriculumSpider/internal/domain"
)

func sys(c string) domain.Message  { return domain.Message{Role: domain.RoleSystem, Content: c} }
func user(c string) domain.Message { return domain.Message{Role: domain.RoleUser, Content: c} }

func TestTrimKeepsSystemMessage(t *testing.T) {
	t.Parallel()

	history := []domain.Message{sys("s"), user("1"), user("2"), user("3"), user("4")}
	if diff := cmp.Diff([]domain.Message{sys("s"), user("3"), user("4")}, Trim(history, 3)); diff != "" {
		t.Fatalf("Trim mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []domain.Message{sys("s")}, Trim(history, 1))
	assert.Equal(t, []domain.Message{user("3"), user("4")}, Trim(history[1:], 2))
	assert.Equal(t, history, Trim(history, 0))
}

func TestWindow(t *testing.T) {
	t.Parallel()

	history := []domain.Message{sys("s"), user("1"), user("2"), user("3")}
	assert.Equal(t, []domain.Message{sys("s"), user("2"), user("3")}, Window(history, 2))
	assert.Equal(t, history, Window(history, 10))
	assert.Equal(t, []domain.Message{user("3")}, Window(history[1:], 1))
	assert.Empty(t, Window(nil, 6))
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestStore(ttl time.Duration, maxSessions, maxMessages int) (*MemoryStore, *clock) {
	c := &clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(ttl, maxSessions, maxMessages)
	s.now = c.Now
	return s, c
}

func TestMemoryStoreAppendAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newTestStore(time.Minute, 10, 3)

	require.NoError(t, s.Append(ctx, "a", sys("s"), user("1")))
	require.NoError(t, s.Append(ctx, "a", user("2"), user("3")))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []domain.Message{sys("s"), user("2"), user("3")}, got)

	got[0].Content = "mutated"
	again, _ := s.Get(ctx, "a")
	assert.Equal(t, "s", again[0].Content)

	missing, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStoreExpiresIdleSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, c := newTestStore(time.Minute, 10, 10)
	require.NoError(t, s.Append(ctx, "old", user("hi")))
	c.now = c.now.Add(30 * time.Second)
	require.NoError(t, s.Append(ctx, "fresh", user("hi")))

	c.now = c.now.Add(45 * time.Second)
	got, _ := s.Get(ctx, "old")
	assert.Nil(t, got)

	removed, err := s.Evict(ctx, c.now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Zero(t, s.Len())
}

func TestMemoryStoreEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newTestStore(time.Hour, 3, 10)
	for i := range 3 {
		require.NoError(t, s.Append(ctx, fmt.Sprint(i), user("hi")))
	}
	_, _ = s.Get(ctx, "0")
	require.NoError(t, s.Append(ctx, "3", user("hi")))

	assert.Equal(t, 3, s.Len())
	gone, _ := s.Get(ctx, "1")
	assert.Nil(t, gone, "least recently used session is evicted")
	kept, _ := s.Get(ctx, "0")
	assert.NotNil(t, kept)
}
