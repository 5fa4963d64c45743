package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"CurriculumSpider/internal/domain"
	"CurriculumSpider/internal/logging"
	"CurriculumSpider/internal/session"
)

type captureScheduler struct {
	job     func(time.Time)
	stopped bool
}

func (s *captureScheduler) Start(_ context.Context, job func(time.Time)) error {
	s.job = job
	return nil
}

func (s *captureScheduler) Stop(context.Context) error {
	s.stopped = true
	return nil
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]domain.Message, error) { return nil, nil }

func (failingStore) Append(context.Context, string, ...domain.Message) error { return nil }

func (failingStore) Evict(context.Context, time.Time) (int, error) {
	return 0, errors.New("store offline")
}

func TestSessionSweeperEvictsOnTick(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore(time.Minute, 10, 10)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "old", domain.Message{Role: domain.RoleUser, Content: "hi"}))

	driver := &captureScheduler{}
	sweeper := NewSessionSweeper(driver, store, nil)
	require.NoError(t, sweeper.Start(ctx))
	require.NotNil(t, driver.job)

	driver.job(time.Now().Add(time.Hour))
	assert.Zero(t, store.Len())

	require.NoError(t, sweeper.Stop(ctx))
	assert.True(t, driver.stopped)
}

func TestSessionSweeperLogsFailures(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	sweeper := NewSessionSweeper(&captureScheduler{}, failingStore{}, logging.FromZap(zap.New(core)))
	sweeper.Sweep(context.Background(), time.Now())

	entries := logs.FilterMessage("session eviction failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "sweeper", entries[0].ContextMap()["component"])
}

func TestSessionSweeperWithoutDriver(t *testing.T) {
	t.Parallel()

	sweeper := NewSessionSweeper(nil, nil, nil)
	assert.NoError(t, sweeper.Start(context.Background()))
	assert.NoError(t, sweeper.Stop(context.Background()))
}
