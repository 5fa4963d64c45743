// Package app wires configuration, adapters and use cases into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"CurriculumSpider/internal/config"
	"CurriculumSpider/internal/httpapi"
	"CurriculumSpider/internal/infrastructure/scheduler"
	"CurriculumSpider/internal/infrastructure/search"
	"CurriculumSpider/internal/infrastructure/storage"
	"CurriculumSpider/internal/infrastructure/web"
	"CurriculumSpider/internal/infrastructure/youtube"
	"CurriculumSpider/internal/logging"
	"CurriculumSpider/internal/oracle"
	"CurriculumSpider/internal/ports"
	"CurriculumSpider/internal/session"
	"CurriculumSpider/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg     config.Config
	log     *logging.Logger
	course  *usecase.Course
	agent   *usecase.IntentAgent
	sweeper *usecase.SessionSweeper
	closers []func() error
}

// New validates cfg and builds every adapter. Missing credentials fail here, not mid-request.
func New(ctx context.Context, cfg config.Config, baseLogger *logging.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, log: baseLogger}

	llm, err := oracle.Default().Open(ctx, cfg.Oracle)
	if err != nil {
		return nil, err
	}
	searchClient, err := search.NewClient(cfg.Search, baseLogger.With("component", "search"))
	if err != nil {
		return nil, fmt.Errorf("search client: %w", err)
	}

	a.course = usecase.NewCourse(usecase.CourseDeps{
		Oracle:    llm,
		Search:    searchClient,
		Fetcher:   web.NewFetcher(cfg.Fetch, nil),
		Primary:   youtube.NewScraper(cfg.Search, cfg.Fetch, nil, baseLogger.With("component", "youtube")),
		Secondary: search.NewVideoSearch(searchClient),
		Config:    cfg,
		Logger:    baseLogger,
	})

	store, err := a.openSessions(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.agent = usecase.NewIntentAgent(llm, store, cfg.Sessions.HistoryWindow, baseLogger)
	a.sweeper = usecase.NewSessionSweeper(scheduler.NewTicker(cfg.Sessions.SweepInterval), store, baseLogger)
	return a, nil
}

func (a *Application) openSessions(ctx context.Context) (ports.SessionStore, error) {
	sc := a.cfg.Sessions
	switch sc.Backend {
	case "sql":
		store, err := storage.OpenSQLStore(ctx, sc.Driver, sc.DSN, sc.TTL, sc.MaxMessages)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case "redis":
		rdb, err := storage.DialRedis(ctx, sc.RedisAddr, sc.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		return storage.NewRedisStore(rdb, sc.RedisPrefix, sc.TTL, sc.MaxMessages), nil
	default:
		return session.NewMemoryStore(sc.TTL, sc.MaxSessions, sc.MaxMessages), nil
	}
}

// Course exposes the curriculum pipeline for one-shot runs.
func (a *Application) Course() *usecase.Course {
	return a.course
}

// Serve runs the HTTP server and the session sweeper until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		CourseHandler: httpapi.NewCourseHandler(a.course, a.cfg.Server.RequestTimeout, a.log),
		ChatHandler:   httpapi.NewChatHandler(a.agent, a.log),
		AllowOrigins:  a.cfg.Server.AllowOrigins,
		Logger:        a.log,
	})
	srv := &http.Server{Addr: a.cfg.Server.Addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		a.log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("http shutdown", "error", err)
	}
	if err := a.sweeper.Stop(shutdownCtx); err != nil {
		a.log.Warn("sweeper shutdown", "error", err)
	}
	return serveErr
}

// Close releases session backends and flushes the logger.
func (a *Application) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.log.Warn("close", "error", err)
		}
	}
	a.closers = nil
	a.log.Sync()
}
