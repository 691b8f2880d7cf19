// Package app assembles the application: storage, services, workers and the
// HTTP surface, with an explicit Run/shutdown lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"taskbot/internal/config"
	"taskbot/internal/handlers"
	"taskbot/internal/logger"
	"taskbot/internal/middleware"
	"taskbot/internal/notifier"
	"taskbot/internal/repository/inmemory"
	"taskbot/internal/repository/postgres"
	"taskbot/internal/service"
	"taskbot/internal/timeparse"
	"taskbot/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// Storage is the full storage surface the app wires together. Method sets of
// the embedded repositories overlap on AllocateNextID; both declare the same
// signature.
type Storage interface {
	service.TaskRepository
	service.ReminderRepository
	service.TemplateRepository
	service.UndoRepository
	worker.ReminderStore
	worker.TemplateStore
	HealthCheck(ctx context.Context) error
	Close()
}

type App struct {
	cfg       *config.Config
	storage   Storage
	scheduler *worker.Scheduler
	server    *http.Server
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := logger.Init(cfg.Logging.Development); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	parser := timeparse.New(loc)
	undoBuffer := service.NewUndoBuffer(store, store, cfg.Undo.TTL)
	taskService := service.NewTaskService(store, store, undoBuffer, parser, cfg.Tasks.PublicIDPrefix)
	templateService := service.NewTemplateService(store, cfg.Tasks.TemplatePrefix, loc)

	scheduler := worker.NewScheduler(
		worker.NewReminderWorker(store, notifier.NewLogNotifier(), cfg.Scheduler.ReminderInterval, cfg.Scheduler.ReminderBatch),
		worker.NewTemplateWorker(store, taskService, cfg.Scheduler.TemplateInterval),
		worker.NewUndoSweeper(undoBuffer, cfg.Scheduler.SweepInterval),
	)
	taskService.SetJobScheduler(scheduler)

	handler := handlers.NewTaskHandler(taskService, templateService, store)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	router.Mount("/api/v1", handler.Routes())

	server := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &App{
		cfg:       cfg,
		storage:   store,
		scheduler: scheduler,
		server:    server,
	}, nil
}

func newStorage(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch cfg.Repository.Type {
	case "inmemory":
		logger.Info("App: using in-memory storage")
		return inmemory.New(), nil
	case "postgres":
		store, err := postgres.New(ctx, cfg.Database.URL, postgres.PoolConfig{
			MaxConns:    cfg.Database.MaxConnections,
			MinConns:    cfg.Database.MinConnections,
			IdleTimeout: cfg.Database.IdleTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.Migrate(); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown repository type %q", cfg.Repository.Type)
}

// Run starts the scheduler and the HTTP server and blocks until the context
// is cancelled or the server fails. Shutdown is graceful: the listener drains
// first, then the worker loops stop, then storage closes.
func (a *App) Run(ctx context.Context) error {
	a.scheduler.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("App: HTTP server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			logger.Error("App: HTTP shutdown failed", err)
		}
		return nil
	})

	err := g.Wait()

	a.scheduler.Stop()
	a.storage.Close()
	logger.Info("App: stopped")
	logger.Sync()

	return err
}
