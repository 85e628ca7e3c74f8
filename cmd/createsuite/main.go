// Command createsuite runs the goal-to-delivery orchestration service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/createsuite/createsuite/internal/adapter/cached"
	cshttp "github.com/createsuite/createsuite/internal/adapter/http"
	csnats "github.com/createsuite/createsuite/internal/adapter/nats"
	csotel "github.com/createsuite/createsuite/internal/adapter/otel"
	"github.com/createsuite/createsuite/internal/adapter/postgres"
	"github.com/createsuite/createsuite/internal/adapter/ristretto"
	"github.com/createsuite/createsuite/internal/adapter/runner"
	"github.com/createsuite/createsuite/internal/adapter/ws"
	"github.com/createsuite/createsuite/internal/changerequest"
	"github.com/createsuite/createsuite/internal/config"
	"github.com/createsuite/createsuite/internal/git"
	"github.com/createsuite/createsuite/internal/logger"
	"github.com/createsuite/createsuite/internal/port/database"
	"github.com/createsuite/createsuite/internal/port/messagequeue"
	"github.com/createsuite/createsuite/internal/service"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(logger.New(cfg.Logging))

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"max_agents", cfg.Pipeline.MaxAgents,
		"workspace", cfg.Git.WorkspaceDir,
	)

	ctx := context.Background()

	// --- Observability ---
	otelShutdown, err := csotel.Setup(ctx, cfg.Logging.Service, cfg.Otel.Endpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelShutdown(sctx)
	}()

	// --- Infrastructure ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS is optional: without it worker lifecycle events are dropped
	// and the poll watcher is used.
	var queue messagequeue.Queue
	if cfg.NATS.URL != "" {
		q, err := csnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, continuing without worker events", "error", err)
		} else {
			queue = q
			defer func() { _ = q.Drain() }()
		}
	}

	// Read cache in front of the store.
	var store database.Store = postgres.NewStore(pool)
	if cfg.Cache.MaxSizeMB > 0 {
		c, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
		if err != nil {
			return fmt.Errorf("cache: %w", err)
		}
		defer c.Close()
		store = cached.New(store, c, cfg.Cache.TTL)
	}

	hub := ws.NewHub()

	// --- Gateways ---
	gitPool := git.NewPool(cfg.Git.MaxConcurrent)
	vcs := git.NewGateway(store, gitPool, cfg.Git)
	crs := changerequest.NewGateway(cfg.Git.BranchPrefix)

	var remote *runner.Client
	if cfg.Runner.URL != "" {
		remote = runner.NewClient(cfg.Runner.URL)
	}

	// --- Services ---
	taskSvc := service.NewTaskService(store)
	convoySvc := service.NewConvoyService(store)
	agentSvc := service.NewAgentService(store, hub)
	supervisor := service.NewSupervisor(agentSvc, taskSvc, queue, hub, cfg.Worker.Command)
	planner := service.NewPlanner(taskSvc, convoySvc, agentSvc,
		service.RuleDecomposer{}, service.KeywordClassifier{}, cfg.Pipeline.DocsDir)

	var watcher service.CompletionWatcher
	if queue != nil {
		watcher = service.NewEventWatcher(convoySvc, agentSvc, queue, cfg.Pipeline.WaitCeiling)
	} else {
		watcher = service.NewPollWatcher(convoySvc, agentSvc, cfg.Pipeline.PollInterval, cfg.Pipeline.WaitCeiling)
	}

	metrics, err := csotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	pipelineSvc := newPipelineService(store, vcs, crs, remote, watcher, supervisor,
		planner, convoySvc, agentSvc, hub, metrics, cfg)

	// --- HTTP ---
	handlers := cshttp.NewHandlers(pipelineSvc, taskSvc, agentSvc, convoySvc, supervisor, store)

	r := chi.NewRouter()
	r.Use(cshttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cshttp.Logger)
	r.Use(csotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	cshttp.MountRoutes(r, handlers, http.HandlerFunc(hub.HandleWS))

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func newPipelineService(
	store database.Store,
	vcs *git.Gateway,
	crs *changerequest.Gateway,
	remote *runner.Client,
	watcher service.CompletionWatcher,
	supervisor *service.Supervisor,
	planner *service.Planner,
	convoys *service.ConvoyService,
	agents *service.AgentService,
	hub *ws.Hub,
	metrics *csotel.Metrics,
	cfg *config.Config,
) *service.PipelineService {
	opts := service.PipelineOptions{
		DefaultMaxAgents: cfg.Pipeline.MaxAgents,
		DeployToken:      cfg.Runner.DeployToken,
	}
	// A nil *runner.Client must stay a nil interface inside the service.
	if remote == nil {
		return service.NewPipelineService(store, vcs, crs, nil, watcher, supervisor,
			planner, convoys, agents, hub, metrics, opts)
	}
	return service.NewPipelineService(store, vcs, crs, remote, watcher, supervisor,
		planner, convoys, agents, hub, metrics, opts)
}
