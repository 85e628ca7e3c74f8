package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/createsuite/createsuite/internal/adapter/otel"
	"github.com/createsuite/createsuite/internal/adapter/runner"
	"github.com/createsuite/createsuite/internal/changerequest"
	"github.com/createsuite/createsuite/internal/domain/agent"
	"github.com/createsuite/createsuite/internal/domain/convoy"
	"github.com/createsuite/createsuite/internal/domain/pipeline"
	"github.com/createsuite/createsuite/internal/domain/repo"
	"github.com/createsuite/createsuite/internal/domain/task"
	"github.com/createsuite/createsuite/internal/git"
	"github.com/createsuite/createsuite/internal/port/broadcast"
	"github.com/createsuite/createsuite/internal/port/database"
)

// versionControl is the slice of the git gateway the orchestrator needs.
type versionControl interface {
	Clone(ctx context.Context, url string, opts git.CloneOptions) (*repo.Repo, error)
	CreateWorkBranch(ctx context.Context, r *repo.Repo, agentID, taskID string) (string, error)
	CommitAndPush(ctx context.Context, r *repo.Repo, branch, message string) (git.PushResult, error)
}

// changeRequestGateway opens the final change request.
type changeRequestGateway interface {
	Create(ctx context.Context, r *repo.Repo, branch, title, body string) (*changerequest.ChangeRequest, error)
}

// remoteRunner delegates a whole run to a remote pipeline-runner API.
type remoteRunner interface {
	Start(ctx context.Context, req runner.StartRequest) (*runner.StartResponse, error)
}

// workerSupervisor spawns and stops worker processes.
type workerSupervisor interface {
	SpawnWorker(ctx context.Context, agentID, dir string) error
	StopAgent(ctx context.Context, agentID string) error
}

// PipelineOptions carries the orchestrator's configuration slice.
type PipelineOptions struct {
	DefaultMaxAgents int
	DeployToken      string // non-empty switches agents to the remote runtime
	Provider         string
	Model            string
}

// PipelineService drives the end-to-end delivery state machine:
// cloning, planning, executing, committing, pr_creating, completed, with
// failed reachable from any phase. The status record is persisted after
// every transition so observers polling the store see monotonic progress.
type PipelineService struct {
	store      database.Store
	vcs        versionControl
	crs        changeRequestGateway
	runner     remoteRunner
	watcher    CompletionWatcher
	supervisor workerSupervisor
	planner    *Planner
	convoys    *ConvoyService
	agents     *AgentService
	hub        broadcast.Broadcaster
	metrics    *otel.Metrics
	opts       PipelineOptions
}

// NewPipelineService wires the orchestrator. runner, hub, and metrics
// may be nil.
func NewPipelineService(
	store database.Store,
	vcs versionControl,
	crs changeRequestGateway,
	remote remoteRunner,
	watcher CompletionWatcher,
	supervisor workerSupervisor,
	planner *Planner,
	convoys *ConvoyService,
	agents *AgentService,
	hub broadcast.Broadcaster,
	metrics *otel.Metrics,
	opts PipelineOptions,
) *PipelineService {
	if opts.DefaultMaxAgents < 1 {
		opts.DefaultMaxAgents = 3
	}
	return &PipelineService{
		store:      store,
		vcs:        vcs,
		crs:        crs,
		runner:     remote,
		watcher:    watcher,
		supervisor: supervisor,
		planner:    planner,
		convoys:    convoys,
		agents:     agents,
		hub:        hub,
		metrics:    metrics,
		opts:       opts,
	}
}

// Get returns a pipeline status record by ID.
func (s *PipelineService) Get(ctx context.Context, id string) (*pipeline.Status, error) {
	return s.store.GetPipeline(ctx, id)
}

// List returns all pipeline status records.
func (s *PipelineService) List(ctx context.Context) ([]pipeline.Status, error) {
	return s.store.ListPipelines(ctx)
}

// Start persists the initial status record and runs the pipeline in the
// background. The returned record is the observer's polling handle.
func (s *PipelineService) Start(ctx context.Context, cfg pipeline.Config) (*pipeline.Status, error) {
	st, err := s.begin(ctx, cfg)
	if err != nil {
		return nil, err
	}
	go func() {
		if _, err := s.run(context.WithoutCancel(ctx), st, cfg); err != nil {
			slog.Error("pipeline failed", "pipeline", st.ID, "error", err)
		}
	}()
	return st, nil
}

// Run executes the pipeline synchronously and returns the final status.
// On a phase failure the returned status carries phase=failed and the
// error message; the error is also returned.
func (s *PipelineService) Run(ctx context.Context, cfg pipeline.Config) (*pipeline.Status, error) {
	st, err := s.begin(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, st, cfg)
}

// begin creates and persists the initial status record in the cloning phase.
func (s *PipelineService) begin(ctx context.Context, cfg pipeline.Config) (*pipeline.Status, error) {
	if cfg.RepoURL == "" || cfg.Goal == "" {
		return nil, fmt.Errorf("pipeline config requires repoUrl and goal")
	}

	st := &pipeline.Status{
		ID:        newID("pipe"),
		RepoURL:   cfg.RepoURL,
		Goal:      cfg.Goal,
		Phase:     pipeline.PhaseCloning,
		StartedAt: time.Now(),
	}
	if err := s.store.SavePipeline(ctx, st); err != nil {
		return nil, fmt.Errorf("persist pipeline status: %w", err)
	}
	if s.metrics != nil {
		s.metrics.PipelinesStarted.Add(ctx, 1)
	}
	return st, nil
}

func (s *PipelineService) run(ctx context.Context, st *pipeline.Status, cfg pipeline.Config) (*pipeline.Status, error) {
	ctx, span := otel.StartPipelineSpan(ctx, st.ID, st.RepoURL)
	defer span.End()

	// cloning
	r, err := s.phaseClone(ctx, st, cfg)
	if err != nil {
		return s.fail(ctx, st, pipeline.PhaseCloning, err)
	}

	if cfg.DryRun {
		slog.Info("dry run, skipping execution", "pipeline", st.ID)
		return s.complete(ctx, st)
	}

	// planning
	plan, err := s.phasePlan(ctx, st, cfg, r)
	if err != nil {
		return s.fail(ctx, st, pipeline.PhasePlanning, err)
	}

	// executing, including the wait-for-completion sub-phase
	if err := s.phaseExecute(ctx, st, cfg, r, plan); err != nil {
		return s.fail(ctx, st, pipeline.PhaseExecuting, err)
	}

	// committing
	res, branch, err := s.phaseCommit(ctx, st, r, plan)
	if err != nil {
		return s.fail(ctx, st, pipeline.PhaseCommitting, err)
	}
	if !res.Pushed && res.CommitHash == "" {
		// Clean tree: nothing to propose.
		return s.complete(ctx, st)
	}

	// pr_creating: failure degrades the outcome, never fails the run.
	s.phaseProposeChange(ctx, st, r, plan, branch, res)

	return s.complete(ctx, st)
}

func (s *PipelineService) phaseClone(ctx context.Context, st *pipeline.Status, cfg pipeline.Config) (*repo.Repo, error) {
	defer s.timePhase(ctx, pipeline.PhaseCloning)()
	pctx, span := otel.StartPhaseSpan(ctx, st.ID, string(pipeline.PhaseCloning))
	defer span.End()

	return s.vcs.Clone(pctx, cfg.RepoURL, git.CloneOptions{Token: cfg.Token})
}

func (s *PipelineService) phasePlan(ctx context.Context, st *pipeline.Status, cfg pipeline.Config, r *repo.Repo) (*Plan, error) {
	if err := s.setPhase(ctx, st, pipeline.PhasePlanning); err != nil {
		return nil, err
	}
	defer s.timePhase(ctx, pipeline.PhasePlanning)()
	pctx, span := otel.StartPhaseSpan(ctx, st.ID, string(pipeline.PhasePlanning))
	defer span.End()

	rt := agent.RuntimeLocal
	if s.opts.DeployToken != "" {
		rt = agent.RuntimeRemote
	}
	maxAgents := cfg.MaxAgents
	if maxAgents < 1 {
		maxAgents = s.opts.DefaultMaxAgents
	}

	plan, err := s.planner.CreatePlan(pctx, cfg.Goal, r, PlanOptions{
		MaxAgents: maxAgents,
		Runtime:   rt,
		Provider:  firstNonEmpty(cfg.Provider, s.opts.Provider),
	})
	if err != nil {
		return nil, err
	}

	st.ConvoyID = plan.Convoy.ID
	if err := s.store.SavePipeline(ctx, st); err != nil {
		return nil, fmt.Errorf("persist convoy id: %w", err)
	}
	return plan, nil
}

func (s *PipelineService) phaseExecute(ctx context.Context, st *pipeline.Status, cfg pipeline.Config, r *repo.Repo, plan *Plan) error {
	if err := s.setPhase(ctx, st, pipeline.PhaseExecuting); err != nil {
		return err
	}
	defer s.timePhase(ctx, pipeline.PhaseExecuting)()
	pctx, span := otel.StartPhaseSpan(ctx, st.ID, string(pipeline.PhaseExecuting))
	defer span.End()

	delegated := false
	if s.opts.DeployToken != "" && s.runner != nil {
		resp, err := s.runner.Start(pctx, runner.StartRequest{
			RepoURL:   cfg.RepoURL,
			Goal:      cfg.Goal,
			Provider:  firstNonEmpty(cfg.Provider, s.opts.Provider),
			Model:     firstNonEmpty(cfg.Model, s.opts.Model),
			Token:     cfg.Token,
			MaxAgents: len(plan.Agents),
		})
		if err != nil {
			slog.Warn("remote delegation failed, falling back to local execution", "pipeline", st.ID, "error", err)
		} else {
			delegated = true
			slog.Info("pipeline delegated to remote runner", "pipeline", st.ID, "remote_id", resp.PipelineID)
		}
	}

	if !delegated {
		if err := s.executeLocally(pctx, r, plan); err != nil {
			return err
		}
	}

	if _, err := s.convoys.UpdateStatus(pctx, plan.Convoy.ID, convoy.StatusActive); err != nil {
		slog.Warn("mark convoy active", "convoy", plan.Convoy.ID, "error", err)
	}

	// wait-for-completion sub-phase; a ceiling timeout is not an error.
	return s.watcher.Wait(pctx, plan.Convoy.ID)
}

// executeLocally assigns each open unassigned convoy task to the next
// idle agent in listing order and spawns its worker. Tasks beyond the
// available idle agents stay unassigned in this pass.
func (s *PipelineService) executeLocally(ctx context.Context, r *repo.Repo, plan *Plan) error {
	idle, err := s.agents.IdleAgents(ctx)
	if err != nil {
		return fmt.Errorf("list idle agents: %w", err)
	}

	next := 0
	for _, t := range plan.Tasks {
		if t.Status != task.StatusOpen || t.AssignedAgent != "" {
			continue
		}
		if next >= len(idle) {
			break
		}
		a := idle[next]
		next++

		if _, err := s.agents.AssignTask(ctx, a.ID, t.ID); err != nil {
			return fmt.Errorf("assign task %s: %w", t.ID, err)
		}
		if err := s.supervisor.SpawnWorker(ctx, a.ID, r.LocalPath); err != nil {
			return fmt.Errorf("spawn worker for agent %s: %w", a.ID, err)
		}
		if s.metrics != nil {
			s.metrics.WorkersSpawned.Add(ctx, 1)
		}
	}
	return nil
}

func (s *PipelineService) phaseCommit(ctx context.Context, st *pipeline.Status, r *repo.Repo, plan *Plan) (git.PushResult, string, error) {
	if err := s.setPhase(ctx, st, pipeline.PhaseCommitting); err != nil {
		return git.PushResult{}, "", err
	}
	defer s.timePhase(ctx, pipeline.PhaseCommitting)()
	pctx, span := otel.StartPhaseSpan(ctx, st.ID, string(pipeline.PhaseCommitting))
	defer span.End()

	// Consolidated branch scoped to the convoy.
	branch, err := s.vcs.CreateWorkBranch(pctx, r, st.ID, plan.Convoy.ID)
	if err != nil {
		return git.PushResult{}, "", err
	}

	taskIDs := make([]string, 0, len(plan.Tasks))
	for _, t := range plan.Tasks {
		taskIDs = append(taskIDs, t.ID)
	}
	message := fmt.Sprintf("%s\n\nConvoy: %s\nTasks: %s", st.Goal, plan.Convoy.ID, strings.Join(taskIDs, ", "))

	res, err := s.vcs.CommitAndPush(pctx, r, branch, message)
	if err != nil {
		return git.PushResult{}, "", err
	}
	return res, branch, nil
}

// phaseProposeChange opens or recovers the change request. Errors are
// swallowed: the push already succeeded, so the run still completes with
// an empty change-request URL.
func (s *PipelineService) phaseProposeChange(ctx context.Context, st *pipeline.Status, r *repo.Repo, plan *Plan, branch string, res git.PushResult) {
	if err := s.setPhase(ctx, st, pipeline.PhasePRCreating); err != nil {
		slog.Warn("persist pr_creating phase", "pipeline", st.ID, "error", err)
	}
	defer s.timePhase(ctx, pipeline.PhasePRCreating)()
	pctx, span := otel.StartPhaseSpan(ctx, st.ID, string(pipeline.PhasePRCreating))
	defer span.End()

	changes := make([]changerequest.Change, 0, len(plan.Tasks))
	for _, t := range plan.Tasks {
		changes = append(changes, changerequest.Change{Description: t.Title, CommitHash: res.CommitHash})
	}
	agentName := "createsuite"
	if len(plan.Agents) > 0 {
		agentName = plan.Agents[0].Name
	}
	taskRef := ""
	if len(plan.Tasks) > 0 {
		taskRef = plan.Tasks[0].ID
	}

	title := "CreateSuite: " + truncate(st.Goal, 70)
	body := changerequest.BuildBody(st.Goal, taskRef, agentName, plan.Convoy.ID, changes)

	cr, err := s.crs.Create(pctx, r, branch, title, body)
	if err != nil {
		slog.Warn("change request creation failed, completing without one", "pipeline", st.ID, "error", err)
		return
	}
	st.ChangeRequestURL = cr.URL
}

func (s *PipelineService) complete(ctx context.Context, st *pipeline.Status) (*pipeline.Status, error) {
	now := time.Now()
	st.Phase = pipeline.PhaseCompleted
	st.CompletedAt = &now
	if err := s.store.SavePipeline(ctx, st); err != nil {
		return st, fmt.Errorf("persist completed status: %w", err)
	}
	s.broadcastPhase(ctx, st)
	if s.metrics != nil {
		s.metrics.PipelinesCompleted.Add(ctx, 1)
	}
	slog.Info("pipeline completed", "pipeline", st.ID, "change_request", st.ChangeRequestURL)
	return st, nil
}

// fail records the terminal failed phase. The failing phase's error
// message on the status record is the only failure signal observers get.
func (s *PipelineService) fail(ctx context.Context, st *pipeline.Status, phase pipeline.Phase, cause error) (*pipeline.Status, error) {
	now := time.Now()
	st.Phase = pipeline.PhaseFailed
	st.CompletedAt = &now
	st.Error = fmt.Sprintf("%s: %v", phase, cause)
	if err := s.store.SavePipeline(ctx, st); err != nil {
		slog.Error("persist failed status", "pipeline", st.ID, "error", err)
	}
	s.broadcastPhase(ctx, st)
	if s.metrics != nil {
		s.metrics.PipelinesFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", string(phase))))
	}
	slog.Error("pipeline failed", "pipeline", st.ID, "phase", phase, "error", cause)
	return st, fmt.Errorf("pipeline %s failed in %s: %w", st.ID, phase, cause)
}

// setPhase persists a phase transition and notifies observers.
func (s *PipelineService) setPhase(ctx context.Context, st *pipeline.Status, phase pipeline.Phase) error {
	st.Phase = phase
	if err := s.store.SavePipeline(ctx, st); err != nil {
		return fmt.Errorf("persist phase %s: %w", phase, err)
	}
	s.broadcastPhase(ctx, st)
	slog.Info("pipeline phase", "pipeline", st.ID, "phase", phase)
	return nil
}

func (s *PipelineService) broadcastPhase(ctx context.Context, st *pipeline.Status) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastEvent(ctx, broadcast.EventPipelinePhase, broadcast.PipelinePhaseEvent{
		PipelineID: st.ID,
		Phase:      string(st.Phase),
		ConvoyID:   st.ConvoyID,
		Error:      st.Error,
	})
}

// timePhase records the phase duration histogram on completion.
func (s *PipelineService) timePhase(ctx context.Context, phase pipeline.Phase) func() {
	if s.metrics == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		s.metrics.PhaseDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("phase", string(phase))))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
