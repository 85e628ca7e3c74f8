package http

import (
	"net/http"

	"github.com/createsuite/createsuite/internal/domain/pipeline"
	"github.com/createsuite/createsuite/internal/port/database"
	"github.com/createsuite/createsuite/internal/service"
)

const maxBodySize = 1 << 20 // 1 MiB

// Handlers bundles the HTTP handlers and their service dependencies.
type Handlers struct {
	pipelines  *service.PipelineService
	tasks      *service.TaskService
	agents     *service.AgentService
	convoys    *service.ConvoyService
	supervisor *service.Supervisor
	store      database.Store
}

// NewHandlers creates the handler set.
func NewHandlers(
	pipelines *service.PipelineService,
	tasks *service.TaskService,
	agents *service.AgentService,
	convoys *service.ConvoyService,
	supervisor *service.Supervisor,
	store database.Store,
) *Handlers {
	return &Handlers{
		pipelines:  pipelines,
		tasks:      tasks,
		agents:     agents,
		convoys:    convoys,
		supervisor: supervisor,
		store:      store,
	}
}

// StartPipeline launches a pipeline run in the background and returns
// the initial status record; observers poll it for progress.
func (h *Handlers) StartPipeline(w http.ResponseWriter, r *http.Request) {
	cfg, ok := readJSON[pipeline.Config](w, r, maxBodySize)
	if !ok {
		return
	}
	if cfg.RepoURL == "" || cfg.Goal == "" {
		writeError(w, http.StatusBadRequest, "repo_url and goal are required")
		return
	}

	st, err := h.pipelines.Start(r.Context(), cfg)
	if err != nil {
		writeDomainError(w, err, "pipeline could not be started")
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

// GetPipeline returns one pipeline status record.
func (h *Handlers) GetPipeline(w http.ResponseWriter, r *http.Request) {
	st, err := h.pipelines.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "pipeline not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ListPipelines returns all pipeline status records.
func (h *Handlers) ListPipelines(w http.ResponseWriter, r *http.Request) {
	sts, err := h.pipelines.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "pipelines could not be listed")
		return
	}
	writeJSON(w, http.StatusOK, sts)
}

// RouteGoal runs the goal router on a description.
func (h *Handlers) RouteGoal(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Description string `json:"description"`
	}](w, r, maxBodySize)
	if !ok {
		return
	}
	if req.Description == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}
	writeJSON(w, http.StatusOK, service.Route(req.Description))
}

// ListTasks returns all tasks.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "tasks could not be listed")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// GetTask returns one task.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.tasks.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ListAgents returns all agents.
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.agents.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "agents could not be listed")
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

// GetAgent returns one agent.
func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := h.agents.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// StopAgent terminates the agent's worker and takes the agent offline.
func (h *Handlers) StopAgent(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if err := h.supervisor.StopAgent(r.Context(), id); err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	a, err := h.agents.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ListConvoys returns all convoys.
func (h *Handlers) ListConvoys(w http.ResponseWriter, r *http.Request) {
	convoys, err := h.convoys.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "convoys could not be listed")
		return
	}
	writeJSON(w, http.StatusOK, convoys)
}

// GetConvoy returns one convoy.
func (h *Handlers) GetConvoy(w http.ResponseWriter, r *http.Request) {
	c, err := h.convoys.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "convoy not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GetConvoyProgress returns the convoy's aggregate task progress.
func (h *Handlers) GetConvoyProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.convoys.Progress(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "convoy not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListRepos returns all known repository handles.
func (h *Handlers) ListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.store.ListRepos(r.Context())
	if err != nil {
		writeDomainError(w, err, "repos could not be listed")
		return
	}
	writeJSON(w, http.StatusOK, repos)
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
