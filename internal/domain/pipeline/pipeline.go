// Package pipeline defines the pipeline run configuration and its status
// record, the sole observable output of a run.
package pipeline

import "time"

// Phase is one state of the delivery state machine. Phases advance in
// order with no skip-ahead except the dry-run short circuit; failed is
// reachable from any phase.
type Phase string

const (
	PhaseCloning    Phase = "cloning"
	PhasePlanning   Phase = "planning"
	PhaseExecuting  Phase = "executing"
	PhaseCommitting Phase = "committing"
	PhasePRCreating Phase = "pr_creating"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether the phase ends the run.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Config is the exposed input surface of the orchestrator.
type Config struct {
	RepoURL   string `json:"repo_url"`
	Goal      string `json:"goal"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	Token     string `json:"token,omitempty"`
	MaxAgents int    `json:"max_agents,omitempty"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

// Status is the single mutable record per pipeline run, persisted after
// every phase transition so external observers polling the store see
// monotonic phase progress.
type Status struct {
	ID               string     `json:"id"`
	RepoURL          string     `json:"repo_url"`
	Goal             string     `json:"goal"`
	Phase            Phase      `json:"phase"`
	ConvoyID         string     `json:"convoy_id,omitempty"`
	ChangeRequestURL string     `json:"change_request_url,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Error            string     `json:"error,omitempty"`
}
