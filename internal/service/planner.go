package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/createsuite/createsuite/internal/domain/agent"
	"github.com/createsuite/createsuite/internal/domain/convoy"
	"github.com/createsuite/createsuite/internal/domain/repo"
	"github.com/createsuite/createsuite/internal/domain/task"
)

// PlanOptions tunes plan creation.
type PlanOptions struct {
	MaxAgents int
	Runtime   agent.Runtime
	Provider  string
}

// Plan is the result of decomposing a goal against a repository.
type Plan struct {
	Convoy *convoy.Convoy `json:"convoy"`
	Tasks  []task.Task    `json:"tasks"`
	Agents []agent.Agent  `json:"agents"`
	Route  RouteResult    `json:"route"`
}

// Planner decomposes a goal into persisted tasks, a convoy, and agents.
// The decomposition and agent-type strategies are injected so the
// keyword heuristics can be swapped without touching the orchestration.
type Planner struct {
	tasks      *TaskService
	convoys    *ConvoyService
	agents     *AgentService
	decomposer GoalDecomposer
	classifier AgentTypeClassifier
	docsDir    string
}

// NewPlanner creates a Planner writing plan documents into docsDir.
func NewPlanner(tasks *TaskService, convoys *ConvoyService, agents *AgentService, decomposer GoalDecomposer, classifier AgentTypeClassifier, docsDir string) *Planner {
	return &Planner{
		tasks:      tasks,
		convoys:    convoys,
		agents:     agents,
		decomposer: decomposer,
		classifier: classifier,
		docsDir:    docsDir,
	}
}

// CreatePlan decomposes goal into tasks, groups them in a convoy, and
// creates one agent per task up to opts.MaxAgents. Any persistence
// failure aborts plan creation; tasks persisted before the failure are
// not rolled back. The plan document write is reporting only and never
// fails the plan.
func (p *Planner) CreatePlan(ctx context.Context, goal string, r *repo.Repo, opts PlanOptions) (*Plan, error) {
	if opts.MaxAgents < 1 {
		opts.MaxAgents = 1
	}
	if opts.Runtime == "" {
		opts.Runtime = agent.RuntimeLocal
	}

	route := Route(goal)
	subtasks := p.decomposer.Decompose(goal, r.Name)

	tasks := make([]task.Task, 0, len(subtasks))
	taskIDs := make([]string, 0, len(subtasks))
	for _, st := range subtasks {
		t, err := p.tasks.Create(ctx, task.CreateRequest{
			Title:       st.Title,
			Description: st.Description,
			Priority:    st.Priority,
			Tags:        st.Tags,
		})
		if err != nil {
			return nil, fmt.Errorf("persist subtask: %w", err)
		}
		tasks = append(tasks, *t)
		taskIDs = append(taskIDs, t.ID)
	}

	c, err := p.convoys.Create(ctx, "Goal: "+truncate(goal, 60), goal, taskIDs)
	if err != nil {
		return nil, fmt.Errorf("create convoy: %w", err)
	}

	agentCount := min(len(tasks), opts.MaxAgents)
	agents := make([]agent.Agent, 0, agentCount)
	for i := 0; i < agentCount; i++ {
		t := tasks[i]
		agentType := p.classifier.Classify(t.Title, t.Description)
		a, err := p.agents.Create(ctx, agent.CreateRequest{
			Name:         agentType + "-" + t.ID,
			Runtime:      opts.Runtime,
			Capabilities: route.SuggestedSkills,
		})
		if err != nil {
			return nil, fmt.Errorf("create agent for task %s: %w", t.ID, err)
		}
		agents = append(agents, *a)
	}

	plan := &Plan{Convoy: c, Tasks: tasks, Agents: agents, Route: route}
	if err := p.writePlanDoc(plan, goal, r); err != nil {
		slog.Warn("write plan document", "convoy", c.ID, "error", err)
	}

	slog.Info("plan created", "convoy", c.ID, "tasks", len(tasks), "agents", len(agents), "workflow", route.RecommendedWorkflow)
	return plan, nil
}

// writePlanDoc renders a human-readable markdown summary of the plan.
func (p *Planner) writePlanDoc(plan *Plan, goal string, r *repo.Repo) error {
	if p.docsDir == "" {
		return nil
	}
	if err := os.MkdirAll(p.docsDir, 0o750); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Plan %s\n\n", plan.Convoy.ID)
	fmt.Fprintf(&b, "- **Goal**: %s\n", goal)
	fmt.Fprintf(&b, "- **Repository**: %s\n", r.FullName())
	fmt.Fprintf(&b, "- **Workflow**: %s (confidence %.2f)\n", plan.Route.RecommendedWorkflow, plan.Route.Confidence)
	fmt.Fprintf(&b, "- **Created**: %s\n\n", time.Now().Format(time.RFC3339))
	b.WriteString("## Tasks\n\n")
	for _, t := range plan.Tasks {
		fmt.Fprintf(&b, "- `%s` **%s** (%s) — %s\n", t.ID, t.Title, t.Priority, strings.Join(t.Tags, ", "))
	}
	b.WriteString("\n## Agents\n\n")
	for _, a := range plan.Agents {
		fmt.Fprintf(&b, "- `%s` %s (%s)\n", a.ID, a.Name, a.Runtime)
	}

	path := filepath.Join(p.docsDir, plan.Convoy.ID+".md")
	return os.WriteFile(path, []byte(b.String()), 0o600)
}

// truncate shortens s to at most n bytes, cutting on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
