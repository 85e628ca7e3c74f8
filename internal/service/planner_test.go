package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/createsuite/createsuite/internal/domain/agent"
	"github.com/createsuite/createsuite/internal/domain/repo"
)

func newTestPlanner(store *memStore, docsDir string) *Planner {
	return NewPlanner(
		NewTaskService(store),
		NewConvoyService(store),
		NewAgentService(store, nil),
		RuleDecomposer{},
		KeywordClassifier{},
		docsDir,
	)
}

func widgetsRepo() *repo.Repo {
	return &repo.Repo{
		URL:           "https://github.com/acme/widgets",
		Owner:         "acme",
		Name:          "widgets",
		LocalPath:     "/tmp/widgets",
		DefaultBranch: "main",
	}
}

func TestCreatePlanDecomposesGoal(t *testing.T) {
	store := newMemStore()
	docsDir := t.TempDir()
	p := newTestPlanner(store, docsDir)
	ctx := context.Background()

	plan, err := p.CreatePlan(ctx, "Add unit tests and fix the login bug", widgetsRepo(), PlanOptions{MaxAgents: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Tasks) < 2 {
		t.Fatalf("expected at least 2 tasks, got %d", len(plan.Tasks))
	}
	tags := map[string]bool{}
	for _, tk := range plan.Tasks {
		for _, tag := range tk.Tags {
			tags[tag] = true
		}
	}
	if !tags["testing"] || !tags["bugfix"] {
		t.Errorf("expected testing and bugfix tasks, got tags %v", tags)
	}

	if plan.Convoy == nil {
		t.Fatal("expected a convoy")
	}
	if len(plan.Convoy.TaskIDs) != len(plan.Tasks) {
		t.Errorf("convoy references %d tasks, plan has %d", len(plan.Convoy.TaskIDs), len(plan.Tasks))
	}

	if len(plan.Agents) == 0 || len(plan.Agents) > 3 {
		t.Errorf("expected 1-3 agents, got %d", len(plan.Agents))
	}
	for i, a := range plan.Agents {
		wantSuffix := "-" + plan.Tasks[i].ID
		if !strings.HasSuffix(a.Name, wantSuffix) {
			t.Errorf("agent %d name %q missing task suffix %q", i, a.Name, wantSuffix)
		}
	}
}

func TestCreatePlanRespectsMaxAgents(t *testing.T) {
	store := newMemStore()
	p := newTestPlanner(store, "")
	ctx := context.Background()

	plan, err := p.CreatePlan(ctx,
		"add tests, refactor the core, fix bugs, write docs, optimize performance",
		widgetsRepo(), PlanOptions{MaxAgents: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Tasks) < 3 {
		t.Fatalf("expected several tasks, got %d", len(plan.Tasks))
	}
	if len(plan.Agents) != 2 {
		t.Errorf("expected 2 agents, got %d", len(plan.Agents))
	}
}

func TestCreatePlanRuntimePropagates(t *testing.T) {
	store := newMemStore()
	p := newTestPlanner(store, "")

	plan, err := p.CreatePlan(context.Background(), "fix the bug", widgetsRepo(),
		PlanOptions{MaxAgents: 1, Runtime: agent.RuntimeRemote})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Agents) != 1 || plan.Agents[0].Runtime != agent.RuntimeRemote {
		t.Errorf("expected a remote agent, got %+v", plan.Agents)
	}
}

func TestCreatePlanWritesDocument(t *testing.T) {
	store := newMemStore()
	docsDir := t.TempDir()
	p := newTestPlanner(store, docsDir)

	plan, err := p.CreatePlan(context.Background(), "fix the bug", widgetsRepo(), PlanOptions{MaxAgents: 1})
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(docsDir, plan.Convoy.ID+".md"))
	if err != nil {
		t.Fatalf("expected plan document: %v", err)
	}
	doc := string(data)
	for _, want := range []string{"fix the bug", "acme/widgets", plan.Tasks[0].ID} {
		if !strings.Contains(doc, want) {
			t.Errorf("plan document missing %q", want)
		}
	}
}

func TestCreatePlanPersistenceFailureAborts(t *testing.T) {
	store := newMemStore()
	store.failCreateTask = errors.New("disk full")
	p := newTestPlanner(store, "")

	if _, err := p.CreatePlan(context.Background(), "fix the bug", widgetsRepo(), PlanOptions{MaxAgents: 1}); err == nil {
		t.Fatal("expected error when task persistence fails")
	}
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 60, "short"},
		{strings.Repeat("a", 70), 60, strings.Repeat("a", 60) + "…"},
		{"améliorer la journalisation éé", 10, "améliorer…"},
		{strings.Repeat("日", 30), 10, strings.Repeat("日", 3) + "…"},
	}

	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8: %q", tt.in, tt.n, got)
		}
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
