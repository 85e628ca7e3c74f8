package service

import (
	"context"
	"testing"

	"github.com/createsuite/createsuite/internal/domain/agent"
	"github.com/createsuite/createsuite/internal/domain/task"
)

func TestAgentCreateDefaults(t *testing.T) {
	svc := NewAgentService(newMemStore(), nil)

	a, err := svc.Create(context.Background(), agent.CreateRequest{Name: "debugger-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != agent.StatusIdle {
		t.Errorf("expected idle status, got %q", a.Status)
	}
	if a.Runtime != agent.RuntimeLocal {
		t.Errorf("expected local runtime default, got %q", a.Runtime)
	}
	if a.Mailbox == nil || len(a.Mailbox) != 0 {
		t.Errorf("expected empty mailbox, got %v", a.Mailbox)
	}
}

func TestIdleAgents(t *testing.T) {
	store := newMemStore()
	svc := NewAgentService(store, nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, agent.CreateRequest{Name: "a"})
	if err != nil {
		t.Fatal(err)
	}
	busy, err := svc.Create(ctx, agent.CreateRequest{Name: "b"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Create(ctx, agent.CreateRequest{Name: "c"})
	if err != nil {
		t.Fatal(err)
	}

	busy.Status = agent.StatusWorking
	busy.CurrentTask = "task-x"
	if err := svc.Update(ctx, busy); err != nil {
		t.Fatal(err)
	}

	idle, err := svc.IdleAgents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(idle) != 2 {
		t.Fatalf("expected 2 idle agents, got %d", len(idle))
	}
	// Listing order is preserved.
	if idle[0].ID != first.ID || idle[1].ID != second.ID {
		t.Errorf("unexpected idle order: %s, %s", idle[0].ID, idle[1].ID)
	}
}

func TestAssignTask(t *testing.T) {
	store := newMemStore()
	agents := NewAgentService(store, nil)
	tasks := NewTaskService(store)
	ctx := context.Background()

	a, err := agents.Create(ctx, agent.CreateRequest{Name: "debugger-1"})
	if err != nil {
		t.Fatal(err)
	}
	created, err := tasks.Create(ctx, task.CreateRequest{Title: "Fix it", Description: "details"})
	if err != nil {
		t.Fatal(err)
	}

	assigned, err := agents.AssignTask(ctx, a.ID, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if assigned.Status != agent.StatusWorking {
		t.Errorf("expected working status, got %q", assigned.Status)
	}
	if assigned.CurrentTask != created.ID {
		t.Errorf("expected currentTask %s, got %q", created.ID, assigned.CurrentTask)
	}
	if len(assigned.Mailbox) != 1 {
		t.Fatalf("expected 1 mailbox message, got %d", len(assigned.Mailbox))
	}
	msg := assigned.Mailbox[0]
	if msg.From != "system" || msg.To != a.ID {
		t.Errorf("unexpected message addressing: %+v", msg)
	}

	got, err := tasks.Get(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != task.StatusInProgress {
		t.Errorf("expected task in_progress, got %q", got.Status)
	}
	if got.AssignedAgent != a.ID {
		t.Errorf("expected task assigned to %s, got %q", a.ID, got.AssignedAgent)
	}
}

func TestAssignTaskMissingAgent(t *testing.T) {
	store := newMemStore()
	agents := NewAgentService(store, nil)

	if _, err := agents.AssignTask(context.Background(), "ghost", "task"); err == nil {
		t.Fatal("expected error for missing agent")
	}
}
