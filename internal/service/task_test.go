package service

import (
	"context"
	"testing"
	"time"

	"github.com/createsuite/createsuite/internal/domain/task"
)

func TestTaskCreateDefaults(t *testing.T) {
	svc := NewTaskService(newMemStore())

	created, err := svc.Create(context.Background(), task.CreateRequest{
		Title:       "Fix the parser",
		Description: "It chokes on empty input",
		Tags:        []string{"bugfix", "parser", "bugfix"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created.ID == "" {
		t.Error("expected a generated ID")
	}
	if created.Status != task.StatusOpen {
		t.Errorf("expected open status, got %q", created.Status)
	}
	if created.Priority != task.PriorityMedium {
		t.Errorf("expected default medium priority, got %q", created.Priority)
	}
	if len(created.Tags) != 2 {
		t.Errorf("expected deduplicated tags, got %v", created.Tags)
	}
	if created.UpdatedAt.Before(created.CreatedAt) {
		t.Error("expected updatedAt >= createdAt")
	}
}

func TestTaskAssignAndComplete(t *testing.T) {
	store := newMemStore()
	svc := NewTaskService(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, task.CreateRequest{Title: "t"})
	if err != nil {
		t.Fatal(err)
	}

	assigned, err := svc.Assign(ctx, created.ID, "agent-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assigned.Status != task.StatusInProgress {
		t.Errorf("expected in_progress, got %q", assigned.Status)
	}
	if assigned.AssignedAgent != "agent-1" {
		t.Errorf("expected assigned agent, got %q", assigned.AssignedAgent)
	}

	completed, err := svc.Complete(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completed.Status != task.StatusCompleted {
		t.Errorf("expected completed, got %q", completed.Status)
	}
	if completed.UpdatedAt.Before(assigned.UpdatedAt) {
		t.Error("expected updatedAt to be monotonically non-decreasing")
	}
}

func TestTaskAssignMissing(t *testing.T) {
	svc := NewTaskService(newMemStore())
	if _, err := svc.Assign(context.Background(), "nope", "agent-1"); err == nil {
		t.Fatal("expected error for missing task")
	}
}

func TestTaskTouchMonotonic(t *testing.T) {
	tk := task.Task{UpdatedAt: time.Now()}
	before := tk.UpdatedAt

	// A wall clock stepping backwards must not move updatedAt back.
	tk.Touch(before.Add(-time.Hour))
	if !tk.UpdatedAt.Equal(before) {
		t.Error("expected updatedAt unchanged when clock steps back")
	}

	tk.Touch(before.Add(time.Second))
	if !tk.UpdatedAt.After(before) {
		t.Error("expected updatedAt to advance")
	}
}
