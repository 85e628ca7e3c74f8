package service

import (
	"context"
	"errors"
	"testing"

	"github.com/createsuite/createsuite/internal/domain"
	"github.com/createsuite/createsuite/internal/domain/convoy"
	"github.com/createsuite/createsuite/internal/domain/task"
)

func seedTasks(t *testing.T, svc *TaskService, statuses ...task.Status) []string {
	t.Helper()
	ctx := context.Background()
	ids := make([]string, 0, len(statuses))
	for _, status := range statuses {
		created, err := svc.Create(ctx, task.CreateRequest{Title: "t"})
		if err != nil {
			t.Fatal(err)
		}
		if status != task.StatusOpen {
			created.Status = status
			if err := svc.Update(ctx, created); err != nil {
				t.Fatal(err)
			}
		}
		ids = append(ids, created.ID)
	}
	return ids
}

func TestConvoyAddTasksRoundTrip(t *testing.T) {
	store := newMemStore()
	tasks := NewTaskService(store)
	convoys := NewConvoyService(store)
	ctx := context.Background()

	ids := seedTasks(t, tasks, task.StatusOpen, task.StatusOpen, task.StatusOpen)

	c, err := convoys.Create(ctx, "c", "desc", ids[:1])
	if err != nil {
		t.Fatal(err)
	}

	// Adding one duplicate and two new IDs yields the union, no dupes.
	if _, err := convoys.AddTasks(ctx, c.ID, []string{ids[0], ids[1], ids[2]}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := convoys.Get(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.TaskIDs) != 3 {
		t.Fatalf("expected 3 task ids, got %v", got.TaskIDs)
	}
	for i, id := range ids {
		if got.TaskIDs[i] != id {
			t.Errorf("expected task %d to be %s, got %s", i, id, got.TaskIDs[i])
		}
	}
}

func TestConvoyAddTasksRejectsCompleted(t *testing.T) {
	store := newMemStore()
	tasks := NewTaskService(store)
	convoys := NewConvoyService(store)
	ctx := context.Background()

	ids := seedTasks(t, tasks, task.StatusOpen)
	c, err := convoys.Create(ctx, "c", "desc", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := convoys.UpdateStatus(ctx, c.ID, convoy.StatusCompleted); err != nil {
		t.Fatal(err)
	}

	_, err = convoys.AddTasks(ctx, c.ID, ids)
	if !errors.Is(err, domain.ErrConvoyCompleted) {
		t.Fatalf("expected ErrConvoyCompleted, got %v", err)
	}
}

func TestConvoyAddTasksVerifiesExistence(t *testing.T) {
	store := newMemStore()
	convoys := NewConvoyService(store)
	ctx := context.Background()

	c, err := convoys.Create(ctx, "c", "desc", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := convoys.AddTasks(ctx, c.ID, []string{"ghost"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for ghost task, got %v", err)
	}
}

func TestConvoyProgress(t *testing.T) {
	store := newMemStore()
	tasks := NewTaskService(store)
	convoys := NewConvoyService(store)
	ctx := context.Background()

	ids := seedTasks(t, tasks,
		task.StatusCompleted, task.StatusCompleted, task.StatusInProgress, task.StatusOpen)

	// One referenced task does not exist; it drops out of all counts.
	c, err := convoys.Create(ctx, "c", "desc", append(ids, "ghost"))
	if err != nil {
		t.Fatal(err)
	}

	p, err := convoys.Progress(ctx, c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Total != 4 {
		t.Errorf("expected total 4 (ghost excluded), got %d", p.Total)
	}
	if p.Completed != 2 || p.InProgress != 1 || p.Open != 1 {
		t.Errorf("unexpected counts: %+v", p)
	}
	if p.PercentComplete != 50 {
		t.Errorf("expected 50%%, got %d", p.PercentComplete)
	}
	if p.Open+p.InProgress+p.Completed > p.Total {
		t.Errorf("count invariant violated: %+v", p)
	}
	if p.Done() {
		t.Error("expected Done()=false with open tasks")
	}
}

func TestConvoyProgressEmpty(t *testing.T) {
	store := newMemStore()
	convoys := NewConvoyService(store)
	ctx := context.Background()

	c, err := convoys.Create(ctx, "c", "desc", nil)
	if err != nil {
		t.Fatal(err)
	}
	p, err := convoys.Progress(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Total != 0 || p.PercentComplete != 0 {
		t.Errorf("expected zero progress, got %+v", p)
	}
	if p.Done() {
		t.Error("a convoy with no resolvable tasks is never done")
	}
}

func TestConvoyProgressDone(t *testing.T) {
	store := newMemStore()
	tasks := NewTaskService(store)
	convoys := NewConvoyService(store)
	ctx := context.Background()

	ids := seedTasks(t, tasks, task.StatusCompleted, task.StatusCompleted)
	c, err := convoys.Create(ctx, "c", "desc", ids)
	if err != nil {
		t.Fatal(err)
	}

	p, err := convoys.Progress(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Done() {
		t.Errorf("expected Done()=true, got %+v", p)
	}
	if p.PercentComplete != 100 {
		t.Errorf("expected 100%%, got %d", p.PercentComplete)
	}
}
