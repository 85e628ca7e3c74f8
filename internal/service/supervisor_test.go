package service

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/createsuite/createsuite/internal/domain/agent"
	"github.com/createsuite/createsuite/internal/domain/task"
	"github.com/createsuite/createsuite/internal/port/messagequeue"
)

func newTestSupervisor(store *memStore, queue *memQueue) *Supervisor {
	agents := NewAgentService(store, nil)
	tasks := NewTaskService(store)
	var q messagequeue.Queue
	if queue != nil {
		q = queue
	}
	return NewSupervisor(agents, tasks, q, nil, "worker")
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSpawnWorkerSuccessExit(t *testing.T) {
	store := newMemStore()
	queue := newMemQueue()
	sup := newTestSupervisor(store, queue)
	ctx := context.Background()

	a, err := sup.agents.Create(ctx, agent.CreateRequest{Name: "w"})
	if err != nil {
		t.Fatal(err)
	}

	sup.execCommand = func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "true")
	}

	if err := sup.SpawnWorker(ctx, a.ID, t.TempDir()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The exit event is published after the status write, so once it is
	// visible the agent record is final.
	waitFor(t, func() bool {
		queue.mu.Lock()
		defer queue.mu.Unlock()
		return len(queue.messages[messagequeue.SubjectWorkerExit]) == 1
	})

	got, err := sup.agents.Get(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != agent.StatusIdle {
		t.Errorf("expected idle after clean exit, got %q", got.Status)
	}
}

func TestSpawnWorkerDeliversAllOutput(t *testing.T) {
	store := newMemStore()
	queue := newMemQueue()
	sup := newTestSupervisor(store, queue)
	ctx := context.Background()

	a, err := sup.agents.Create(ctx, agent.CreateRequest{Name: "chatty"})
	if err != nil {
		t.Fatal(err)
	}

	const lines = 5000
	sup.execCommand = func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", fmt.Sprintf("seq 1 %d", lines))
	}

	if err := sup.SpawnWorker(ctx, a.ID, t.TempDir()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The exit event is published only after both output streams drained,
	// so every line the worker wrote must already be on the queue.
	waitFor(t, func() bool {
		queue.mu.Lock()
		defer queue.mu.Unlock()
		return len(queue.messages[messagequeue.SubjectWorkerExit]) == 1
	})

	queue.mu.Lock()
	got := len(queue.messages[messagequeue.SubjectWorkerOutput])
	queue.mu.Unlock()
	if got != lines {
		t.Errorf("worker wrote %d lines, observers received %d", lines, got)
	}
}

func TestWorkerCleanExitCompletesTask(t *testing.T) {
	store := newMemStore()
	sup := newTestSupervisor(store, nil)
	ctx := context.Background()

	tk, err := sup.tasks.Create(ctx, task.CreateRequest{Title: "Fix flaky login test"})
	if err != nil {
		t.Fatal(err)
	}
	a, err := sup.agents.Create(ctx, agent.CreateRequest{Name: "w"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sup.agents.AssignTask(ctx, a.ID, tk.ID); err != nil {
		t.Fatal(err)
	}

	sup.execCommand = func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "true")
	}
	if err := sup.SpawnWorker(ctx, a.ID, t.TempDir()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, func() bool {
		got, err := sup.tasks.Get(ctx, tk.ID)
		return err == nil && got.Status == task.StatusCompleted
	})

	got, err := sup.agents.Get(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != agent.StatusIdle {
		t.Errorf("expected idle after clean exit, got %q", got.Status)
	}
	if got.CurrentTask != "" {
		t.Errorf("expected cleared current task, got %q", got.CurrentTask)
	}
}

func TestWorkerFailureExitKeepsTask(t *testing.T) {
	store := newMemStore()
	sup := newTestSupervisor(store, nil)
	ctx := context.Background()

	tk, err := sup.tasks.Create(ctx, task.CreateRequest{Title: "Refactor parser"})
	if err != nil {
		t.Fatal(err)
	}
	a, err := sup.agents.Create(ctx, agent.CreateRequest{Name: "w"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sup.agents.AssignTask(ctx, a.ID, tk.ID); err != nil {
		t.Fatal(err)
	}

	sup.execCommand = func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "false")
	}
	if err := sup.SpawnWorker(ctx, a.ID, t.TempDir()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, func() bool {
		got, err := sup.agents.Get(ctx, a.ID)
		return err == nil && got.Status == agent.StatusError
	})

	gotTask, err := sup.tasks.Get(ctx, tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotTask.Status != task.StatusInProgress {
		t.Errorf("failed worker must not complete its task, got %q", gotTask.Status)
	}
}

func TestSpawnWorkerFailureExit(t *testing.T) {
	store := newMemStore()
	sup := newTestSupervisor(store, nil)
	ctx := context.Background()

	a, err := sup.agents.Create(ctx, agent.CreateRequest{Name: "w"})
	if err != nil {
		t.Fatal(err)
	}

	sup.execCommand = func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "false")
	}

	if err := sup.SpawnWorker(ctx, a.ID, t.TempDir()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, func() bool {
		got, err := sup.agents.Get(ctx, a.ID)
		return err == nil && got.Status == agent.StatusError
	})
	if sup.Running(a.ID) {
		t.Error("expected process handle cleared after exit")
	}
}

func TestSpawnWorkerRemoteIsStatusFlip(t *testing.T) {
	store := newMemStore()
	sup := newTestSupervisor(store, nil)
	ctx := context.Background()

	a, err := sup.agents.Create(ctx, agent.CreateRequest{Name: "r", Runtime: agent.RuntimeRemote})
	if err != nil {
		t.Fatal(err)
	}

	if err := sup.SpawnWorker(ctx, a.ID, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := sup.agents.Get(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != agent.StatusWorking {
		t.Errorf("expected working, got %q", got.Status)
	}
	if sup.Running(a.ID) {
		t.Error("remote agents must not have a tracked process")
	}
}

func TestStopAgentIdempotent(t *testing.T) {
	store := newMemStore()
	sup := newTestSupervisor(store, nil)
	ctx := context.Background()

	a, err := sup.agents.Create(ctx, agent.CreateRequest{Name: "w"})
	if err != nil {
		t.Fatal(err)
	}

	// No live process: stop still succeeds and goes offline.
	for i := 0; i < 2; i++ {
		if err := sup.StopAgent(ctx, a.ID); err != nil {
			t.Fatalf("stop %d: unexpected error: %v", i, err)
		}
		got, err := sup.agents.Get(ctx, a.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != agent.StatusOffline {
			t.Errorf("stop %d: expected offline, got %q", i, got.Status)
		}
		if got.CurrentTask != "" {
			t.Errorf("stop %d: expected cleared current task", i)
		}
	}
}

func TestStopAgentTerminatesProcess(t *testing.T) {
	store := newMemStore()
	sup := newTestSupervisor(store, nil)
	ctx := context.Background()

	a, err := sup.agents.Create(ctx, agent.CreateRequest{Name: "w"})
	if err != nil {
		t.Fatal(err)
	}

	sup.execCommand = func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sleep", "60")
	}

	if err := sup.SpawnWorker(ctx, a.ID, t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if !sup.Running(a.ID) {
		t.Fatal("expected a tracked process")
	}

	if err := sup.StopAgent(ctx, a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sup.Running(a.ID) {
		t.Error("expected handle cleared after stop")
	}

	got, err := sup.agents.Get(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != agent.StatusOffline {
		t.Errorf("expected offline, got %q", got.Status)
	}
}

func TestSpawnWorkerRejectsSecondProcess(t *testing.T) {
	store := newMemStore()
	sup := newTestSupervisor(store, nil)
	ctx := context.Background()

	a, err := sup.agents.Create(ctx, agent.CreateRequest{Name: "w"})
	if err != nil {
		t.Fatal(err)
	}

	sup.execCommand = func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sleep", "60")
	}
	if err := sup.SpawnWorker(ctx, a.ID, t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = sup.StopAgent(ctx, a.ID) }()

	if err := sup.SpawnWorker(ctx, a.ID, t.TempDir()); err == nil {
		t.Fatal("expected error spawning a second worker for the same agent")
	}
}
