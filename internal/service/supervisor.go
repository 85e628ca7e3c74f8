package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"

	"github.com/createsuite/createsuite/internal/domain/agent"
	"github.com/createsuite/createsuite/internal/port/broadcast"
	"github.com/createsuite/createsuite/internal/port/messagequeue"
)

// Supervisor owns the live worker processes. It tracks at most one
// process handle per agent ID in a mutex-guarded map with process
// lifetime scope; handles are never persisted.
type Supervisor struct {
	agents    *AgentService
	tasks     *TaskService
	queue     messagequeue.Queue
	hub       broadcast.Broadcaster
	workerCmd string

	mu    sync.Mutex
	procs map[string]*exec.Cmd

	// execCommand is swappable for testing.
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewSupervisor creates a Supervisor that launches workerCmd for local
// agents. queue and hub may be nil; lifecycle events are then dropped.
func NewSupervisor(agents *AgentService, tasks *TaskService, queue messagequeue.Queue, hub broadcast.Broadcaster, workerCmd string) *Supervisor {
	return &Supervisor{
		agents:      agents,
		tasks:       tasks,
		queue:       queue,
		hub:         hub,
		workerCmd:   workerCmd,
		procs:       map[string]*exec.Cmd{},
		execCommand: exec.CommandContext,
	}
}

// workerExit is published on the queue when a worker process ends.
type workerExit struct {
	AgentID  string `json:"agent_id"`
	ExitCode int    `json:"exit_code"`
}

// SpawnWorker starts a worker for the agent in dir. Remote agents have
// no local process; the call only flips their status to working. For a
// local agent with a current task, the task title and description become
// the worker prompt; without one the worker starts bare.
//
// Spawning a second worker for an agent that already has a live process
// is rejected.
func (s *Supervisor) SpawnWorker(ctx context.Context, agentID, dir string) error {
	a, err := s.agents.Get(ctx, agentID)
	if err != nil {
		return fmt.Errorf("spawn worker: %w", err)
	}

	if a.Runtime == agent.RuntimeRemote {
		a.Status = agent.StatusWorking
		if err := s.agents.Update(ctx, a); err != nil {
			return err
		}
		slog.Info("remote agent marked working", "agent", a.Name)
		return nil
	}

	s.mu.Lock()
	if _, live := s.procs[agentID]; live {
		s.mu.Unlock()
		return fmt.Errorf("agent %s already has a live worker", agentID)
	}
	s.mu.Unlock()

	args := []string{}
	if a.CurrentTask != "" {
		t, err := s.tasks.Get(ctx, a.CurrentTask)
		if err != nil {
			return fmt.Errorf("load current task %s: %w", a.CurrentTask, err)
		}
		args = append(args, t.Title+"\n\n"+t.Description)
	}

	cmd := s.execCommand(ctx, s.workerCmd, args...)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("worker stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("worker stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start worker for agent %s: %w", agentID, err)
	}

	s.mu.Lock()
	s.procs[agentID] = cmd
	s.mu.Unlock()

	a.Status = agent.StatusWorking
	if err := s.agents.Update(ctx, a); err != nil {
		slog.Error("persist working status", "agent", a.Name, "error", err)
	}

	var streams sync.WaitGroup
	streams.Add(2)
	go func() {
		defer streams.Done()
		s.streamOutput(ctx, a, "stdout", stdout)
	}()
	go func() {
		defer streams.Done()
		s.streamOutput(ctx, a, "stderr", stderr)
	}()
	go s.reap(ctx, agentID, cmd, &streams)

	slog.Info("worker spawned", "agent", a.Name, "dir", dir, "pid", cmd.Process.Pid)
	return nil
}

// StopAgent terminates the agent's tracked process if one exists, then
// unconditionally sets the agent offline and clears its current task.
// Stopping an agent twice, or one with no live process, succeeds.
func (s *Supervisor) StopAgent(ctx context.Context, agentID string) error {
	s.mu.Lock()
	cmd := s.procs[agentID]
	delete(s.procs, agentID)
	s.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			slog.Debug("signal worker", "agent_id", agentID, "error", err)
		}
	}

	a, err := s.agents.Get(ctx, agentID)
	if err != nil {
		return fmt.Errorf("stop agent: %w", err)
	}
	a.Status = agent.StatusOffline
	a.CurrentTask = ""
	return s.agents.Update(ctx, a)
}

// Running reports whether a live process is tracked for the agent.
func (s *Supervisor) Running(agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.procs[agentID]
	return ok
}

// streamOutput prefixes each worker output line with the agent name and
// fans it out to the log, the queue, and connected observers.
func (s *Supervisor) streamOutput(ctx context.Context, a *agent.Agent, stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		fmt.Printf("[%s] %s\n", a.Name, line)

		ev := broadcast.WorkerOutputEvent{
			AgentID: a.ID,
			Agent:   a.Name,
			Line:    line,
			Stream:  stream,
		}
		if s.hub != nil {
			s.hub.BroadcastEvent(ctx, broadcast.EventWorkerOutput, ev)
		}
		if s.queue != nil {
			if data, err := json.Marshal(ev); err == nil {
				if err := s.queue.Publish(ctx, messagequeue.SubjectWorkerOutput, data); err != nil {
					slog.Debug("publish worker output", "agent", a.Name, "error", err)
				}
			}
		}
	}
}

// reap waits for the worker to exit, records the resulting agent status,
// completes the agent's task on a clean exit, and publishes the exit
// event.
func (s *Supervisor) reap(ctx context.Context, agentID string, cmd *exec.Cmd, streams *sync.WaitGroup) {
	// Wait closes the pipes, so both output readers must drain first or
	// the tail of the worker's output is lost.
	streams.Wait()
	err := cmd.Wait()

	exitCode := 0
	if err != nil {
		exitCode = -1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
	}

	// If StopAgent already cleared the handle it owns the final offline
	// status; only a natural exit records idle/error.
	s.mu.Lock()
	stopped := s.procs[agentID] != cmd
	if !stopped {
		delete(s.procs, agentID)
	}
	s.mu.Unlock()

	if !stopped {
		if a, getErr := s.agents.Get(ctx, agentID); getErr == nil {
			taskID := a.CurrentTask
			if exitCode == 0 {
				a.Status = agent.StatusIdle
				a.CurrentTask = ""
			} else {
				a.Status = agent.StatusError
			}
			if updErr := s.agents.Update(ctx, a); updErr != nil {
				slog.Error("persist exit status", "agent_id", agentID, "error", updErr)
			}
			// A clean exit means the worker finished its assignment.
			if exitCode == 0 && taskID != "" {
				if _, cErr := s.tasks.Complete(ctx, taskID); cErr != nil {
					slog.Error("complete task on worker exit", "task_id", taskID, "error", cErr)
				}
			}
		}
	}

	if s.queue != nil {
		if data, err := json.Marshal(workerExit{AgentID: agentID, ExitCode: exitCode}); err == nil {
			if err := s.queue.Publish(ctx, messagequeue.SubjectWorkerExit, data); err != nil {
				slog.Debug("publish worker exit", "agent_id", agentID, "error", err)
			}
		}
	}

	slog.Info("worker exited", "agent_id", agentID, "exit_code", exitCode)
}
