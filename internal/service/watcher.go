package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/createsuite/createsuite/internal/domain/agent"
	"github.com/createsuite/createsuite/internal/port/messagequeue"
)

// CompletionWatcher blocks until all work tracked by a convoy appears
// finished, or its wait ceiling elapses. Exceeding the ceiling is not an
// error: the pipeline continues with whatever state exists.
type CompletionWatcher interface {
	Wait(ctx context.Context, convoyID string) error
}

// workDone reports whether the convoy's work looks finished: either
// every tracked task completed, or no agent is working while no convoy
// task remains open or in progress.
func workDone(ctx context.Context, convoys *ConvoyService, agents *AgentService, convoyID string) (bool, error) {
	progress, err := convoys.Progress(ctx, convoyID)
	if err != nil {
		return false, err
	}
	if progress.Done() {
		return true, nil
	}

	all, err := agents.List(ctx)
	if err != nil {
		return false, err
	}
	working := 0
	for _, a := range all {
		if a.Status == agent.StatusWorking {
			working++
		}
	}
	return working == 0 && progress.Open == 0 && progress.InProgress == 0, nil
}

// PollWatcher is the fixed-interval CompletionWatcher.
type PollWatcher struct {
	convoys  *ConvoyService
	agents   *AgentService
	interval time.Duration
	ceiling  time.Duration
}

// NewPollWatcher creates a PollWatcher checking every interval with a
// hard ceiling on the total wait.
func NewPollWatcher(convoys *ConvoyService, agents *AgentService, interval, ceiling time.Duration) *PollWatcher {
	return &PollWatcher{convoys: convoys, agents: agents, interval: interval, ceiling: ceiling}
}

// Wait polls until the convoy's work is done or the ceiling elapses.
func (w *PollWatcher) Wait(ctx context.Context, convoyID string) error {
	deadline := time.NewTimer(w.ceiling)
	defer deadline.Stop()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			slog.Warn("completion wait ceiling reached, continuing", "convoy", convoyID, "ceiling", w.ceiling)
			return nil
		case <-ticker.C:
			done, err := workDone(ctx, w.convoys, w.agents, convoyID)
			if err != nil {
				slog.Debug("completion check failed", "convoy", convoyID, "error", err)
				continue
			}
			if done {
				return nil
			}
		}
	}
}

// EventWatcher is the event-driven CompletionWatcher: it re-checks the
// convoy whenever a worker-exit event arrives on the queue instead of
// polling on a timer. The ceiling still applies as a safety net.
type EventWatcher struct {
	convoys *ConvoyService
	agents  *AgentService
	queue   messagequeue.Queue
	ceiling time.Duration
}

// NewEventWatcher creates an EventWatcher fed by worker-exit events.
func NewEventWatcher(convoys *ConvoyService, agents *AgentService, queue messagequeue.Queue, ceiling time.Duration) *EventWatcher {
	return &EventWatcher{convoys: convoys, agents: agents, queue: queue, ceiling: ceiling}
}

// Wait blocks until a worker-exit event leaves the convoy's work done,
// or the ceiling elapses.
func (w *EventWatcher) Wait(ctx context.Context, convoyID string) error {
	exits := make(chan struct{}, 16)
	cancel, err := w.queue.Subscribe(ctx, messagequeue.SubjectWorkerExit, func(context.Context, string, []byte) error {
		select {
		case exits <- struct{}{}:
		default:
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer cancel()

	// The last worker may already have exited before we subscribed.
	done, err := workDone(ctx, w.convoys, w.agents, convoyID)
	if err == nil && done {
		return nil
	}

	deadline := time.NewTimer(w.ceiling)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			slog.Warn("completion wait ceiling reached, continuing", "convoy", convoyID, "ceiling", w.ceiling)
			return nil
		case <-exits:
			done, err := workDone(ctx, w.convoys, w.agents, convoyID)
			if err != nil {
				slog.Debug("completion check failed", "convoy", convoyID, "error", err)
				continue
			}
			if done {
				return nil
			}
		}
	}
}
