package service

import (
	"context"
	"fmt"
	"time"

	"github.com/createsuite/createsuite/internal/domain/agent"
	"github.com/createsuite/createsuite/internal/domain/task"
	"github.com/createsuite/createsuite/internal/port/broadcast"
	"github.com/createsuite/createsuite/internal/port/database"
)

// AgentService handles agent lifecycle and task assignment. Process
// supervision lives in the Supervisor; this service only mutates the
// persisted records.
type AgentService struct {
	store database.Store
	hub   broadcast.Broadcaster
}

// NewAgentService creates a new AgentService. hub may be nil.
func NewAgentService(store database.Store, hub broadcast.Broadcaster) *AgentService {
	return &AgentService{store: store, hub: hub}
}

// Create persists a new idle agent.
func (s *AgentService) Create(ctx context.Context, req agent.CreateRequest) (*agent.Agent, error) {
	a := &agent.Agent{
		ID:            newID("agent"),
		Name:          req.Name,
		Status:        agent.StatusIdle,
		Runtime:       req.Runtime,
		RemoteAppName: req.RemoteAppName,
		Mailbox:       []agent.Message{},
		Capabilities:  append([]string(nil), req.Capabilities...),
		CreatedAt:     time.Now(),
	}
	if a.Runtime == "" {
		a.Runtime = agent.RuntimeLocal
	}

	if err := s.store.CreateAgent(ctx, a); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return a, nil
}

// Get returns an agent by ID.
func (s *AgentService) Get(ctx context.Context, id string) (*agent.Agent, error) {
	return s.store.GetAgent(ctx, id)
}

// List returns all agents.
func (s *AgentService) List(ctx context.Context) ([]agent.Agent, error) {
	return s.store.ListAgents(ctx)
}

// Update persists a and broadcasts the status change.
func (s *AgentService) Update(ctx context.Context, a *agent.Agent) error {
	if err := s.store.UpdateAgent(ctx, a); err != nil {
		return fmt.Errorf("update agent %s: %w", a.ID, err)
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, broadcast.EventAgentStatus, broadcast.AgentStatusEvent{
			AgentID: a.ID,
			Status:  string(a.Status),
			TaskID:  a.CurrentTask,
		})
	}
	return nil
}

// IdleAgents returns agents with status idle, in listing order.
func (s *AgentService) IdleAgents(ctx context.Context) ([]agent.Agent, error) {
	all, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	idle := make([]agent.Agent, 0, len(all))
	for _, a := range all {
		if a.Status == agent.StatusIdle {
			idle = append(idle, a)
		}
	}
	return idle, nil
}

// AssignTask sets the agent working on taskID, appends a notification
// message to its mailbox, and marks the task in progress.
func (s *AgentService) AssignTask(ctx context.Context, agentID, taskID string) (*agent.Agent, error) {
	a, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("assign to agent %s: %w", agentID, err)
	}
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("assign task %s: %w", taskID, err)
	}

	a.CurrentTask = taskID
	a.Status = agent.StatusWorking
	a.Mailbox = append(a.Mailbox, agent.Message{
		ID:        newID("msg"),
		From:      "system",
		To:        a.ID,
		Subject:   "Task assigned: " + t.Title,
		Body:      t.Description,
		Timestamp: time.Now(),
	})
	if err := s.Update(ctx, a); err != nil {
		return nil, err
	}

	t.AssignedAgent = a.ID
	t.Status = task.StatusInProgress
	t.Touch(time.Now())
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("mark task %s in progress: %w", taskID, err)
	}

	return a, nil
}
