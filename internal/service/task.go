package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/createsuite/createsuite/internal/domain/task"
	"github.com/createsuite/createsuite/internal/port/database"
)

// newID returns a short opaque identifier with a kind prefix.
func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

// TaskService handles task lifecycle: create, assign, complete.
type TaskService struct {
	store database.Store
}

// NewTaskService creates a new TaskService.
func NewTaskService(store database.Store) *TaskService {
	return &TaskService{store: store}
}

// Create persists a new open task. Priority defaults to medium and tags
// are deduplicated preserving order.
func (s *TaskService) Create(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	now := time.Now()
	t := &task.Task{
		ID:          newID("task"),
		Title:       req.Title,
		Description: req.Description,
		Status:      task.StatusOpen,
		Priority:    req.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Priority == "" {
		t.Priority = task.PriorityMedium
	}
	t.AddTags(req.Tags...)

	if err := s.store.CreateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// Get returns a task by ID.
func (s *TaskService) Get(ctx context.Context, id string) (*task.Task, error) {
	return s.store.GetTask(ctx, id)
}

// List returns all tasks.
func (s *TaskService) List(ctx context.Context) ([]task.Task, error) {
	return s.store.ListTasks(ctx)
}

// Update persists t, advancing its UpdatedAt.
func (s *TaskService) Update(ctx context.Context, t *task.Task) error {
	t.Touch(time.Now())
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	return nil
}

// Assign marks the task in progress for the given agent.
func (s *TaskService) Assign(ctx context.Context, taskID, agentID string) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("assign task %s: %w", taskID, err)
	}

	t.AssignedAgent = agentID
	t.Status = task.StatusInProgress
	if err := s.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Complete transitions the task to completed.
func (s *TaskService) Complete(ctx context.Context, taskID string) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("complete task %s: %w", taskID, err)
	}

	t.Status = task.StatusCompleted
	if err := s.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}
