package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/createsuite/createsuite/internal/domain"
	"github.com/createsuite/createsuite/internal/domain/convoy"
	"github.com/createsuite/createsuite/internal/domain/task"
	"github.com/createsuite/createsuite/internal/port/database"
)

// ConvoyService groups tasks and computes aggregate progress.
type ConvoyService struct {
	store database.Store
}

// NewConvoyService creates a new ConvoyService.
func NewConvoyService(store database.Store) *ConvoyService {
	return &ConvoyService{store: store}
}

// Create persists a new active convoy referencing taskIDs.
func (s *ConvoyService) Create(ctx context.Context, name, description string, taskIDs []string) (*convoy.Convoy, error) {
	c := &convoy.Convoy{
		ID:          newID("convoy"),
		Name:        name,
		Description: description,
		TaskIDs:     append([]string(nil), taskIDs...),
		Status:      convoy.StatusActive,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateConvoy(ctx, c); err != nil {
		return nil, fmt.Errorf("create convoy: %w", err)
	}
	return c, nil
}

// Get returns a convoy by ID.
func (s *ConvoyService) Get(ctx context.Context, id string) (*convoy.Convoy, error) {
	return s.store.GetConvoy(ctx, id)
}

// List returns all convoys.
func (s *ConvoyService) List(ctx context.Context) ([]convoy.Convoy, error) {
	return s.store.ListConvoys(ctx)
}

// UpdateStatus sets the convoy status.
func (s *ConvoyService) UpdateStatus(ctx context.Context, id string, status convoy.Status) (*convoy.Convoy, error) {
	c, err := s.store.GetConvoy(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update convoy %s: %w", id, err)
	}

	c.Status = status
	if err := s.store.UpdateConvoy(ctx, c); err != nil {
		return nil, fmt.Errorf("update convoy %s: %w", id, err)
	}
	return c, nil
}

// AddTasks appends taskIDs to the convoy. A completed convoy rejects
// additions with ErrConvoyCompleted. Every task ID must exist; only IDs
// not already in the convoy are appended.
func (s *ConvoyService) AddTasks(ctx context.Context, convoyID string, taskIDs []string) (*convoy.Convoy, error) {
	c, err := s.store.GetConvoy(ctx, convoyID)
	if err != nil {
		return nil, fmt.Errorf("add tasks to convoy %s: %w", convoyID, err)
	}
	if c.Status == convoy.StatusCompleted {
		return nil, fmt.Errorf("convoy %s: %w", convoyID, domain.ErrConvoyCompleted)
	}

	for _, id := range taskIDs {
		if _, err := s.store.GetTask(ctx, id); err != nil {
			return nil, fmt.Errorf("verify task %s: %w", id, err)
		}
	}

	existing := make(map[string]bool, len(c.TaskIDs))
	for _, id := range c.TaskIDs {
		existing[id] = true
	}
	for _, id := range taskIDs {
		if !existing[id] {
			c.TaskIDs = append(c.TaskIDs, id)
			existing[id] = true
		}
	}

	if err := s.store.UpdateConvoy(ctx, c); err != nil {
		return nil, fmt.Errorf("add tasks to convoy %s: %w", convoyID, err)
	}
	return c, nil
}

// Progress loads every referenced task concurrently and counts by
// status. Tasks missing from the store are excluded from all counts.
func (s *ConvoyService) Progress(ctx context.Context, convoyID string) (convoy.Progress, error) {
	c, err := s.store.GetConvoy(ctx, convoyID)
	if err != nil {
		return convoy.Progress{}, fmt.Errorf("convoy progress %s: %w", convoyID, err)
	}

	var (
		mu    sync.Mutex
		tasks []task.Task
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range c.TaskIDs {
		g.Go(func() error {
			t, err := s.store.GetTask(gctx, id)
			if err != nil {
				// Missing tasks drop out of the totals.
				return nil
			}
			mu.Lock()
			tasks = append(tasks, *t)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return convoy.Progress{}, err
	}

	var p convoy.Progress
	p.Total = len(tasks)
	for _, t := range tasks {
		switch t.Status {
		case task.StatusCompleted:
			p.Completed++
		case task.StatusInProgress:
			p.InProgress++
		case task.StatusOpen:
			p.Open++
		}
	}
	if p.Total > 0 {
		p.PercentComplete = int(math.Round(100 * float64(p.Completed) / float64(p.Total)))
	}
	return p, nil
}
