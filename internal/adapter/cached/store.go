// Package cached decorates the entity store with an in-process read cache
// for the hot single-entity lookups issued by the progress poll loop.
// Writes pass through and invalidate. The TTL is kept short so a stale
// read can only delay, never misreport, completion detection.
package cached

import (
	"context"
	"encoding/json"
	"time"

	"github.com/createsuite/createsuite/internal/domain/agent"
	"github.com/createsuite/createsuite/internal/domain/convoy"
	"github.com/createsuite/createsuite/internal/domain/task"
	"github.com/createsuite/createsuite/internal/port/cache"
	"github.com/createsuite/createsuite/internal/port/database"
)

// Store wraps a database.Store with a cache for GetTask, GetAgent, and
// GetConvoy. All other methods delegate directly.
type Store struct {
	database.Store
	cache cache.Cache
	ttl   time.Duration
}

// New creates a cached store decorator.
func New(inner database.Store, c cache.Cache, ttl time.Duration) *Store {
	return &Store{Store: inner, cache: c, ttl: ttl}
}

func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	var t task.Task
	if ok := s.cacheGet(ctx, "task:"+id, &t); ok {
		return &t, nil
	}
	got, err := s.Store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, "task:"+id, got)
	return got, nil
}

func (s *Store) UpdateTask(ctx context.Context, t *task.Task) error {
	if err := s.Store.UpdateTask(ctx, t); err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, "task:"+t.ID)
	return nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	var a agent.Agent
	if ok := s.cacheGet(ctx, "agent:"+id, &a); ok {
		return &a, nil
	}
	got, err := s.Store.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, "agent:"+id, got)
	return got, nil
}

func (s *Store) UpdateAgent(ctx context.Context, a *agent.Agent) error {
	if err := s.Store.UpdateAgent(ctx, a); err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, "agent:"+a.ID)
	return nil
}

func (s *Store) GetConvoy(ctx context.Context, id string) (*convoy.Convoy, error) {
	var c convoy.Convoy
	if ok := s.cacheGet(ctx, "convoy:"+id, &c); ok {
		return &c, nil
	}
	got, err := s.Store.GetConvoy(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, "convoy:"+id, got)
	return got, nil
}

func (s *Store) UpdateConvoy(ctx context.Context, c *convoy.Convoy) error {
	if err := s.Store.UpdateConvoy(ctx, c); err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, "convoy:"+c.ID)
	return nil
}

func (s *Store) cacheGet(ctx context.Context, key string, dst any) bool {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *Store) cacheSet(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, key, data, s.ttl)
}
