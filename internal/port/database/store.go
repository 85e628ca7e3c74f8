// Package database defines the entity store port (interface).
package database

import (
	"context"

	"github.com/createsuite/createsuite/internal/domain/agent"
	"github.com/createsuite/createsuite/internal/domain/convoy"
	"github.com/createsuite/createsuite/internal/domain/pipeline"
	"github.com/createsuite/createsuite/internal/domain/repo"
	"github.com/createsuite/createsuite/internal/domain/task"
)

// Store is the port interface for entity persistence. Writes are
// per-entity and not transactionally coordinated across kinds: a task
// update and its convoy's status update are two independent writes.
type Store interface {
	// Tasks
	CreateTask(ctx context.Context, t *task.Task) error
	GetTask(ctx context.Context, id string) (*task.Task, error)
	ListTasks(ctx context.Context) ([]task.Task, error)
	UpdateTask(ctx context.Context, t *task.Task) error

	// Agents
	CreateAgent(ctx context.Context, a *agent.Agent) error
	GetAgent(ctx context.Context, id string) (*agent.Agent, error)
	ListAgents(ctx context.Context) ([]agent.Agent, error)
	UpdateAgent(ctx context.Context, a *agent.Agent) error

	// Convoys
	CreateConvoy(ctx context.Context, c *convoy.Convoy) error
	GetConvoy(ctx context.Context, id string) (*convoy.Convoy, error)
	ListConvoys(ctx context.Context) ([]convoy.Convoy, error)
	UpdateConvoy(ctx context.Context, c *convoy.Convoy) error

	// Repository handles, keyed by owner/name; SaveRepo upserts.
	SaveRepo(ctx context.Context, r *repo.Repo) error
	GetRepo(ctx context.Context, owner, name string) (*repo.Repo, error)
	ListRepos(ctx context.Context) ([]repo.Repo, error)

	// Pipeline status records; SavePipeline upserts so the record can be
	// rewritten after every phase transition.
	SavePipeline(ctx context.Context, st *pipeline.Status) error
	GetPipeline(ctx context.Context, id string) (*pipeline.Status, error)
	ListPipelines(ctx context.Context) ([]pipeline.Status, error)
}
