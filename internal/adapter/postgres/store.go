package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/createsuite/createsuite/internal/domain/task"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Tasks ---

const taskColumns = `id, title, description, status, assigned_agent, priority, tags, created_at, updated_at`

func (s *Store) CreateTask(ctx context.Context, t *task.Task) error {
	tags, err := jsonOrEmpty(t.Tags)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO tasks (id, title, description, status, assigned_agent, priority, tags, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Title, t.Description, t.Status, t.AssignedAgent, t.Priority, tags, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create task %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)

	t, err := scanTask(row)
	if err != nil {
		return nil, notFoundWrap(err, "get task %s", id)
	}
	return &t, nil
}

func (s *Store) ListTasks(ctx context.Context) ([]task.Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) UpdateTask(ctx context.Context, t *task.Task) error {
	tags, err := jsonOrEmpty(t.Tags)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET title = $2, description = $3, status = $4, assigned_agent = $5, priority = $6, tags = $7, updated_at = $8
		 WHERE id = $1`,
		t.ID, t.Title, t.Description, t.Status, t.AssignedAgent, t.Priority, tags, t.UpdatedAt)
	return execExpectOne(tag, err, "update task %s", t.ID)
}

func scanTask(row scannable) (task.Task, error) {
	var t task.Task
	var tags []byte
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.AssignedAgent, &t.Priority, &tags, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return t, err
	}
	if err := json.Unmarshal(tags, &t.Tags); err != nil {
		return t, fmt.Errorf("unmarshal tags: %w", err)
	}
	return t, nil
}
