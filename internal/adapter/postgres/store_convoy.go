package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/createsuite/createsuite/internal/domain/convoy"
)

const convoyColumns = `id, name, description, task_ids, status, created_at`

func (s *Store) CreateConvoy(ctx context.Context, c *convoy.Convoy) error {
	taskIDs, err := jsonOrEmpty(c.TaskIDs)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO convoys (id, name, description, task_ids, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Name, c.Description, taskIDs, c.Status, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create convoy %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) GetConvoy(ctx context.Context, id string) (*convoy.Convoy, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+convoyColumns+` FROM convoys WHERE id = $1`, id)

	c, err := scanConvoy(row)
	if err != nil {
		return nil, notFoundWrap(err, "get convoy %s", id)
	}
	return &c, nil
}

func (s *Store) ListConvoys(ctx context.Context) ([]convoy.Convoy, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+convoyColumns+` FROM convoys ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list convoys: %w", err)
	}
	defer rows.Close()

	var convoys []convoy.Convoy
	for rows.Next() {
		c, err := scanConvoy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan convoy: %w", err)
		}
		convoys = append(convoys, c)
	}
	return convoys, rows.Err()
}

func (s *Store) UpdateConvoy(ctx context.Context, c *convoy.Convoy) error {
	taskIDs, err := jsonOrEmpty(c.TaskIDs)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE convoys SET name = $2, description = $3, task_ids = $4, status = $5
		 WHERE id = $1`,
		c.ID, c.Name, c.Description, taskIDs, c.Status)
	return execExpectOne(tag, err, "update convoy %s", c.ID)
}

func scanConvoy(row scannable) (convoy.Convoy, error) {
	var c convoy.Convoy
	var taskIDs []byte
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &taskIDs, &c.Status, &c.CreatedAt); err != nil {
		return c, err
	}
	if err := json.Unmarshal(taskIDs, &c.TaskIDs); err != nil {
		return c, fmt.Errorf("unmarshal task ids: %w", err)
	}
	return c, nil
}
