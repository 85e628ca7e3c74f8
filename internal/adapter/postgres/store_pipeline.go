package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/createsuite/createsuite/internal/domain/pipeline"
)

const pipelineColumns = `id, repo_url, goal, phase, convoy_id, change_request_url, started_at, completed_at, error`

func (s *Store) SavePipeline(ctx context.Context, st *pipeline.Status) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipelines (id, repo_url, goal, phase, convoy_id, change_request_url, started_at, completed_at, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   phase = EXCLUDED.phase, convoy_id = EXCLUDED.convoy_id,
		   change_request_url = EXCLUDED.change_request_url,
		   completed_at = EXCLUDED.completed_at, error = EXCLUDED.error`,
		st.ID, st.RepoURL, st.Goal, st.Phase, st.ConvoyID, st.ChangeRequestURL,
		st.StartedAt, nullTime(st.CompletedAt), st.Error)
	if err != nil {
		return fmt.Errorf("save pipeline %s: %w", st.ID, err)
	}
	return nil
}

func (s *Store) GetPipeline(ctx context.Context, id string) (*pipeline.Status, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pipelineColumns+` FROM pipelines WHERE id = $1`, id)

	st, err := scanPipeline(row)
	if err != nil {
		return nil, notFoundWrap(err, "get pipeline %s", id)
	}
	return &st, nil
}

func (s *Store) ListPipelines(ctx context.Context) ([]pipeline.Status, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pipelineColumns+` FROM pipelines ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	var statuses []pipeline.Status
	for rows.Next() {
		st, err := scanPipeline(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

func scanPipeline(row scannable) (pipeline.Status, error) {
	var st pipeline.Status
	var completed sql.NullTime
	if err := row.Scan(&st.ID, &st.RepoURL, &st.Goal, &st.Phase, &st.ConvoyID,
		&st.ChangeRequestURL, &st.StartedAt, &completed, &st.Error); err != nil {
		return st, err
	}
	if completed.Valid {
		t := completed.Time
		st.CompletedAt = &t
	}
	return st, nil
}
