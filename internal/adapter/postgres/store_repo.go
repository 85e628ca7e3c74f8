package postgres

import (
	"context"
	"fmt"

	"github.com/createsuite/createsuite/internal/domain/repo"
)

const repoColumns = `url, owner, name, local_path, default_branch, cloned_at`

func (s *Store) SaveRepo(ctx context.Context, r *repo.Repo) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO repos (id, url, owner, name, local_path, default_branch, cloned_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   url = EXCLUDED.url, local_path = EXCLUDED.local_path,
		   default_branch = EXCLUDED.default_branch, cloned_at = EXCLUDED.cloned_at`,
		r.ID(), r.URL, r.Owner, r.Name, r.LocalPath, r.DefaultBranch, r.ClonedAt)
	if err != nil {
		return fmt.Errorf("save repo %s: %w", r.ID(), err)
	}
	return nil
}

func (s *Store) GetRepo(ctx context.Context, owner, name string) (*repo.Repo, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+repoColumns+` FROM repos WHERE id = $1`, owner+"/"+name)

	var r repo.Repo
	if err := row.Scan(&r.URL, &r.Owner, &r.Name, &r.LocalPath, &r.DefaultBranch, &r.ClonedAt); err != nil {
		return nil, notFoundWrap(err, "get repo %s/%s", owner, name)
	}
	return &r, nil
}

func (s *Store) ListRepos(ctx context.Context) ([]repo.Repo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+repoColumns+` FROM repos ORDER BY cloned_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list repos: %w", err)
	}
	defer rows.Close()

	var repos []repo.Repo
	for rows.Next() {
		var r repo.Repo
		if err := rows.Scan(&r.URL, &r.Owner, &r.Name, &r.LocalPath, &r.DefaultBranch, &r.ClonedAt); err != nil {
			return nil, fmt.Errorf("scan repo: %w", err)
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}
