package git

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/createsuite/createsuite/internal/config"
	"github.com/createsuite/createsuite/internal/domain/repo"
	"github.com/createsuite/createsuite/internal/port/database"
)

// Gateway performs clone, branch, commit, and push operations for the
// pipeline. Repository handles are persisted through the entity store so
// a second clone of the same owner/name pulls latest instead.
type Gateway struct {
	store database.Store
	pool  *Pool
	cfg   config.Git

	// execCommand is swappable for testing.
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewGateway creates a Gateway with a shared git operation pool.
func NewGateway(store database.Store, pool *Pool, cfg config.Git) *Gateway {
	return &Gateway{
		store:       store,
		pool:        pool,
		cfg:         cfg,
		execCommand: exec.CommandContext,
	}
}

// CloneOptions controls how a repository is cloned.
type CloneOptions struct {
	Depth  int    // shallow clone depth; 0 means full history
	Branch string // specific branch; empty means the remote default
	Token  string // access token embedded in the clone URL for private repos
}

// PushResult reports the outcome of CommitAndPush. A failed push is a
// soft outcome: Pushed is false but CommitHash is still set.
type PushResult struct {
	Pushed     bool   `json:"pushed"`
	CommitHash string `json:"commit_hash,omitempty"`
}

// Clone clones url into the workspace directory and persists the handle.
// If a handle for the same owner/name already exists and its working copy
// is still on disk, the existing clone is pulled instead.
func (g *Gateway) Clone(ctx context.Context, url string, opts CloneOptions) (*repo.Repo, error) {
	owner, name, err := repo.ParseURL(url)
	if err != nil {
		return nil, err
	}

	if existing, err := g.store.GetRepo(ctx, owner, name); err == nil {
		if _, statErr := os.Stat(existing.LocalPath); statErr == nil {
			if pullErr := g.run(ctx, existing.LocalPath, "pull"); pullErr != nil {
				return nil, fmt.Errorf("pull existing clone: %w", pullErr)
			}
			existing.ClonedAt = time.Now()
			if err := g.store.SaveRepo(ctx, existing); err != nil {
				return nil, fmt.Errorf("refresh repo handle: %w", err)
			}
			slog.Info("repo already cloned, pulled latest", "repo", existing.ID())
			return existing, nil
		}
	}

	dest := filepath.Join(g.cfg.WorkspaceDir, owner, name)
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}

	args := []string{"clone"}
	if opts.Depth > 0 {
		args = append(args, "--depth", fmt.Sprintf("%d", opts.Depth))
	}
	if opts.Branch != "" {
		args = append(args, "--branch", opts.Branch)
	}
	args = append(args, cloneURL(url, opts.Token), dest)

	if err := g.run(ctx, "", args...); err != nil {
		return nil, fmt.Errorf("clone %s: %w", url, err)
	}

	branch, err := g.output(ctx, dest, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("detect default branch: %w", err)
	}

	// Fixed bot identity for pipeline commits.
	if err := g.run(ctx, dest, "config", "user.name", g.cfg.BotName); err != nil {
		return nil, fmt.Errorf("configure bot name: %w", err)
	}
	if err := g.run(ctx, dest, "config", "user.email", g.cfg.BotEmail); err != nil {
		return nil, fmt.Errorf("configure bot email: %w", err)
	}

	r := &repo.Repo{
		URL:           url,
		Owner:         owner,
		Name:          name,
		LocalPath:     dest,
		DefaultBranch: strings.TrimSpace(branch),
		ClonedAt:      time.Now(),
	}
	if err := g.store.SaveRepo(ctx, r); err != nil {
		return nil, fmt.Errorf("save repo handle: %w", err)
	}

	slog.Info("repo cloned", "repo", r.ID(), "path", dest, "branch", r.DefaultBranch)
	return r, nil
}

// CreateWorkBranch checks out the default branch, pulls best-effort, and
// creates the work branch {prefix}/{taskID}/{agentID[:8]}. If the branch
// already exists, it is checked out instead; the call is idempotent.
func (g *Gateway) CreateWorkBranch(ctx context.Context, r *repo.Repo, agentID, taskID string) (string, error) {
	branch := fmt.Sprintf("%s/%s/%s", g.cfg.BranchPrefix, taskID, shortID(agentID))

	if err := g.run(ctx, r.LocalPath, "checkout", r.DefaultBranch); err != nil {
		return "", fmt.Errorf("checkout %s: %w", r.DefaultBranch, err)
	}

	// Local-only repos have no remote to pull from.
	if err := g.run(ctx, r.LocalPath, "pull"); err != nil {
		slog.Debug("pull before branching failed", "repo", r.ID(), "error", err)
	}

	if err := g.run(ctx, r.LocalPath, "checkout", "-b", branch); err != nil {
		if coErr := g.run(ctx, r.LocalPath, "checkout", branch); coErr != nil {
			return "", fmt.Errorf("checkout existing branch %s: %w", branch, coErr)
		}
	}

	return branch, nil
}

// CommitAndPush stages all changes and commits them on branch. A clean
// tree returns {Pushed: false} without committing. A push failure is
// reported through the result, not as an error.
func (g *Gateway) CommitAndPush(ctx context.Context, r *repo.Repo, branch, message string) (PushResult, error) {
	if err := g.run(ctx, r.LocalPath, "add", "-A"); err != nil {
		return PushResult{}, fmt.Errorf("stage changes: %w", err)
	}

	status, err := g.output(ctx, r.LocalPath, "status", "--porcelain")
	if err != nil {
		return PushResult{}, fmt.Errorf("status: %w", err)
	}
	if strings.TrimSpace(status) == "" {
		slog.Info("working tree clean, nothing to commit", "repo", r.ID())
		return PushResult{Pushed: false}, nil
	}

	if err := g.run(ctx, r.LocalPath, "commit", "-m", message); err != nil {
		return PushResult{}, fmt.Errorf("commit: %w", err)
	}

	hash, err := g.output(ctx, r.LocalPath, "rev-parse", "HEAD")
	if err != nil {
		return PushResult{}, fmt.Errorf("rev-parse: %w", err)
	}
	commitHash := strings.TrimSpace(hash)

	if err := g.run(ctx, r.LocalPath, "push", "-u", "origin", branch); err != nil {
		slog.Warn("push failed", "repo", r.ID(), "branch", branch, "error", err)
		return PushResult{Pushed: false, CommitHash: commitHash}, nil
	}

	slog.Info("changes pushed", "repo", r.ID(), "branch", branch, "hash", commitHash)
	return PushResult{Pushed: true, CommitHash: commitHash}, nil
}

// run executes a git command in dir, discarding stdout.
func (g *Gateway) run(ctx context.Context, dir string, args ...string) error {
	_, err := g.output(ctx, dir, args...)
	return err
}

// output executes a git command in dir and returns its stdout.
func (g *Gateway) output(ctx context.Context, dir string, args ...string) (string, error) {
	var out string
	err := g.pool.Run(ctx, func() error {
		cmd := g.execCommand(ctx, "git", args...)
		if dir != "" {
			cmd.Dir = dir
		}

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return fmt.Errorf("git %s: %s: %w", args[0], strings.TrimSpace(stderr.String()), err)
		}
		out = stdout.String()
		return nil
	})
	return out, err
}

// cloneURL embeds an access token into an HTTPS clone URL. SSH URLs and
// tokenless clones pass through unchanged.
func cloneURL(url, token string) string {
	if token == "" || !strings.HasPrefix(url, "https://") {
		return url
	}
	return "https://x-access-token:" + token + "@" + strings.TrimPrefix(url, "https://")
}

// shortID truncates an agent ID to 8 characters for branch names.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
