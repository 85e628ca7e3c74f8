// Package changerequest opens and inspects pull requests through the gh CLI.
package changerequest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/createsuite/createsuite/internal/domain/repo"
)

// ChangeRequest is an open or closed pull request on the hosting service.
type ChangeRequest struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Branch string `json:"branch"`
	State  string `json:"state"`
}

// Status is the review state of a change request.
type Status struct {
	State     string `json:"state"`
	Mergeable string `json:"mergeable"`
	ChecksOK  bool   `json:"checks_ok"`
}

// Change is one line item listed in a generated change-request body.
type Change struct {
	Description string
	CommitHash  string
}

// Gateway drives the gh CLI against a cloned repository.
type Gateway struct {
	branchPrefix string

	// execCommand is swappable for testing.
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewGateway creates a Gateway that recognizes work branches by prefix.
func NewGateway(branchPrefix string) *Gateway {
	return &Gateway{
		branchPrefix: branchPrefix,
		execCommand:  exec.CommandContext,
	}
}

// ghPR mirrors the JSON output of `gh pr list/view --json`.
type ghPR struct {
	Number      int    `json:"number"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	HeadRefName string `json:"headRefName"`
	State       string `json:"state"`
}

// Create opens a pull request from branch against the repo's default
// branch. If a PR for the branch already exists, the existing one is
// returned instead of an error.
func (g *Gateway) Create(ctx context.Context, r *repo.Repo, branch, title, body string) (*ChangeRequest, error) {
	stdout, stderr, err := g.gh(ctx, r.LocalPath, "pr", "create",
		"--repo", r.FullName(),
		"--head", branch,
		"--base", r.DefaultBranch,
		"--title", title,
		"--body", body,
	)
	if err != nil {
		if strings.Contains(stderr, "already exists") {
			slog.Info("change request already exists, reusing", "repo", r.ID(), "branch", branch)
			return g.FindExisting(ctx, r, branch)
		}
		return nil, fmt.Errorf("gh pr create: %s: %w", strings.TrimSpace(stderr), err)
	}

	// gh prints the PR URL on success.
	url := strings.TrimSpace(stdout)
	cr := &ChangeRequest{
		URL:    url,
		Title:  title,
		Branch: branch,
		State:  "OPEN",
	}
	if n := numberFromURL(url); n > 0 {
		cr.Number = n
	}
	return cr, nil
}

// FindExisting returns the open pull request whose head is branch, or an
// error when none exists.
func (g *Gateway) FindExisting(ctx context.Context, r *repo.Repo, branch string) (*ChangeRequest, error) {
	stdout, stderr, err := g.gh(ctx, r.LocalPath, "pr", "list",
		"--repo", r.FullName(),
		"--head", branch,
		"--json", "number,url,title,headRefName,state",
	)
	if err != nil {
		return nil, fmt.Errorf("gh pr list: %s: %w", strings.TrimSpace(stderr), err)
	}

	var prs []ghPR
	if err := json.Unmarshal([]byte(stdout), &prs); err != nil {
		return nil, fmt.Errorf("parse gh output: %w", err)
	}
	if len(prs) == 0 {
		return nil, fmt.Errorf("no change request found for branch %s", branch)
	}
	return prToChangeRequest(&prs[0]), nil
}

// ListAgentChangeRequests lists open pull requests whose head branch
// carries the configured work-branch prefix.
func (g *Gateway) ListAgentChangeRequests(ctx context.Context, r *repo.Repo) ([]ChangeRequest, error) {
	stdout, stderr, err := g.gh(ctx, r.LocalPath, "pr", "list",
		"--repo", r.FullName(),
		"--json", "number,url,title,headRefName,state",
		"--limit", "100",
	)
	if err != nil {
		return nil, fmt.Errorf("gh pr list: %s: %w", strings.TrimSpace(stderr), err)
	}

	var prs []ghPR
	if err := json.Unmarshal([]byte(stdout), &prs); err != nil {
		return nil, fmt.Errorf("parse gh output: %w", err)
	}

	out := make([]ChangeRequest, 0, len(prs))
	for i := range prs {
		if strings.HasPrefix(prs[i].HeadRefName, g.branchPrefix+"/") {
			out = append(out, *prToChangeRequest(&prs[i]))
		}
	}
	return out, nil
}

// ghPRStatus mirrors the JSON output of `gh pr view --json`.
type ghPRStatus struct {
	State             string `json:"state"`
	Mergeable         string `json:"mergeable"`
	StatusCheckRollup []struct {
		Conclusion string `json:"conclusion"`
	} `json:"statusCheckRollup"`
}

// RequestStatus reports the review state of change request number.
func (g *Gateway) RequestStatus(ctx context.Context, r *repo.Repo, number int) (*Status, error) {
	stdout, stderr, err := g.gh(ctx, r.LocalPath, "pr", "view", strconv.Itoa(number),
		"--repo", r.FullName(),
		"--json", "state,mergeable,statusCheckRollup",
	)
	if err != nil {
		return nil, fmt.Errorf("gh pr view: %s: %w", strings.TrimSpace(stderr), err)
	}

	var raw ghPRStatus
	if err := json.Unmarshal([]byte(stdout), &raw); err != nil {
		return nil, fmt.Errorf("parse gh output: %w", err)
	}

	checksOK := true
	for _, c := range raw.StatusCheckRollup {
		if c.Conclusion != "" && c.Conclusion != "SUCCESS" && c.Conclusion != "NEUTRAL" && c.Conclusion != "SKIPPED" {
			checksOK = false
			break
		}
	}
	return &Status{State: raw.State, Mergeable: raw.Mergeable, ChecksOK: checksOK}, nil
}

// Comment posts body as a comment on change request number.
func (g *Gateway) Comment(ctx context.Context, r *repo.Repo, number int, body string) error {
	_, stderr, err := g.gh(ctx, r.LocalPath, "pr", "comment", strconv.Itoa(number),
		"--repo", r.FullName(),
		"--body", body,
	)
	if err != nil {
		return fmt.Errorf("gh pr comment: %s: %w", strings.TrimSpace(stderr), err)
	}
	return nil
}

// BuildBody renders the markdown body for a generated change request.
func BuildBody(goal, taskID, agentName, convoyID string, changes []Change) string {
	var b strings.Builder
	b.WriteString("## Goal\n\n")
	b.WriteString(goal)
	b.WriteString("\n\n## Changes\n\n")
	if len(changes) == 0 {
		b.WriteString("_No individual changes recorded._\n")
	}
	for _, c := range changes {
		b.WriteString("- ")
		b.WriteString(c.Description)
		if c.CommitHash != "" {
			b.WriteString(" (")
			b.WriteString(shortHash(c.CommitHash))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	b.WriteString("\n---\n")
	fmt.Fprintf(&b, "Task: `%s` | Agent: `%s`", taskID, agentName)
	if convoyID != "" {
		fmt.Fprintf(&b, " | Convoy: `%s`", convoyID)
	}
	b.WriteString("\n")
	return b.String()
}

func (g *Gateway) gh(ctx context.Context, dir string, args ...string) (stdout, stderr string, err error) {
	cmd := g.execCommand(ctx, "gh", args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err = cmd.Run()
	return out.String(), errb.String(), err
}

func prToChangeRequest(pr *ghPR) *ChangeRequest {
	return &ChangeRequest{
		Number: pr.Number,
		URL:    pr.URL,
		Title:  pr.Title,
		Branch: pr.HeadRefName,
		State:  pr.State,
	}
}

// numberFromURL extracts the PR number from a URL like
// https://github.com/owner/repo/pull/42.
func numberFromURL(url string) int {
	idx := strings.LastIndex(url, "/")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(url[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
