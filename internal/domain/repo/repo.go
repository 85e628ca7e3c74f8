// Package repo defines the repository handle entity and URL parsing.
package repo

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/createsuite/createsuite/internal/domain"
)

// Repo is the handle for a cloned repository. There is exactly one handle
// per (owner, name) pair; re-cloning an existing handle pulls latest
// instead of cloning again.
type Repo struct {
	URL           string    `json:"url"`
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	LocalPath     string    `json:"local_path"`
	DefaultBranch string    `json:"default_branch"`
	ClonedAt      time.Time `json:"cloned_at"`
}

// ID returns the store key for this handle.
func (r *Repo) ID() string {
	return r.Owner + "/" + r.Name
}

// FullName returns the owner/name identifier used by the change-request CLI.
func (r *Repo) FullName() string {
	return r.Owner + "/" + r.Name
}

var (
	httpsPattern = regexp.MustCompile(`^https?://[^/]+/([^/]+)/([^/]+?)(?:\.git)?/?$`)
	sshPattern   = regexp.MustCompile(`^(?:ssh://)?git@[^:/]+[:/]([^/]+)/([^/]+?)(?:\.git)?$`)
)

// ParseURL extracts owner and name from an HTTPS or SSH-style repository URL.
// Returns domain.ErrInvalidRepoURL when neither pattern matches.
func ParseURL(url string) (owner, name string, err error) {
	url = strings.TrimSpace(url)
	for _, p := range []*regexp.Regexp{httpsPattern, sshPattern} {
		if m := p.FindStringSubmatch(url); m != nil {
			return m[1], m[2], nil
		}
	}
	return "", "", fmt.Errorf("parse %q: %w", url, domain.ErrInvalidRepoURL)
}
