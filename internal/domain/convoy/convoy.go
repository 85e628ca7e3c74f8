// Package convoy defines the Convoy domain entity: a named group of tasks
// tracked together for aggregate progress.
package convoy

import "time"

// Status represents the current state of a convoy.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusPaused    Status = "paused"
)

// Convoy groups task IDs by membership, not ownership. Once a convoy is
// completed, no further task additions are accepted.
type Convoy struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TaskIDs     []string  `json:"task_ids"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Progress is the aggregate task state of a convoy. Tasks referenced by the
// convoy but missing from the store are excluded from all counts.
type Progress struct {
	Total           int `json:"total"`
	Completed       int `json:"completed"`
	InProgress      int `json:"in_progress"`
	Open            int `json:"open"`
	PercentComplete int `json:"percent_complete"`
}

// Done reports whether every tracked task has completed. A convoy with no
// resolvable tasks is never done.
func (p Progress) Done() bool {
	return p.Total > 0 && p.Completed == p.Total
}
