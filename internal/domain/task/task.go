// Package task defines the Task domain entity.
package task

import "time"

// Status represents the current state of a task.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
)

// Priority ranks how urgently a task should be picked up.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Task is one decomposed unit of work derived from a goal.
// AssignedAgent is a weak reference: a lookup key into the agent store,
// never an embedded agent record.
type Task struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Status        Status    `json:"status"`
	AssignedAgent string    `json:"assigned_agent,omitempty"`
	Priority      Priority  `json:"priority"`
	Tags          []string  `json:"tags"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateRequest holds the fields needed to create a new task.
type CreateRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// AddTags appends only tags not already present, preserving order.
func (t *Task) AddTags(tags ...string) {
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		seen := false
		for _, existing := range t.Tags {
			if existing == tag {
				seen = true
				break
			}
		}
		if !seen {
			t.Tags = append(t.Tags, tag)
		}
	}
}

// Touch advances UpdatedAt, keeping it monotonically non-decreasing even
// if the wall clock stepped backwards.
func (t *Task) Touch(now time.Time) {
	if now.After(t.UpdatedAt) {
		t.UpdatedAt = now
	}
}
