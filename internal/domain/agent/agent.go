// Package agent defines the Agent domain entity and its mailbox.
package agent

import "time"

// Status represents the current state of an agent.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusWorking Status = "working"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

// Runtime identifies where an agent's worker process runs.
type Runtime string

const (
	RuntimeLocal  Runtime = "local"
	RuntimeRemote Runtime = "remote"
)

// Agent is a supervised worker capable of executing one task at a time.
// CurrentTask is a weak reference resolved through the store at read time.
// The live worker process handle is tracked out-of-band by the supervisor
// and never persisted.
type Agent struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Status        Status    `json:"status"`
	CurrentTask   string    `json:"current_task,omitempty"`
	Runtime       Runtime   `json:"runtime"`
	RemoteAppName string    `json:"remote_app_name,omitempty"`
	Mailbox       []Message `json:"mailbox"`
	Capabilities  []string  `json:"capabilities"`
	CreatedAt     time.Time `json:"created_at"`
}

// Message is a mailbox entry owned by the receiving agent. Messages are
// appended, never removed; only the read flag is mutated in place.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// CreateRequest holds the fields needed to create a new agent.
type CreateRequest struct {
	Name          string   `json:"name"`
	Runtime       Runtime  `json:"runtime"`
	RemoteAppName string   `json:"remote_app_name,omitempty"`
	Capabilities  []string `json:"capabilities,omitempty"`
}
