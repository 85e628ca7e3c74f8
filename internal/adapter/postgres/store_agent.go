package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/createsuite/createsuite/internal/domain/agent"
)

const agentColumns = `id, name, status, current_task, runtime, remote_app_name, mailbox, capabilities, created_at`

func (s *Store) CreateAgent(ctx context.Context, a *agent.Agent) error {
	mailbox, err := jsonOrEmpty(a.Mailbox)
	if err != nil {
		return err
	}
	caps, err := jsonOrEmpty(a.Capabilities)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO agents (id, name, status, current_task, runtime, remote_app_name, mailbox, capabilities, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Name, a.Status, a.CurrentTask, a.Runtime, a.RemoteAppName, mailbox, caps, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create agent %s: %w", a.ID, err)
	}
	return nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)

	a, err := scanAgent(row)
	if err != nil {
		return nil, notFoundWrap(err, "get agent %s", id)
	}
	return &a, nil
}

func (s *Store) ListAgents(ctx context.Context) ([]agent.Agent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+agentColumns+` FROM agents ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []agent.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (s *Store) UpdateAgent(ctx context.Context, a *agent.Agent) error {
	mailbox, err := jsonOrEmpty(a.Mailbox)
	if err != nil {
		return err
	}
	caps, err := jsonOrEmpty(a.Capabilities)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE agents SET name = $2, status = $3, current_task = $4, runtime = $5, remote_app_name = $6, mailbox = $7, capabilities = $8
		 WHERE id = $1`,
		a.ID, a.Name, a.Status, a.CurrentTask, a.Runtime, a.RemoteAppName, mailbox, caps)
	return execExpectOne(tag, err, "update agent %s", a.ID)
}

func scanAgent(row scannable) (agent.Agent, error) {
	var a agent.Agent
	var mailbox, caps []byte
	if err := row.Scan(&a.ID, &a.Name, &a.Status, &a.CurrentTask, &a.Runtime, &a.RemoteAppName, &mailbox, &caps, &a.CreatedAt); err != nil {
		return a, err
	}
	if err := json.Unmarshal(mailbox, &a.Mailbox); err != nil {
		return a, fmt.Errorf("unmarshal mailbox: %w", err)
	}
	if err := json.Unmarshal(caps, &a.Capabilities); err != nil {
		return a, fmt.Errorf("unmarshal capabilities: %w", err)
	}
	return a, nil
}
