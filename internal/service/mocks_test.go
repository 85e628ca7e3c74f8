package service

import (
	"context"
	"sync"

	"github.com/createsuite/createsuite/internal/adapter/runner"
	"github.com/createsuite/createsuite/internal/changerequest"
	"github.com/createsuite/createsuite/internal/domain"
	"github.com/createsuite/createsuite/internal/domain/agent"
	"github.com/createsuite/createsuite/internal/domain/convoy"
	"github.com/createsuite/createsuite/internal/domain/pipeline"
	"github.com/createsuite/createsuite/internal/domain/repo"
	"github.com/createsuite/createsuite/internal/domain/task"
	"github.com/createsuite/createsuite/internal/git"
	"github.com/createsuite/createsuite/internal/port/database"
	"github.com/createsuite/createsuite/internal/port/messagequeue"
)

// memStore is an in-memory database.Store for tests. List order follows
// insertion order.
type memStore struct {
	mu        sync.Mutex
	tasks     map[string]task.Task
	taskOrder []string
	agents    map[string]agent.Agent
	agentOrd  []string
	convoys   map[string]convoy.Convoy
	convoyOrd []string
	repos     map[string]repo.Repo
	pipelines map[string]pipeline.Status
	pipeOrd   []string

	failCreateTask error
}

var _ database.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		tasks:     map[string]task.Task{},
		agents:    map[string]agent.Agent{},
		convoys:   map[string]convoy.Convoy{},
		repos:     map[string]repo.Repo{},
		pipelines: map[string]pipeline.Status{},
	}
}

func (m *memStore) CreateTask(_ context.Context, t *task.Task) error {
	if m.failCreateTask != nil {
		return m.failCreateTask
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = *t
	m.taskOrder = append(m.taskOrder, t.ID)
	return nil
}

func (m *memStore) GetTask(_ context.Context, id string) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (m *memStore) ListTasks(_ context.Context) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]task.Task, 0, len(m.taskOrder))
	for _, id := range m.taskOrder {
		out = append(out, m.tasks[id])
	}
	return out, nil
}

func (m *memStore) UpdateTask(_ context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return domain.ErrNotFound
	}
	m.tasks[t.ID] = *t
	return nil
}

func (m *memStore) CreateAgent(_ context.Context, a *agent.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[a.ID] = *a
	m.agentOrd = append(m.agentOrd, a.ID)
	return nil
}

func (m *memStore) GetAgent(_ context.Context, id string) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (m *memStore) ListAgents(_ context.Context) ([]agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]agent.Agent, 0, len(m.agentOrd))
	for _, id := range m.agentOrd {
		out = append(out, m.agents[id])
	}
	return out, nil
}

func (m *memStore) UpdateAgent(_ context.Context, a *agent.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[a.ID]; !ok {
		return domain.ErrNotFound
	}
	m.agents[a.ID] = *a
	return nil
}

func (m *memStore) CreateConvoy(_ context.Context, c *convoy.Convoy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convoys[c.ID] = *c
	m.convoyOrd = append(m.convoyOrd, c.ID)
	return nil
}

func (m *memStore) GetConvoy(_ context.Context, id string) (*convoy.Convoy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convoys[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (m *memStore) ListConvoys(_ context.Context) ([]convoy.Convoy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]convoy.Convoy, 0, len(m.convoyOrd))
	for _, id := range m.convoyOrd {
		out = append(out, m.convoys[id])
	}
	return out, nil
}

func (m *memStore) UpdateConvoy(_ context.Context, c *convoy.Convoy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.convoys[c.ID]; !ok {
		return domain.ErrNotFound
	}
	m.convoys[c.ID] = *c
	return nil
}

func (m *memStore) SaveRepo(_ context.Context, r *repo.Repo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repos[r.ID()] = *r
	return nil
}

func (m *memStore) GetRepo(_ context.Context, owner, name string) (*repo.Repo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.repos[owner+"/"+name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (m *memStore) ListRepos(_ context.Context) ([]repo.Repo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repo.Repo, 0, len(m.repos))
	for _, r := range m.repos {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) SavePipeline(_ context.Context, st *pipeline.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pipelines[st.ID]; !ok {
		m.pipeOrd = append(m.pipeOrd, st.ID)
	}
	m.pipelines[st.ID] = *st
	return nil
}

func (m *memStore) GetPipeline(_ context.Context, id string) (*pipeline.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.pipelines[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &st, nil
}

func (m *memStore) ListPipelines(_ context.Context) ([]pipeline.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]pipeline.Status, 0, len(m.pipeOrd))
	for _, id := range m.pipeOrd {
		out = append(out, m.pipelines[id])
	}
	return out, nil
}

// memQueue is an in-process messagequeue.Queue delivering synchronously.
type memQueue struct {
	mu       sync.Mutex
	handlers map[string][]messagequeue.Handler
	messages map[string][][]byte
}

var _ messagequeue.Queue = (*memQueue)(nil)

func newMemQueue() *memQueue {
	return &memQueue{
		handlers: map[string][]messagequeue.Handler{},
		messages: map[string][][]byte{},
	}
}

func (q *memQueue) Publish(ctx context.Context, subject string, data []byte) error {
	q.mu.Lock()
	q.messages[subject] = append(q.messages[subject], data)
	handlers := append([]messagequeue.Handler(nil), q.handlers[subject]...)
	q.mu.Unlock()
	for _, h := range handlers {
		_ = h(ctx, subject, data)
	}
	return nil
}

func (q *memQueue) Subscribe(_ context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[subject] = append(q.handlers[subject], handler)
	return func() {}, nil
}

func (q *memQueue) Drain() error      { return nil }
func (q *memQueue) Close() error      { return nil }
func (q *memQueue) IsConnected() bool { return true }

// fakeVCS implements versionControl without touching git.
type fakeVCS struct {
	cloneErr   error
	commitErr  error
	pushResult git.PushResult
	cloned     []string
	branches   []string
	commits    []string
}

func (f *fakeVCS) Clone(_ context.Context, url string, _ git.CloneOptions) (*repo.Repo, error) {
	if f.cloneErr != nil {
		return nil, f.cloneErr
	}
	f.cloned = append(f.cloned, url)
	owner, name, err := repo.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &repo.Repo{URL: url, Owner: owner, Name: name, LocalPath: "/tmp/" + name, DefaultBranch: "main"}, nil
}

func (f *fakeVCS) CreateWorkBranch(_ context.Context, _ *repo.Repo, agentID, taskID string) (string, error) {
	branch := "createsuite/" + taskID + "/" + shortBranchID(agentID)
	f.branches = append(f.branches, branch)
	return branch, nil
}

func (f *fakeVCS) CommitAndPush(_ context.Context, _ *repo.Repo, branch, message string) (git.PushResult, error) {
	if f.commitErr != nil {
		return git.PushResult{}, f.commitErr
	}
	f.commits = append(f.commits, branch+": "+message)
	return f.pushResult, nil
}

func shortBranchID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// fakeCRS implements changeRequestGateway.
type fakeCRS struct {
	err     error
	created []string
}

func (f *fakeCRS) Create(_ context.Context, _ *repo.Repo, branch, title, _ string) (*changerequest.ChangeRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, branch)
	return &changerequest.ChangeRequest{
		Number: 1,
		URL:    "https://github.com/acme/widgets/pull/1",
		Title:  title,
		Branch: branch,
		State:  "OPEN",
	}, nil
}

// fakeRunner implements remoteRunner.
type fakeRunner struct {
	err   error
	calls int
}

func (f *fakeRunner) Start(context.Context, runner.StartRequest) (*runner.StartResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &runner.StartResponse{PipelineID: "remote-1"}, nil
}

// fakeWatcher implements CompletionWatcher and returns immediately.
type fakeWatcher struct {
	err   error
	waits int
}

func (f *fakeWatcher) Wait(context.Context, string) error {
	f.waits++
	return f.err
}

// fakeSupervisor implements workerSupervisor without real processes.
type fakeSupervisor struct {
	spawned []string
	stopped []string
}

func (f *fakeSupervisor) SpawnWorker(_ context.Context, agentID, _ string) error {
	f.spawned = append(f.spawned, agentID)
	return nil
}

func (f *fakeSupervisor) StopAgent(_ context.Context, agentID string) error {
	f.stopped = append(f.stopped, agentID)
	return nil
}
