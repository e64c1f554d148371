package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for single-binary deployments and
// tests. The mutex is held across the duplicate check and the insert, which
// gives the same create-if-absent guarantee the Postgres store gets from its
// partial unique index.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*Task
	live    map[string]uuid.UUID
	pending []uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[uuid.UUID]*Task),
		live: make(map[string]uuid.UUID),
	}
}

func (m *MemoryStore) Enqueue(ctx context.Context, identity string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.live[identity]; exists {
		return uuid.Nil, ErrDuplicate
	}

	now := time.Now()
	t := &Task{
		Handle:    uuid.New(),
		Identity:  identity,
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.byID[t.Handle] = t
	m.live[identity] = t.Handle
	m.pending = append(m.pending, t.Handle)
	return t.Handle, nil
}

func (m *MemoryStore) Claim(ctx context.Context) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) == 0 {
		return nil, ErrEmpty
	}

	handle := m.pending[0]
	m.pending = m.pending[1:]

	t := m.byID[handle]
	t.State = StateProgress
	t.UpdatedAt = time.Now()
	return copyTask(t), nil
}

func (m *MemoryStore) Complete(ctx context.Context, handle uuid.UUID, state State, result *Result) error {
	if !state.Terminal() {
		return ErrTerminal
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.byID[handle]
	if !ok {
		return ErrNotFound
	}
	if t.State.Terminal() {
		return ErrTerminal
	}

	t.State = state
	t.Result = result
	t.UpdatedAt = time.Now()
	delete(m.live, t.Identity)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, handle uuid.UUID) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.byID[handle]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTask(t), nil
}

func copyTask(t *Task) *Task {
	c := *t
	if t.Result != nil {
		r := *t.Result
		c.Result = &r
	}
	return &c
}
