// Package tasks tracks asynchronous provisioning work: a durable queue of
// pending tasks plus the per-handle status record callers poll.
package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a provisioning task.
// PENDING -> PROGRESS -> {SUCCESS | FAILURE}; terminal states are immutable.
type State string

const (
	StatePending  State = "PENDING"
	StateProgress State = "PROGRESS"
	StateSuccess  State = "SUCCESS"
	StateFailure  State = "FAILURE"
)

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// Result statuses carried in the completion payload.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the payload published when a task completes. A terminal task
// with no Result at all indicates a worker-level crash, which callers are
// told apart from a payload-level failure.
type Result struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Identity   string `json:"identity"`
	BundlePath string `json:"bundle_path,omitempty"`
}

type Task struct {
	Handle    uuid.UUID
	Identity  string
	State     State
	Result    *Result
	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	// ErrDuplicate means a live task already exists for the identity.
	ErrDuplicate = errors.New("a provisioning task is already in flight for this identity")
	// ErrEmpty means no pending task was available to claim.
	ErrEmpty = errors.New("no pending tasks")
	// ErrNotFound means the handle is unknown or the record expired.
	ErrNotFound = errors.New("task not found")
	// ErrTerminal means the task already reached a terminal state.
	ErrTerminal = errors.New("task is already terminal")
)

// Store is the shared queue and result backend. Enqueue takes the atomic
// per-identity create-if-absent claim, Claim moves the oldest pending task
// to PROGRESS, Complete publishes a terminal state exactly once.
type Store interface {
	Enqueue(ctx context.Context, identity string) (uuid.UUID, error)
	Claim(ctx context.Context) (*Task, error)
	Complete(ctx context.Context, handle uuid.UUID, state State, result *Result) error
	Get(ctx context.Context, handle uuid.UUID) (*Task, error)
}
