// Package provision is the gateway for the asynchronous provisioning
// workflow: create a task for a new identity, poll its status, fetch the
// finished bundle with a derived token.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/telspan/vpn-provision/internal/bundle"
	"github.com/telspan/vpn-provision/internal/identity"
	"github.com/telspan/vpn-provision/internal/secret"
	"github.com/telspan/vpn-provision/internal/tasks"
)

var (
	// ErrAlreadyProvisioned means the bundle exists; re-provisioning an
	// identity is rejected, never overwritten.
	ErrAlreadyProvisioned = errors.New("client already exists")
	// ErrProvisioningInFlight means a live task holds the identity.
	ErrProvisioningInFlight = errors.New("provisioning already in progress for this identity")
	// ErrUnauthorized is deliberately silent about whether the identity
	// exists.
	ErrUnauthorized = errors.New("unauthorized")
)

type Service struct {
	deriver *secret.Deriver
	bundles *bundle.Store
	store   tasks.Store
}

func NewService(deriver *secret.Deriver, bundles *bundle.Store, store tasks.Store) *Service {
	return &Service{
		deriver: deriver,
		bundles: bundles,
		store:   store,
	}
}

type CreateResult struct {
	Handle   uuid.UUID
	Identity string
	Token    string
}

// Create validates the identity, enqueues certificate generation and hands
// back the task handle plus the derived token the caller will use to fetch
// the bundle later. The token is recomputable, so nothing is stored.
func (s *Service) Create(ctx context.Context, id string) (*CreateResult, error) {
	if err := identity.Validate(id); err != nil {
		return nil, err
	}

	if s.bundles.Exists(id) {
		return nil, ErrAlreadyProvisioned
	}

	handle, err := s.store.Enqueue(ctx, id)
	if err != nil {
		if errors.Is(err, tasks.ErrDuplicate) {
			return nil, ErrProvisioningInFlight
		}
		return nil, fmt.Errorf("failed to enqueue provisioning for %s: %w", id, err)
	}

	slog.Info("Provisioning task enqueued", "identity", id, "handle", handle)
	return &CreateResult{
		Handle:   handle,
		Identity: id,
		Token:    s.deriver.Derive(id),
	}, nil
}

// PollStatus classifies a task for the caller.
type PollStatus int

const (
	// StatusProcessing covers pending, in-progress and unknown handles.
	// Result-store entries expire on their own schedule, so an unknown
	// handle is reported as still processing rather than an error.
	StatusProcessing PollStatus = iota
	StatusSucceeded
	// StatusFailed is a payload-level failure: the CA tool or assembly
	// reported an error for this identity.
	StatusFailed
	// StatusWorkerFailure is a crash with no payload.
	StatusWorkerFailure
)

type PollResult struct {
	Status PollStatus
	Result *tasks.Result
}

// Poll reports the lifecycle state for a task handle.
func (s *Service) Poll(ctx context.Context, handle string) (*PollResult, error) {
	h, err := uuid.Parse(handle)
	if err != nil {
		return &PollResult{Status: StatusProcessing}, nil
	}

	t, err := s.store.Get(ctx, h)
	if err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			return &PollResult{Status: StatusProcessing}, nil
		}
		return nil, fmt.Errorf("failed to load task %s: %w", handle, err)
	}

	if !t.State.Terminal() {
		return &PollResult{Status: StatusProcessing}, nil
	}
	if t.Result == nil {
		return &PollResult{Status: StatusWorkerFailure}, nil
	}
	if t.Result.Status == tasks.StatusSuccess {
		return &PollResult{Status: StatusSucceeded, Result: t.Result}, nil
	}
	return &PollResult{Status: StatusFailed, Result: t.Result}, nil
}

// Fetch verifies the token and returns the assembled bundle. Verification
// runs before any filesystem access and a mismatch reveals nothing about
// whether the identity exists.
func (s *Service) Fetch(ctx context.Context, id, token string) ([]byte, error) {
	if err := identity.Validate(id); err != nil {
		return nil, ErrUnauthorized
	}
	if !s.deriver.Verify(id, token) {
		slog.Warn("Bundle fetch with invalid token", "identity", id)
		return nil, ErrUnauthorized
	}
	return s.bundles.Read(id)
}
