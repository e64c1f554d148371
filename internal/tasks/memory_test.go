package tasks

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueAndClaim(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	handle, err := s.Enqueue(ctx, "client7")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, handle)

	got, err := s.Get(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, StatePending, got.State)
	assert.Equal(t, "client7", got.Identity)

	claimed, err := s.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, handle, claimed.Handle)
	assert.Equal(t, StateProgress, claimed.State)
}

func TestEnqueueDuplicateLiveIdentity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Enqueue(ctx, "client7")
	require.NoError(t, err)

	_, err = s.Enqueue(ctx, "client7")
	assert.ErrorIs(t, err, ErrDuplicate)

	// Still in flight after claim.
	_, err = s.Claim(ctx)
	require.NoError(t, err)
	_, err = s.Enqueue(ctx, "client7")
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestEnqueueAfterTerminal(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	handle, err := s.Enqueue(ctx, "client7")
	require.NoError(t, err)
	_, err = s.Claim(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, handle, StateFailure, &Result{Status: StatusError, Message: "tool failed", Identity: "client7"}))

	// A finished identity may be retried.
	_, err = s.Enqueue(ctx, "client7")
	assert.NoError(t, err)
}

func TestClaimEmpty(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Claim(context.Background())
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestClaimFIFO(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, err := s.Enqueue(ctx, "client1")
	require.NoError(t, err)
	second, err := s.Enqueue(ctx, "client2")
	require.NoError(t, err)

	a, err := s.Claim(ctx)
	require.NoError(t, err)
	b, err := s.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, a.Handle)
	assert.Equal(t, second, b.Handle)
}

func TestCompleteTerminalImmutable(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	handle, err := s.Enqueue(ctx, "client7")
	require.NoError(t, err)
	_, err = s.Claim(ctx)
	require.NoError(t, err)

	res := &Result{Status: StatusSuccess, Message: "done", Identity: "client7", BundlePath: "/tmp/client7.ovpn"}
	require.NoError(t, s.Complete(ctx, handle, StateSuccess, res))

	err = s.Complete(ctx, handle, StateFailure, &Result{Status: StatusError, Identity: "client7"})
	assert.ErrorIs(t, err, ErrTerminal)

	got, err := s.Get(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, got.State)
	require.NotNil(t, got.Result)
	assert.Equal(t, StatusSuccess, got.Result.Status)
	assert.Equal(t, "/tmp/client7.ovpn", got.Result.BundlePath)
}

func TestCompleteRejectsNonTerminalState(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	handle, err := s.Enqueue(ctx, "client7")
	require.NoError(t, err)

	err = s.Complete(ctx, handle, StateProgress, nil)
	assert.ErrorIs(t, err, ErrTerminal)
}

func TestGetUnknownHandle(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	handle, err := s.Enqueue(ctx, "client7")
	require.NoError(t, err)

	got, err := s.Get(ctx, handle)
	require.NoError(t, err)
	got.State = StateFailure

	again, err := s.Get(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, StatePending, again.State)
}
