package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore backs the task queue and result store with a single table.
// A partial unique index on identity over live states makes Enqueue an
// atomic create-if-absent claim, so two concurrent requests for the same
// identity cannot both enqueue work.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Enqueue(ctx context.Context, identity string) (uuid.UUID, error) {
	handle := uuid.New()

	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO provision_tasks (id, identity, state)
		VALUES ($1, $2, 'PENDING')
		ON CONFLICT (identity) WHERE state IN ('PENDING', 'PROGRESS') DO NOTHING
		RETURNING id::text`,
		handle.String(), identity).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrDuplicate
		}
		return uuid.Nil, fmt.Errorf("failed to enqueue task for %s: %w", identity, err)
	}
	return handle, nil
}

// Claim picks the oldest pending task and moves it to PROGRESS. SKIP LOCKED
// keeps concurrent workers from fighting over the same row.
func (s *PostgresStore) Claim(ctx context.Context) (*Task, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE provision_tasks
		SET state = 'PROGRESS', updated_at = now()
		WHERE id = (
			SELECT id FROM provision_tasks
			WHERE state = 'PENDING'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id::text, identity, state, result, created_at, updated_at`)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) Complete(ctx context.Context, handle uuid.UUID, state State, result *Result) error {
	if !state.Terminal() {
		return ErrTerminal
	}

	var payload []byte
	if result != nil {
		var err error
		payload, err = json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to encode task result: %w", err)
		}
	}

	// The state guard keeps terminal records immutable; a second Complete
	// for the same handle matches no row.
	tag, err := s.pool.Exec(ctx, `
		UPDATE provision_tasks
		SET state = $2, result = $3, updated_at = now()
		WHERE id = $1 AND state = 'PROGRESS'`,
		handle.String(), string(state), payload)
	if err != nil {
		return fmt.Errorf("failed to complete task %s: %w", handle, err)
	}
	if tag.RowsAffected() == 0 {
		var current string
		err := s.pool.QueryRow(ctx,
			`SELECT state FROM provision_tasks WHERE id = $1`, handle.String()).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to inspect task %s: %w", handle, err)
		}
		return ErrTerminal
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, handle uuid.UUID) (*Task, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id::text, identity, state, result, created_at, updated_at
		FROM provision_tasks
		WHERE id = $1`,
		handle.String())

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load task %s: %w", handle, err)
	}
	return t, nil
}

func scanTask(row pgx.Row) (*Task, error) {
	var (
		id        string
		identity  string
		state     string
		payload   []byte
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &identity, &state, &payload, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	handle, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid task id %q: %w", id, err)
	}

	t := &Task{
		Handle:    handle,
		Identity:  identity,
		State:     State(state),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	if len(payload) > 0 {
		var res Result
		if err := json.Unmarshal(payload, &res); err != nil {
			return nil, fmt.Errorf("invalid result payload for task %s: %w", id, err)
		}
		t.Result = &res
	}
	return t, nil
}
