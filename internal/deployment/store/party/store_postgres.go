// Package party reads worker and employer records from PostgreSQL. Both are
// maintained by upstream systems; this service only locks and reads them.
package party

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"workpermit/internal/deployment/models"
	id "workpermit/pkg/domain"
	"workpermit/pkg/platform/sentinel"
	"workpermit/pkg/platform/tx"
)

// WorkerPostgresStore reads workers from PostgreSQL.
type WorkerPostgresStore struct {
	db *sql.DB
}

// NewWorkerPostgres constructs a PostgreSQL-backed worker store.
func NewWorkerPostgres(db *sql.DB) *WorkerPostgresStore {
	return &WorkerPostgresStore{db: db}
}

func (s *WorkerPostgresStore) FindByID(ctx context.Context, workerID id.WorkerID) (*models.Worker, error) {
	query := `SELECT id, full_name, gender, created_at FROM workers WHERE id = $1`

	var (
		worker models.Worker
		wid    uuid.UUID
		gender string
	)
	var row *sql.Row
	if t, ok := tx.From(ctx); ok {
		row = t.QueryRowContext(ctx, query, uuid.UUID(workerID))
	} else {
		row = s.db.QueryRowContext(ctx, query, uuid.UUID(workerID))
	}
	err := row.Scan(&wid, &worker.FullName, &gender, &worker.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find worker: %w", err)
	}
	worker.ID = id.WorkerID(wid)
	worker.Gender = id.Gender(gender)
	return &worker, nil
}

// Lock takes a row lock on the worker so concurrent placements of the same
// worker serialize on a single row rather than racing the open-deployment
// lookup.
func (s *WorkerPostgresStore) Lock(ctx context.Context, workerID id.WorkerID) error {
	t, err := tx.Require(ctx)
	if err != nil {
		return err
	}
	var locked uuid.UUID
	err = t.QueryRowContext(ctx, `SELECT id FROM workers WHERE id = $1 FOR UPDATE`, uuid.UUID(workerID)).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("lock worker: %w", err)
	}
	return nil
}

// EmployerPostgresStore reads employers from PostgreSQL.
type EmployerPostgresStore struct {
	db *sql.DB
}

// NewEmployerPostgres constructs a PostgreSQL-backed employer store.
func NewEmployerPostgres(db *sql.DB) *EmployerPostgresStore {
	return &EmployerPostgresStore{db: db}
}

func (s *EmployerPostgresStore) FindByID(ctx context.Context, employerID id.EmployerID) (*models.Employer, error) {
	query := `SELECT id, name, created_at FROM employers WHERE id = $1`

	var (
		employer models.Employer
		eid      uuid.UUID
	)
	var row *sql.Row
	if t, ok := tx.From(ctx); ok {
		row = t.QueryRowContext(ctx, query, uuid.UUID(employerID))
	} else {
		row = s.db.QueryRowContext(ctx, query, uuid.UUID(employerID))
	}
	err := row.Scan(&eid, &employer.Name, &employer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find employer: %w", err)
	}
	employer.ID = id.EmployerID(eid)
	return &employer, nil
}
