// Package deployment persists worker placements in PostgreSQL.
package deployment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"workpermit/internal/deployment/models"
	id "workpermit/pkg/domain"
	"workpermit/pkg/platform/sentinel"
	"workpermit/pkg/platform/tx"
)

// PostgresStore persists deployments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed deployment store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

const deploymentColumns = `id, worker_id, employer_id, recruitment_letter_id, source_type, status, service_status, entry_permit_number, start_date, end_date, termination_reason, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, dep *models.Deployment) error {
	query := `
		INSERT INTO deployments (` + deploymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(dep.ID),
		uuid.UUID(dep.WorkerID),
		uuid.UUID(dep.EmployerID),
		letterArg(dep.LetterID),
		dep.SourceType,
		dep.Status,
		dep.ServiceStatus,
		nullString(dep.EntryPermitNumber),
		dep.StartDate,
		nullTime(dep.EndDate),
		nullString(dep.TerminationReason),
		dep.CreatedAt,
		dep.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create deployment: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, deploymentID id.DeploymentID) (*models.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE id = $1`
	dep, err := scanDeployment(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(deploymentID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find deployment: %w", err)
	}
	return dep, nil
}

// FindOpenByWorker returns the worker's open deployment, or nil when the
// worker is unplaced. At most one open row can exist per worker.
func (s *PostgresStore) FindOpenByWorker(ctx context.Context, workerID id.WorkerID) (*models.Deployment, error) {
	query := `
		SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE worker_id = $1 AND status IN ('pending', 'active')
	`
	dep, err := scanDeployment(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(workerID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find open deployment: %w", err)
	}
	return dep, nil
}

func (s *PostgresStore) Update(ctx context.Context, dep *models.Deployment) error {
	query := `
		UPDATE deployments
		SET status = $2, service_status = $3, end_date = $4, termination_reason = $5, updated_at = $6
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(dep.ID),
		dep.Status,
		dep.ServiceStatus,
		nullTime(dep.EndDate),
		nullString(dep.TerminationReason),
		dep.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update deployment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update deployment: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanDeployment(row *sql.Row) (*models.Deployment, error) {
	var (
		dep         models.Deployment
		depID       uuid.UUID
		workerID    uuid.UUID
		employerID  uuid.UUID
		letterID    uuid.NullUUID
		entryPermit sql.NullString
		endDate     sql.NullTime
		termReason  sql.NullString
	)
	err := row.Scan(
		&depID,
		&workerID,
		&employerID,
		&letterID,
		&dep.SourceType,
		&dep.Status,
		&dep.ServiceStatus,
		&entryPermit,
		&dep.StartDate,
		&endDate,
		&termReason,
		&dep.CreatedAt,
		&dep.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	dep.ID = id.DeploymentID(depID)
	dep.WorkerID = id.WorkerID(workerID)
	dep.EmployerID = id.EmployerID(employerID)
	if letterID.Valid {
		lid := id.LetterID(letterID.UUID)
		dep.LetterID = &lid
	}
	if entryPermit.Valid {
		v := entryPermit.String
		dep.EntryPermitNumber = &v
	}
	if endDate.Valid {
		t := endDate.Time
		dep.EndDate = &t
	}
	if termReason.Valid {
		v := termReason.String
		dep.TerminationReason = &v
	}
	return &dep, nil
}

func letterArg(letterID *id.LetterID) uuid.NullUUID {
	if letterID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*letterID), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
