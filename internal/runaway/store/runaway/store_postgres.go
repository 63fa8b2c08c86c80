// Package runaway persists missing-worker incident records in PostgreSQL.
package runaway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"workpermit/internal/runaway/models"
	id "workpermit/pkg/domain"
	"workpermit/pkg/platform/sentinel"
	"workpermit/pkg/platform/tx"
)

// PostgresStore persists runaway records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed runaway store.
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

const recordColumns = `id, deployment_id, status, missing_date, notification_date, notification_number, quota_frozen, notes, created_at, updated_at`

// Create inserts a new incident. The runaway_open_unique partial index
// rejects a second open record for the same deployment; that surfaces here
// as ErrConflict.
func (s *PostgresStore) Create(ctx context.Context, rec *models.Record) error {
	query := `
		INSERT INTO runaway_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(rec.ID),
		uuid.UUID(rec.DeploymentID),
		rec.Status,
		rec.MissingDate,
		nullTimePtr(rec.NotificationDate),
		nullStringPtr(rec.NotificationNumber),
		rec.QuotaFrozen,
		rec.Notes,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("deployment %s already has an open runaway record: %w", rec.DeploymentID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create runaway record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, recordID id.RunawayID) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM runaway_records WHERE id = $1`
	rec, err := scanRecord(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(recordID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find runaway record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Update(ctx context.Context, rec *models.Record) error {
	query := `
		UPDATE runaway_records
		SET status = $2, notification_date = $3, notification_number = $4, quota_frozen = $5, notes = $6, updated_at = $7
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(rec.ID),
		rec.Status,
		nullTimePtr(rec.NotificationDate),
		nullStringPtr(rec.NotificationNumber),
		rec.QuotaFrozen,
		rec.Notes,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update runaway record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update runaway record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// ListByDeployment returns the deployment's incident history, newest first.
func (s *PostgresStore) ListByDeployment(ctx context.Context, deploymentID id.DeploymentID) ([]*models.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM runaway_records
		WHERE deployment_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(deploymentID))
	if err != nil {
		return nil, fmt.Errorf("list runaway records: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan runaway record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runaway records: %w", err)
	}
	return records, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*models.Record, error) {
	var (
		rec      models.Record
		rid      uuid.UUID
		depID    uuid.UUID
		noteDate sql.NullTime
		noteNum  sql.NullString
	)
	err := row.Scan(
		&rid,
		&depID,
		&rec.Status,
		&rec.MissingDate,
		&noteDate,
		&noteNum,
		&rec.QuotaFrozen,
		&rec.Notes,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.ID = id.RunawayID(rid)
	rec.DeploymentID = id.DeploymentID(depID)
	if noteDate.Valid {
		t := noteDate.Time
		rec.NotificationDate = &t
	}
	if noteNum.Valid {
		v := noteNum.String
		rec.NotificationNumber = &v
	}
	return &rec, nil
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
