// Package permit persists employment permits in PostgreSQL.
package permit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"workpermit/internal/permit/models"
	id "workpermit/pkg/domain"
	"workpermit/pkg/platform/sentinel"
	"workpermit/pkg/platform/tx"
)

// PostgresStore persists permits in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed permit store.
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

const permitColumns = `id, deployment_id, permit_number, type, status, issue_date, expiry_date, fee_amount, receipt_number, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, p *models.Permit) error {
	query := `
		INSERT INTO employment_permits (` + permitColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	var fee sql.NullInt64
	if p.FeeAmount != nil {
		fee = sql.NullInt64{Int64: *p.FeeAmount, Valid: true}
	}
	var receipt sql.NullString
	if p.ReceiptNumber != nil {
		receipt = sql.NullString{String: *p.ReceiptNumber, Valid: true}
	}
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(p.ID),
		uuid.UUID(p.DeploymentID),
		p.PermitNumber,
		p.Type,
		p.Status,
		p.IssueDate,
		p.ExpiryDate,
		fee,
		receipt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create permit: %w", err)
	}
	return nil
}

// FindActiveByDeployment returns the deployment's single active permit, or
// nil when the chain has none.
func (s *PostgresStore) FindActiveByDeployment(ctx context.Context, deploymentID id.DeploymentID) (*models.Permit, error) {
	query := `
		SELECT ` + permitColumns + `
		FROM employment_permits
		WHERE deployment_id = $1 AND status = 'active'
	`
	p, err := scanPermit(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(deploymentID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active permit: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Permit) error {
	query := `
		UPDATE employment_permits
		SET status = $2, updated_at = $3
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(p.ID), p.Status, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update permit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update permit: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// ListByDeployment returns the deployment's permit chain, newest issuance
// first.
func (s *PostgresStore) ListByDeployment(ctx context.Context, deploymentID id.DeploymentID) ([]*models.Permit, error) {
	query := `
		SELECT ` + permitColumns + `
		FROM employment_permits
		WHERE deployment_id = $1
		ORDER BY issue_date DESC, created_at DESC
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(deploymentID))
	if err != nil {
		return nil, fmt.Errorf("list permits: %w", err)
	}
	defer rows.Close()
	return collectPermits(rows)
}

// ListActiveExpiringBefore returns active permits whose expiry falls before
// the cutoff, soonest first. Used by the expiry notifier.
func (s *PostgresStore) ListActiveExpiringBefore(ctx context.Context, cutoff time.Time) ([]*models.Permit, error) {
	query := `
		SELECT ` + permitColumns + `
		FROM employment_permits
		WHERE status = 'active' AND expiry_date < $1
		ORDER BY expiry_date ASC
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expiring permits: %w", err)
	}
	defer rows.Close()
	return collectPermits(rows)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPermit(row scannable) (*models.Permit, error) {
	var (
		p       models.Permit
		pid     uuid.UUID
		depID   uuid.UUID
		fee     sql.NullInt64
		receipt sql.NullString
	)
	err := row.Scan(
		&pid,
		&depID,
		&p.PermitNumber,
		&p.Type,
		&p.Status,
		&p.IssueDate,
		&p.ExpiryDate,
		&fee,
		&receipt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ID = id.PermitID(pid)
	p.DeploymentID = id.DeploymentID(depID)
	if fee.Valid {
		v := fee.Int64
		p.FeeAmount = &v
	}
	if receipt.Valid {
		v := receipt.String
		p.ReceiptNumber = &v
	}
	return &p, nil
}

func collectPermits(rows *sql.Rows) ([]*models.Permit, error) {
	var permits []*models.Permit
	for rows.Next() {
		p, err := scanPermit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan permit: %w", err)
		}
		permits = append(permits, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permits: %w", err)
	}
	return permits, nil
}
