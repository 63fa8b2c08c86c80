// Package letter persists recruitment letters in PostgreSQL. The store is
// pure I/O: the usage predicate lives here as SQL, but all quota decisions
// belong to the ledger service.
package letter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"workpermit/internal/quota/models"
	id "workpermit/pkg/domain"
	"workpermit/pkg/platform/sentinel"
	"workpermit/pkg/platform/tx"
	"workpermit/pkg/requestcontext"
)

// PostgresStore persists recruitment letters in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed letter store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// q joins the caller's transaction when one is in context.
func (s *PostgresStore) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, letter *models.RecruitmentLetter) error {
	query := `
		INSERT INTO recruitment_letters (id, employer_id, letter_number, approved_quota, male_quota, female_quota, can_circulate, used_quota, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(letter.ID),
		uuid.UUID(letter.EmployerID),
		letter.LetterNumber,
		letter.ApprovedQuota,
		letter.MaleQuota,
		letter.FemaleQuota,
		letter.CanCirculate,
		letter.UsedQuota,
		letter.CreatedAt,
		letter.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("letter number %s: %w", letter.LetterNumber, sentinel.ErrConflict)
		}
		return fmt.Errorf("create recruitment letter: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, letterID id.LetterID) (*models.RecruitmentLetter, error) {
	query := `
		SELECT id, employer_id, letter_number, approved_quota, male_quota, female_quota, can_circulate, used_quota, created_at, updated_at
		FROM recruitment_letters
		WHERE id = $1
	`
	letter, err := scanLetter(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(letterID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find recruitment letter: %w", err)
	}
	return letter, nil
}

// LockForUpdate serializes concurrent quota checks on one letter. The lock
// is released when the enclosing transaction commits or rolls back; locks on
// different letters are independent.
func (s *PostgresStore) LockForUpdate(ctx context.Context, letterID id.LetterID) error {
	t, err := tx.Require(ctx)
	if err != nil {
		return err
	}
	var locked uuid.UUID
	err = t.QueryRowContext(ctx, `SELECT id FROM recruitment_letters WHERE id = $1 FOR UPDATE`, uuid.UUID(letterID)).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("lock recruitment letter: %w", err)
	}
	return nil
}

// CountInUse evaluates the usage predicate in SQL so it always reflects
// committed plus own-transaction state, never the cache column.
func (s *PostgresStore) CountInUse(ctx context.Context, letterID id.LetterID, circular bool, gender *id.Gender) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM deployments d
		JOIN workers w ON w.id = d.worker_id
		WHERE d.recruitment_letter_id = $1
		  AND ($2::text IS NULL OR w.gender = $2)
	`
	if circular {
		query += `
		  AND (d.status IN ('pending', 'active')
		       OR EXISTS (
		           SELECT 1 FROM runaway_records r
		           WHERE r.deployment_id = d.id AND r.quota_frozen
		       ))
		`
	}

	var genderArg sql.NullString
	if gender != nil {
		genderArg = sql.NullString{String: gender.String(), Valid: true}
	}

	var count int
	if err := s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(letterID), genderArg).Scan(&count); err != nil {
		return 0, fmt.Errorf("count letter usage: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) UpdateUsedQuota(ctx context.Context, letterID id.LetterID, used int) error {
	query := `
		UPDATE recruitment_letters
		SET used_quota = $2, updated_at = $3
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(letterID), used, requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("update used quota: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update used quota: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanLetter(row *sql.Row) (*models.RecruitmentLetter, error) {
	var (
		letter     models.RecruitmentLetter
		letterID   uuid.UUID
		employerID uuid.UUID
	)
	err := row.Scan(
		&letterID,
		&employerID,
		&letter.LetterNumber,
		&letter.ApprovedQuota,
		&letter.MaleQuota,
		&letter.FemaleQuota,
		&letter.CanCirculate,
		&letter.UsedQuota,
		&letter.CreatedAt,
		&letter.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	letter.ID = id.LetterID(letterID)
	letter.EmployerID = id.EmployerID(employerID)
	return &letter, nil
}
