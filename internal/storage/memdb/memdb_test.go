package memdb

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	quotamodels "workpermit/internal/quota/models"
	id "workpermit/pkg/domain"
	dErrors "workpermit/pkg/domain-errors"
)

func newLetter(t *testing.T, number string) *quotamodels.RecruitmentLetter {
	t.Helper()
	letter, err := quotamodels.NewRecruitmentLetter(
		id.LetterID(uuid.New()),
		id.EmployerID(uuid.New()),
		number,
		3, 0, 0,
		true,
		time.Date(2025, 4, 7, 9, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return letter
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	db := New()
	ctx := context.Background()

	kept := newLetter(t, "RL-2025-001")
	require.NoError(t, db.Letters().Create(ctx, kept))

	boom := dErrors.New(dErrors.CodeInternal, "writer gave up")
	inserted := newLetter(t, "RL-2025-002")
	err := db.RunInTx(ctx, func(ctx context.Context) error {
		if err := db.Letters().Create(ctx, inserted); err != nil {
			return err
		}
		if err := db.Letters().UpdateUsedQuota(ctx, kept.ID, 2); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The insert is gone and the pre-existing row is back to its old state.
	_, err = db.Letters().FindByID(ctx, inserted.ID)
	require.Error(t, err)

	stored, err := db.Letters().FindByID(ctx, kept.ID)
	require.NoError(t, err)
	require.Equal(t, 0, stored.UsedQuota)
}

func TestRunInTxCommitsOnSuccess(t *testing.T) {
	db := New()
	ctx := context.Background()

	letter := newLetter(t, "RL-2025-001")
	require.NoError(t, db.RunInTx(ctx, func(ctx context.Context) error {
		return db.Letters().Create(ctx, letter)
	}))

	stored, err := db.Letters().FindByID(ctx, letter.ID)
	require.NoError(t, err)
	require.Equal(t, letter.LetterNumber, stored.LetterNumber)
}

func TestRunInTxNestedErrorRollsBackOutermost(t *testing.T) {
	db := New()
	ctx := context.Background()

	letter := newLetter(t, "RL-2025-001")
	boom := dErrors.New(dErrors.CodeInternal, "inner writer gave up")
	err := db.RunInTx(ctx, func(ctx context.Context) error {
		if err := db.Letters().Create(ctx, letter); err != nil {
			return err
		}
		// The nested call joins the outer transaction, so its failure
		// unwinds everything written above.
		return db.RunInTx(ctx, func(context.Context) error { return boom })
	})
	require.ErrorIs(t, err, boom)

	_, err = db.Letters().FindByID(ctx, letter.ID)
	require.Error(t, err)
}
