package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	deploymentmodels "workpermit/internal/deployment/models"
	"workpermit/internal/quota/models"
	"workpermit/internal/storage/memdb"
	id "workpermit/pkg/domain"
	dErrors "workpermit/pkg/domain-errors"
	"workpermit/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	db  *memdb.DB
	svc *Service
	ctx context.Context
	now time.Time
	seq int
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2025, 4, 7, 9, 0, 0, 0, time.UTC)
	s.db = memdb.New()
	s.svc = New(s.db.Letters())
	s.ctx = testutil.ContextAt(uuid.NewString(), s.now)
	s.seq = 0
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) createLetter(approved, male, female int, canCirculate bool) *models.RecruitmentLetter {
	s.seq++
	letter, err := s.svc.CreateLetter(s.ctx, CreateLetterParams{
		EmployerID:    id.EmployerID(uuid.New()),
		LetterNumber:  fmt.Sprintf("RL-2025-%03d", s.seq),
		ApprovedQuota: approved,
		MaleQuota:     male,
		FemaleQuota:   female,
		CanCirculate:  canCirculate,
	})
	s.Require().NoError(err)
	return letter
}

func (s *ServiceSuite) seedWorker(gender id.Gender) *deploymentmodels.Worker {
	worker := &deploymentmodels.Worker{
		ID:        id.WorkerID(uuid.New()),
		FullName:  "Test Worker",
		Gender:    gender,
		CreatedAt: s.now,
	}
	s.db.SeedWorker(worker)
	return worker
}

// placeWorker inserts a deployment row directly, bypassing the coordinator.
// The ledger counts rows, so this is all a slot consumption needs.
func (s *ServiceSuite) placeWorker(letter *models.RecruitmentLetter, gender id.Gender) *deploymentmodels.Deployment {
	worker := s.seedWorker(gender)
	letterID := letter.ID
	deployment, err := deploymentmodels.NewDeployment(
		id.DeploymentID(uuid.New()),
		worker.ID,
		letter.EmployerID,
		&letterID,
		deploymentmodels.SourceRecruitment,
		nil,
		deploymentmodels.StatusActive,
		s.now,
		s.now,
	)
	s.Require().NoError(err)
	s.Require().NoError(s.db.Deployments().Create(s.ctx, deployment))
	return deployment
}

func (s *ServiceSuite) checkAvailability(letterID id.LetterID, gender id.Gender) error {
	return s.db.RunInTx(s.ctx, func(ctx context.Context) error {
		return s.svc.CheckAvailability(ctx, letterID, gender)
	})
}

func (s *ServiceSuite) TestCreateLetter() {
	letter := s.createLetter(10, 4, 6, true)
	s.Equal(10, letter.ApprovedQuota)
	s.Equal(0, letter.UsedQuota)
	s.True(letter.CanCirculate)

	s.Run("duplicate letter number", func() {
		_, err := s.svc.CreateLetter(s.ctx, CreateLetterParams{
			EmployerID:    id.EmployerID(uuid.New()),
			LetterNumber:  letter.LetterNumber,
			ApprovedQuota: 5,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestCheckAvailabilityRequiresTransaction() {
	letter := s.createLetter(5, 0, 0, true)

	err := s.svc.CheckAvailability(s.ctx, letter.ID, id.GenderFemale)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePrecondition))
}

func (s *ServiceSuite) TestCheckAvailability() {
	s.Run("slot available", func() {
		letter := s.createLetter(2, 0, 0, true)
		s.placeWorker(letter, id.GenderFemale)
		s.NoError(s.checkAvailability(letter.ID, id.GenderFemale))
	})

	s.Run("overall quota exhausted", func() {
		letter := s.createLetter(1, 0, 0, true)
		s.placeWorker(letter, id.GenderMale)

		err := s.checkAvailability(letter.ID, id.GenderFemale)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))
		s.Contains(dErrors.DetailsOf(err), "approved_quota")
	})

	s.Run("configured sub-quota decides for its gender", func() {
		letter := s.createLetter(1, 0, 1, true)
		s.placeWorker(letter, id.GenderFemale)

		// The female sub-quota is what blocks her, not the overall count.
		err := s.checkAvailability(letter.ID, id.GenderFemale)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))
		details := dErrors.DetailsOf(err)
		s.Contains(details, "sub_quota")
		s.NotContains(details, "approved_quota")
	})

	s.Run("sub-quota reserves capacity past the overall quota", func() {
		letter := s.createLetter(1, 1, 0, true)
		s.placeWorker(letter, id.GenderFemale)

		// The overall quota is spent, but the male slot is reserved.
		s.NoError(s.checkAvailability(letter.ID, id.GenderMale))

		s.placeWorker(letter, id.GenderMale)
		err := s.checkAvailability(letter.ID, id.GenderMale)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))
		s.Contains(dErrors.DetailsOf(err), "sub_quota")
	})

	s.Run("gender sub-quota exhausted", func() {
		letter := s.createLetter(3, 2, 1, true)
		s.placeWorker(letter, id.GenderFemale)

		err := s.checkAvailability(letter.ID, id.GenderFemale)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))
		s.Contains(dErrors.DetailsOf(err), "sub_quota")

		s.NoError(s.checkAvailability(letter.ID, id.GenderMale))
	})

	s.Run("unknown letter", func() {
		err := s.checkAvailability(id.LetterID(uuid.New()), id.GenderMale)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) terminate(deployment *deploymentmodels.Deployment, reason deploymentmodels.TerminationReason) {
	deployment.ApplyTermination(reason, s.now, s.now)
	s.Require().NoError(s.db.Deployments().Update(s.ctx, deployment))
}

func (s *ServiceSuite) TestCircularLetterReleasesSlotOnTermination() {
	letter := s.createLetter(1, 0, 0, true)
	deployment := s.placeWorker(letter, id.GenderMale)

	err := s.checkAvailability(letter.ID, id.GenderMale)
	s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))

	s.terminate(deployment, deploymentmodels.ReasonContractTerminated)
	s.NoError(s.checkAvailability(letter.ID, id.GenderMale))
}

func (s *ServiceSuite) TestOneOffLetterNeverReleasesSlots() {
	letter := s.createLetter(1, 0, 0, false)
	deployment := s.placeWorker(letter, id.GenderMale)

	s.terminate(deployment, deploymentmodels.ReasonContractTerminated)

	// The slot stays consumed: a one-off letter counts every deployment ever
	// placed under it.
	err := s.checkAvailability(letter.ID, id.GenderMale)
	s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))
}

func (s *ServiceSuite) TestRecalculateUsage() {
	letter := s.createLetter(5, 0, 0, true)
	s.placeWorker(letter, id.GenderFemale)
	s.placeWorker(letter, id.GenderMale)

	// Simulate drift in the display column.
	s.Require().NoError(s.db.Letters().UpdateUsedQuota(s.ctx, letter.ID, 99))

	used, err := s.svc.RecalculateUsage(s.ctx, letter.ID)
	s.Require().NoError(err)
	s.Equal(2, used)

	stored, err := s.svc.GetLetter(s.ctx, letter.ID)
	s.Require().NoError(err)
	s.Equal(2, stored.UsedQuota)

	s.Run("recompute is idempotent", func() {
		again, err := s.svc.RecalculateUsage(s.ctx, letter.ID)
		s.Require().NoError(err)
		s.Equal(2, again)
	})
}

func (s *ServiceSuite) TestGetSummary() {
	letter := s.createLetter(4, 2, 2, true)
	s.placeWorker(letter, id.GenderFemale)
	s.placeWorker(letter, id.GenderFemale)
	s.placeWorker(letter, id.GenderMale)

	summary, err := s.svc.GetSummary(s.ctx, letter.ID)
	s.Require().NoError(err)
	s.Equal(letter.LetterNumber, summary.LetterNumber)
	s.Equal(3, summary.UsedQuota)
	s.Equal(1, summary.Available)
	s.Equal(1, summary.MaleUsed)
	s.Equal(2, summary.FemaleUsed)
}
