package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"workpermit/internal/deployment/models"
	quotaservice "workpermit/internal/quota/service"
	"workpermit/internal/storage/memdb"
	id "workpermit/pkg/domain"
	dErrors "workpermit/pkg/domain-errors"
	"workpermit/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	db    *memdb.DB
	quota *quotaservice.Service
	svc   *Service
	ctx   context.Context
	now   time.Time
	seq   int
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2025, 4, 7, 9, 0, 0, 0, time.UTC)
	s.db = memdb.New()
	s.quota = quotaservice.New(s.db.Letters())
	s.svc = New(s.db, s.db.Deployments(), s.db.Workers(), s.db.Employers(), s.quota)
	s.ctx = testutil.ContextAt(uuid.NewString(), s.now)
	s.seq = 0
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) seedWorker(gender id.Gender) *models.Worker {
	worker := &models.Worker{
		ID:        id.WorkerID(uuid.New()),
		FullName:  "Test Worker",
		Gender:    gender,
		CreatedAt: s.now,
	}
	s.db.SeedWorker(worker)
	return worker
}

func (s *ServiceSuite) seedEmployer() *models.Employer {
	employer := &models.Employer{
		ID:        id.EmployerID(uuid.New()),
		Name:      "Test Employer",
		CreatedAt: s.now,
	}
	s.db.SeedEmployer(employer)
	return employer
}

func (s *ServiceSuite) createLetter(employerID id.EmployerID, approved int, canCirculate bool) id.LetterID {
	s.seq++
	letter, err := s.quota.CreateLetter(s.ctx, quotaservice.CreateLetterParams{
		EmployerID:    employerID,
		LetterNumber:  fmt.Sprintf("RL-2025-%03d", s.seq),
		ApprovedQuota: approved,
		CanCirculate:  canCirculate,
	})
	s.Require().NoError(err)
	return letter.ID
}

func (s *ServiceSuite) TestCreate() {
	employer := s.seedEmployer()

	s.Run("transfer placement without a letter", func() {
		worker := s.seedWorker(id.GenderMale)
		deployment, err := s.svc.Create(s.ctx, CreateParams{
			WorkerID:   worker.ID,
			EmployerID: employer.ID,
			SourceType: models.SourceTransfer,
			StartDate:  s.now,
		})
		s.Require().NoError(err)
		s.Equal(models.StatusActive, deployment.Status)
		s.Nil(deployment.LetterID)
	})

	s.Run("recruitment placement consumes a letter slot", func() {
		worker := s.seedWorker(id.GenderFemale)
		letterID := s.createLetter(employer.ID, 3, true)
		entryPermit := "EP-1001"

		deployment, err := s.svc.Create(s.ctx, CreateParams{
			WorkerID:          worker.ID,
			EmployerID:        employer.ID,
			LetterID:          &letterID,
			SourceType:        models.SourceRecruitment,
			EntryPermitNumber: &entryPermit,
			StartDate:         s.now,
		})
		s.Require().NoError(err)
		s.Require().NotNil(deployment.LetterID)

		letter, err := s.quota.GetLetter(s.ctx, letterID)
		s.Require().NoError(err)
		s.Equal(1, letter.UsedQuota)
	})

	s.Run("unknown worker", func() {
		_, err := s.svc.Create(s.ctx, CreateParams{
			WorkerID:   id.WorkerID(uuid.New()),
			EmployerID: employer.ID,
			SourceType: models.SourceTransfer,
			StartDate:  s.now,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestCreateRejectsSecondOpenDeployment() {
	employer := s.seedEmployer()
	worker := s.seedWorker(id.GenderMale)

	first, err := s.svc.Create(s.ctx, CreateParams{
		WorkerID:   worker.ID,
		EmployerID: employer.ID,
		SourceType: models.SourceTransfer,
		StartDate:  s.now,
	})
	s.Require().NoError(err)

	_, err = s.svc.Create(s.ctx, CreateParams{
		WorkerID:   worker.ID,
		EmployerID: s.seedEmployer().ID,
		SourceType: models.SourceTransfer,
		StartDate:  s.now,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBusinessRule))
	s.Equal(first.ID.String(), dErrors.DetailsOf(err)["deployment_id"])

	s.Run("a closed deployment does not block", func() {
		_, err := s.svc.Terminate(s.ctx, first.ID, models.ReasonContractTerminated, s.now)
		s.Require().NoError(err)

		_, err = s.svc.Create(s.ctx, CreateParams{
			WorkerID:   worker.ID,
			EmployerID: employer.ID,
			SourceType: models.SourceTransfer,
			StartDate:  s.now,
		})
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestCreateChecksLetterOwnership() {
	employer := s.seedEmployer()
	other := s.seedEmployer()
	worker := s.seedWorker(id.GenderFemale)
	letterID := s.createLetter(other.ID, 3, true)

	_, err := s.svc.Create(s.ctx, CreateParams{
		WorkerID:   worker.ID,
		EmployerID: employer.ID,
		LetterID:   &letterID,
		SourceType: models.SourceRecruitment,
		StartDate:  s.now,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBusinessRule))
}

func (s *ServiceSuite) TestCreateRejectsExhaustedLetter() {
	employer := s.seedEmployer()
	letterID := s.createLetter(employer.ID, 1, true)

	_, err := s.svc.Create(s.ctx, CreateParams{
		WorkerID:   s.seedWorker(id.GenderMale).ID,
		EmployerID: employer.ID,
		LetterID:   &letterID,
		SourceType: models.SourceRecruitment,
		StartDate:  s.now,
	})
	s.Require().NoError(err)

	blocked := s.seedWorker(id.GenderMale)
	_, err = s.svc.Create(s.ctx, CreateParams{
		WorkerID:   blocked.ID,
		EmployerID: employer.ID,
		LetterID:   &letterID,
		SourceType: models.SourceRecruitment,
		StartDate:  s.now,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))

	// The rejected placement left no row behind.
	open, findErr := s.db.Deployments().FindOpenByWorker(s.ctx, blocked.ID)
	s.Require().NoError(findErr)
	s.Nil(open)
}

func (s *ServiceSuite) TestCreateHonoursReservedGenderSlot() {
	employer := s.seedEmployer()
	letter, err := s.quota.CreateLetter(s.ctx, quotaservice.CreateLetterParams{
		EmployerID:    employer.ID,
		LetterNumber:  "RL-2025-900",
		ApprovedQuota: 1,
		MaleQuota:     1,
		CanCirculate:  true,
	})
	s.Require().NoError(err)

	place := func(gender id.Gender) error {
		_, err := s.svc.Create(s.ctx, CreateParams{
			WorkerID:   s.seedWorker(gender).ID,
			EmployerID: employer.ID,
			LetterID:   &letter.ID,
			SourceType: models.SourceRecruitment,
			StartDate:  s.now,
		})
		return err
	}

	// The female placement spends the overall quota, but the male slot is
	// reserved and stays claimable.
	s.Require().NoError(place(id.GenderFemale))
	s.Require().NoError(place(id.GenderMale))

	err = place(id.GenderMale)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))
	s.Contains(dErrors.DetailsOf(err), "sub_quota")
}

func (s *ServiceSuite) TestTerminate() {
	employer := s.seedEmployer()
	letterID := s.createLetter(employer.ID, 1, true)
	deployment, err := s.svc.Create(s.ctx, CreateParams{
		WorkerID:   s.seedWorker(id.GenderFemale).ID,
		EmployerID: employer.ID,
		LetterID:   &letterID,
		SourceType: models.SourceRecruitment,
		StartDate:  s.now,
	})
	s.Require().NoError(err)

	endDate := s.now.AddDate(0, 6, 0)
	terminated, err := s.svc.Terminate(s.ctx, deployment.ID, models.ReasonTransferredOut, endDate)
	s.Require().NoError(err)
	s.Equal(models.StatusEnded, terminated.Status)
	s.Equal(models.ServiceTransferredOut, terminated.ServiceStatus)
	s.Require().NotNil(terminated.EndDate)
	s.Equal(endDate, *terminated.EndDate)

	s.Run("circular slot is released", func() {
		letter, err := s.quota.GetLetter(s.ctx, letterID)
		s.Require().NoError(err)
		s.Equal(0, letter.UsedQuota)
	})

	s.Run("second termination is rejected", func() {
		_, err := s.svc.Terminate(s.ctx, deployment.ID, models.ReasonOther, endDate)
		s.True(dErrors.HasCode(err, dErrors.CodeBusinessRule))
	})

	s.Run("invalid reason", func() {
		_, err := s.svc.Terminate(s.ctx, deployment.ID, models.TerminationReason("fired"), endDate)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing end date", func() {
		_, err := s.svc.Terminate(s.ctx, deployment.ID, models.ReasonOther, time.Time{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
