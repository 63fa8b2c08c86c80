package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	deploymentmodels "workpermit/internal/deployment/models"
	"workpermit/internal/permit/models"
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
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2025, 4, 7, 9, 0, 0, 0, time.UTC)
	s.db = memdb.New()
	s.svc = New(s.db, s.db.Permits(), s.db.Deployments())
	s.ctx = testutil.ContextAt(uuid.NewString(), s.now)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

// seedDeployment inserts an open deployment row. Transfer-sourced rows are
// eligible for an initial permit; recruitment-sourced rows only with an entry
// permit under a letter.
func (s *ServiceSuite) seedDeployment(source deploymentmodels.SourceType, letterID *id.LetterID, entryPermit *string) *deploymentmodels.Deployment {
	deployment, err := deploymentmodels.NewDeployment(
		id.DeploymentID(uuid.New()),
		id.WorkerID(uuid.New()),
		id.EmployerID(uuid.New()),
		letterID,
		source,
		entryPermit,
		deploymentmodels.StatusActive,
		s.now,
		s.now,
	)
	s.Require().NoError(err)
	s.Require().NoError(s.db.Deployments().Create(s.ctx, deployment))
	return deployment
}

func (s *ServiceSuite) issue(deploymentID id.DeploymentID, permitType models.Type, number string) (*models.Permit, error) {
	return s.svc.Issue(s.ctx, IssueParams{
		DeploymentID: deploymentID,
		PermitNumber: number,
		Type:         permitType,
		IssueDate:    s.now,
		ExpiryDate:   s.now.AddDate(1, 0, 0),
	})
}

func (s *ServiceSuite) TestIssueInitial() {
	s.Run("transfer deployment is eligible", func() {
		deployment := s.seedDeployment(deploymentmodels.SourceTransfer, nil, nil)
		permit, err := s.issue(deployment.ID, models.TypeInitial, "WP-1001")
		s.Require().NoError(err)
		s.Equal(models.StatusActive, permit.Status)
		s.Equal(models.TypeInitial, permit.Type)
	})

	s.Run("recruited worker with an entry permit is eligible", func() {
		letterID := id.LetterID(uuid.New())
		entryPermit := "EP-2001"
		deployment := s.seedDeployment(deploymentmodels.SourceRecruitment, &letterID, &entryPermit)
		_, err := s.issue(deployment.ID, models.TypeInitial, "WP-1002")
		s.NoError(err)
	})

	s.Run("recruited worker without an entry permit is rejected", func() {
		deployment := s.seedDeployment(deploymentmodels.SourceRecruitment, nil, nil)
		_, err := s.issue(deployment.ID, models.TypeInitial, "WP-1003")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBusinessRule))
	})

	s.Run("second active permit is rejected", func() {
		deployment := s.seedDeployment(deploymentmodels.SourceTransfer, nil, nil)
		_, err := s.issue(deployment.ID, models.TypeInitial, "WP-1004")
		s.Require().NoError(err)
		_, err = s.issue(deployment.ID, models.TypeInitial, "WP-1005")
		s.True(dErrors.HasCode(err, dErrors.CodeBusinessRule))
	})

	s.Run("closed deployment is rejected", func() {
		deployment := s.seedDeployment(deploymentmodels.SourceTransfer, nil, nil)
		deployment.ApplyTermination(deploymentmodels.ReasonOther, s.now, s.now)
		s.Require().NoError(s.db.Deployments().Update(s.ctx, deployment))
		_, err := s.issue(deployment.ID, models.TypeInitial, "WP-1006")
		s.True(dErrors.HasCode(err, dErrors.CodeBusinessRule))
	})
}

func (s *ServiceSuite) TestIssueExtension() {
	deployment := s.seedDeployment(deploymentmodels.SourceTransfer, nil, nil)

	s.Run("extension without a predecessor is rejected", func() {
		_, err := s.issue(deployment.ID, models.TypeExtension, "WP-2001")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBusinessRule))
	})

	initial, err := s.issue(deployment.ID, models.TypeInitial, "WP-2002")
	s.Require().NoError(err)

	s.Run("extension expires its predecessor", func() {
		extension, err := s.issue(deployment.ID, models.TypeExtension, "WP-2003")
		s.Require().NoError(err)
		s.Equal(models.StatusActive, extension.Status)

		chain, err := s.svc.ListByDeployment(s.ctx, deployment.ID)
		s.Require().NoError(err)
		s.Len(chain, 2)
		for _, p := range chain {
			if p.ID == initial.ID {
				s.Equal(models.StatusExpired, p.Status)
			} else {
				s.Equal(models.StatusActive, p.Status)
			}
		}
	})
}

func (s *ServiceSuite) TestIssueReissue() {
	deployment := s.seedDeployment(deploymentmodels.SourceTransfer, nil, nil)

	s.Run("reissue without a predecessor is allowed", func() {
		permit, err := s.issue(deployment.ID, models.TypeReissue, "WP-3001")
		s.Require().NoError(err)
		s.Equal(models.StatusActive, permit.Status)
	})

	s.Run("reissue expires an active predecessor", func() {
		_, err := s.issue(deployment.ID, models.TypeReissue, "WP-3002")
		s.Require().NoError(err)

		active, err := s.db.Permits().FindActiveByDeployment(s.ctx, deployment.ID)
		s.Require().NoError(err)
		s.Require().NotNil(active)
		s.Equal("WP-3002", active.PermitNumber)
	})
}

func (s *ServiceSuite) TestIssueValidation() {
	deployment := s.seedDeployment(deploymentmodels.SourceTransfer, nil, nil)

	s.Run("invalid type", func() {
		_, err := s.issue(deployment.ID, models.Type("renewal"), "WP-4001")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown deployment", func() {
		_, err := s.issue(id.DeploymentID(uuid.New()), models.TypeInitial, "WP-4002")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestCheckExpiry() {
	deployment := s.seedDeployment(deploymentmodels.SourceTransfer, nil, nil)

	s.Run("no active permit", func() {
		check, err := s.svc.CheckExpiry(s.ctx, deployment.ID)
		s.Require().NoError(err)
		s.False(check.HasActivePermit)
	})

	s.Run("inside the extension window", func() {
		_, err := s.svc.Issue(s.ctx, IssueParams{
			DeploymentID: deployment.ID,
			PermitNumber: "WP-5001",
			Type:         models.TypeInitial,
			IssueDate:    s.now.AddDate(-1, 0, 0),
			ExpiryDate:   s.now.AddDate(0, 0, 45),
		})
		s.Require().NoError(err)

		check, err := s.svc.CheckExpiry(s.ctx, deployment.ID)
		s.Require().NoError(err)
		s.True(check.HasActivePermit)
		s.Equal(45, check.DaysUntilExpiry)
		s.True(check.CanExtend)
		s.False(check.IsUrgent)
		s.False(check.IsExpired)
	})
}
