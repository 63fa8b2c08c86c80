package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "workpermit/pkg/domain"
	dErrors "workpermit/pkg/domain-errors"
)

type DeploymentSuite struct {
	suite.Suite
	now time.Time
}

func (s *DeploymentSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestDeploymentSuite(t *testing.T) {
	suite.Run(t, new(DeploymentSuite))
}

func (s *DeploymentSuite) newDeployment(source SourceType, entryPermit *string, letterID *id.LetterID) *Deployment {
	dep, err := NewDeployment(
		id.DeploymentID(uuid.New()),
		id.WorkerID(uuid.New()),
		id.EmployerID(uuid.New()),
		letterID,
		source,
		entryPermit,
		StatusActive,
		s.now,
		s.now,
	)
	s.Require().NoError(err)
	return dep
}

func (s *DeploymentSuite) TestTerminationOutcome() {
	cases := []struct {
		reason      TerminationReason
		wantStatus  Status
		wantService ServiceStatus
	}{
		{ReasonRunaway, StatusTerminated, ServiceRunaway},
		{ReasonTransferredOut, StatusEnded, ServiceTransferredOut},
		{ReasonContractTerminated, StatusTerminated, ServiceContractTerminated},
		{ReasonOther, StatusEnded, ServiceCommissionEnded},
	}
	for _, tc := range cases {
		status, serviceStatus := tc.reason.Outcome()
		s.Equal(tc.wantStatus, status, "reason %s", tc.reason)
		s.Equal(tc.wantService, serviceStatus, "reason %s", tc.reason)
	}
}

func (s *DeploymentSuite) TestApplyTermination() {
	dep := s.newDeployment(SourceTransfer, nil, nil)
	endDate := s.now.AddDate(0, 1, 0)

	s.Require().NoError(dep.CanTerminate())
	dep.ApplyTermination(ReasonRunaway, endDate, s.now)

	s.Equal(StatusTerminated, dep.Status)
	s.Equal(ServiceRunaway, dep.ServiceStatus)
	s.Require().NotNil(dep.EndDate)
	s.Equal(endDate, *dep.EndDate)
	s.Require().NotNil(dep.TerminationReason)
	s.Equal(string(ReasonRunaway), *dep.TerminationReason)

	s.Run("second termination is rejected", func() {
		err := dep.CanTerminate()
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBusinessRule))
	})
}

func (s *DeploymentSuite) TestEligibleForInitialPermit() {
	letterID := id.LetterID(uuid.New())
	entry := "EP-100"

	s.Run("transfer deployments need nothing further", func() {
		dep := s.newDeployment(SourceTransfer, nil, nil)
		s.True(dep.EligibleForInitialPermit())
	})

	s.Run("recruited with entry permit and letter is eligible", func() {
		dep := s.newDeployment(SourceRecruitment, &entry, &letterID)
		s.True(dep.EligibleForInitialPermit())
	})

	s.Run("recruited without entry permit is not eligible", func() {
		dep := s.newDeployment(SourceRecruitment, nil, &letterID)
		s.False(dep.EligibleForInitialPermit())
	})

	s.Run("recruited without letter is not eligible", func() {
		dep := s.newDeployment(SourceRecruitment, &entry, nil)
		s.False(dep.EligibleForInitialPermit())
	})
}

func (s *DeploymentSuite) TestConstructionValidation() {
	s.Run("rejects a closed starting status", func() {
		_, err := NewDeployment(
			id.DeploymentID(uuid.New()),
			id.WorkerID(uuid.New()),
			id.EmployerID(uuid.New()),
			nil, SourceTransfer, nil, StatusEnded, s.now, s.now,
		)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects invalid source type", func() {
		_, err := NewDeployment(
			id.DeploymentID(uuid.New()),
			id.WorkerID(uuid.New()),
			id.EmployerID(uuid.New()),
			nil, SourceType("loan"), nil, StatusActive, s.now, s.now,
		)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
