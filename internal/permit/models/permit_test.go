package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "workpermit/pkg/domain"
	dErrors "workpermit/pkg/domain-errors"
)

type PermitSuite struct {
	suite.Suite
	deploymentID id.DeploymentID
	now          time.Time
}

func (s *PermitSuite) SetupTest() {
	s.deploymentID = id.DeploymentID(uuid.New())
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestPermitSuite(t *testing.T) {
	suite.Run(t, new(PermitSuite))
}

func (s *PermitSuite) newActivePermit(expiry time.Time) *Permit {
	p, err := NewPermit(id.PermitID(uuid.New()), s.deploymentID, "WP-001", TypeInitial, s.now.AddDate(-1, 0, 0), expiry, nil, nil, s.now)
	s.Require().NoError(err)
	return p
}

func (s *PermitSuite) TestConstruction() {
	s.Run("valid permit starts active", func() {
		p := s.newActivePermit(s.now.AddDate(1, 0, 0))
		s.Equal(StatusActive, p.Status)
	})

	s.Run("rejects empty permit number", func() {
		_, err := NewPermit(id.PermitID(uuid.New()), s.deploymentID, "", TypeInitial, s.now, s.now.AddDate(1, 0, 0), nil, nil, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects expiry before issue", func() {
		_, err := NewPermit(id.PermitID(uuid.New()), s.deploymentID, "WP-001", TypeInitial, s.now, s.now.AddDate(0, 0, -1), nil, nil, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects expiry equal to issue", func() {
		_, err := NewPermit(id.PermitID(uuid.New()), s.deploymentID, "WP-001", TypeInitial, s.now, s.now, nil, nil, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects negative fee", func() {
		fee := int64(-1)
		_, err := NewPermit(id.PermitID(uuid.New()), s.deploymentID, "WP-001", TypeInitial, s.now, s.now.AddDate(1, 0, 0), &fee, nil, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *PermitSuite) TestCheckExpiryWindows() {
	s.Run("outside the extension window", func() {
		p := s.newActivePermit(s.now.AddDate(0, 0, ExtensionWindowDays+10))
		check := p.CheckExpiry(s.now)
		s.True(check.HasActivePermit)
		s.False(check.CanExtend)
		s.False(check.IsUrgent)
		s.False(check.IsExpired)
	})

	s.Run("inside the extension window", func() {
		p := s.newActivePermit(s.now.AddDate(0, 0, 90))
		check := p.CheckExpiry(s.now)
		s.True(check.CanExtend)
		s.False(check.IsUrgent)
		s.Equal(90, check.DaysUntilExpiry)
	})

	s.Run("urgent inside thirty days", func() {
		p := s.newActivePermit(s.now.AddDate(0, 0, 15))
		check := p.CheckExpiry(s.now)
		s.True(check.CanExtend)
		s.True(check.IsUrgent)
	})

	s.Run("expired permit cannot extend", func() {
		p := s.newActivePermit(s.now.Add(-24 * time.Hour))
		p.Status = StatusActive
		check := p.CheckExpiry(s.now)
		s.False(check.CanExtend)
		s.True(check.IsUrgent)
		s.True(check.IsExpired)
	})
}

func (s *PermitSuite) TestExpire() {
	p := s.newActivePermit(s.now.AddDate(1, 0, 0))
	p.Expire(s.now)
	s.Equal(StatusExpired, p.Status)
	s.Equal(s.now, p.UpdatedAt)
}
