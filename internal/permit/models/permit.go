package models

import (
	"time"

	id "workpermit/pkg/domain"
	dErrors "workpermit/pkg/domain-errors"
)

// Type is the legal category of an employment permit issuance.
type Type string

const (
	TypeInitial   Type = "initial"
	TypeExtension Type = "extension"
	TypeReissue   Type = "reissue"
)

var validTypes = map[Type]bool{
	TypeInitial:   true,
	TypeExtension: true,
	TypeReissue:   true,
}

func (t Type) IsValid() bool { return validTypes[t] }

// Status of a permit record.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
)

// Extension window constants from the governing regulation: an extension may
// be filed at most four months before expiry; within thirty days it is
// flagged urgent.
const (
	ExtensionWindowDays = 120
	UrgentWindowDays    = 30
)

// Permit is one issuance in a deployment's permit chain.
//
// Invariants:
//   - At most one permit per deployment has Status active
//   - ExpiryDate is strictly after IssueDate
//   - An extension expires its predecessor in the same transaction that
//     creates it
type Permit struct {
	ID            id.PermitID     `json:"id"`
	DeploymentID  id.DeploymentID `json:"deployment_id"`
	PermitNumber  string          `json:"permit_number"`
	Type          Type            `json:"type"`
	Status        Status          `json:"status"`
	IssueDate     time.Time       `json:"issue_date"`
	ExpiryDate    time.Time       `json:"expiry_date"`
	FeeAmount     *int64          `json:"fee_amount,omitempty"`
	ReceiptNumber *string         `json:"receipt_number,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Expire transitions the permit to expired status.
func (p *Permit) Expire(now time.Time) {
	p.Status = StatusExpired
	p.UpdatedAt = now
}

// NewPermit validates and constructs an active permit record.
func NewPermit(permitID id.PermitID, deploymentID id.DeploymentID, permitNumber string, permitType Type, issueDate, expiryDate time.Time, feeAmount *int64, receiptNumber *string, now time.Time) (*Permit, error) {
	if permitNumber == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "permit number cannot be empty")
	}
	if !permitType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid permit type")
	}
	if issueDate.IsZero() || expiryDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "issue and expiry dates are required")
	}
	if !expiryDate.After(issueDate) {
		return nil, dErrors.New(dErrors.CodeValidation, "expiry date must be after issue date")
	}
	if feeAmount != nil && *feeAmount < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "fee amount cannot be negative")
	}
	return &Permit{
		ID:            permitID,
		DeploymentID:  deploymentID,
		PermitNumber:  permitNumber,
		Type:          permitType,
		Status:        StatusActive,
		IssueDate:     issueDate,
		ExpiryDate:    expiryDate,
		FeeAmount:     feeAmount,
		ReceiptNumber: receiptNumber,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// ExpiryCheck is the read-only extension-window report for a deployment's
// active permit. HasActivePermit=false is the NO_PERMIT sentinel; all other
// fields are zero in that case.
type ExpiryCheck struct {
	HasActivePermit bool      `json:"has_active_permit"`
	PermitNumber    string    `json:"permit_number,omitempty"`
	ExpiryDate      time.Time `json:"expiry_date,omitzero"`
	DaysUntilExpiry int       `json:"days_until_expiry"`
	CanExtend       bool      `json:"can_extend"`
	IsUrgent        bool      `json:"is_urgent"`
	IsExpired       bool      `json:"is_expired"`
}

// CheckExpiry computes the window report for an active permit as of now.
func (p *Permit) CheckExpiry(now time.Time) ExpiryCheck {
	days := int(p.ExpiryDate.Sub(now).Hours() / 24)
	return ExpiryCheck{
		HasActivePermit: true,
		PermitNumber:    p.PermitNumber,
		ExpiryDate:      p.ExpiryDate,
		DaysUntilExpiry: days,
		CanExtend:       days > 0 && days <= ExtensionWindowDays,
		IsUrgent:        days <= UrgentWindowDays,
		IsExpired:       days <= 0,
	}
}
