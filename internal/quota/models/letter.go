package models

import (
	"time"

	id "workpermit/pkg/domain"
	dErrors "workpermit/pkg/domain-errors"
)

// RecruitmentLetter is a government allocation document granting one employer
// the right to hire up to ApprovedQuota workers.
//
// Invariants:
//   - LetterNumber is non-empty and unique systemwide
//   - ApprovedQuota >= 1
//   - Gender sub-quotas are optional; 0 means unrestricted, and configured
//     sub-quotas never exceed the approved quota
//   - UsedQuota is a derived cache, recomputed from deployment rows and
//     never incremented in place; it is NEVER the authority for
//     availability checks
//
// # Circulation
//
// A circular letter (CanCirculate=true) frees its slot when a deployment
// under it ends normally. A one-off letter permanently consumes a slot the
// moment a deployment is ever linked to it, regardless of later status.
type RecruitmentLetter struct {
	ID            id.LetterID   `json:"id"`
	EmployerID    id.EmployerID `json:"employer_id"`
	LetterNumber  string        `json:"letter_number"`
	ApprovedQuota int           `json:"approved_quota"`
	MaleQuota     int           `json:"male_quota"`
	FemaleQuota   int           `json:"female_quota"`
	CanCirculate  bool          `json:"can_circulate"`
	UsedQuota     int           `json:"used_quota"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// SubQuotaFor returns the configured sub-quota for a gender, 0 if
// unrestricted.
func (l *RecruitmentLetter) SubQuotaFor(gender id.Gender) int {
	switch gender {
	case id.GenderMale:
		return l.MaleQuota
	case id.GenderFemale:
		return l.FemaleQuota
	default:
		return 0
	}
}

// NewRecruitmentLetter validates and constructs a letter. UsedQuota starts
// at zero; only RecalculateUsage ever writes it afterwards.
func NewRecruitmentLetter(letterID id.LetterID, employerID id.EmployerID, letterNumber string, approvedQuota, maleQuota, femaleQuota int, canCirculate bool, now time.Time) (*RecruitmentLetter, error) {
	if letterNumber == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "letter number cannot be empty")
	}
	if employerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "employer_id is required")
	}
	if approvedQuota < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "approved quota must be at least 1")
	}
	if maleQuota < 0 || femaleQuota < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "gender sub-quotas cannot be negative")
	}
	if maleQuota > approvedQuota || femaleQuota > approvedQuota {
		return nil, dErrors.New(dErrors.CodeValidation, "gender sub-quota cannot exceed approved quota")
	}
	if maleQuota > 0 && femaleQuota > 0 && maleQuota+femaleQuota > approvedQuota {
		return nil, dErrors.New(dErrors.CodeValidation, "gender sub-quotas cannot sum to more than approved quota")
	}
	return &RecruitmentLetter{
		ID:            letterID,
		EmployerID:    employerID,
		LetterNumber:  letterNumber,
		ApprovedQuota: approvedQuota,
		MaleQuota:     maleQuota,
		FemaleQuota:   femaleQuota,
		CanCirculate:  canCirculate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// UsageSummary is the operator-facing view of a letter's live consumption.
type UsageSummary struct {
	LetterID      id.LetterID `json:"letter_id"`
	LetterNumber  string      `json:"letter_number"`
	ApprovedQuota int         `json:"approved_quota"`
	UsedQuota     int         `json:"used_quota"`
	Available     int         `json:"available"`
	MaleQuota     int         `json:"male_quota"`
	MaleUsed      int         `json:"male_used"`
	FemaleQuota   int         `json:"female_quota"`
	FemaleUsed    int         `json:"female_used"`
	CanCirculate  bool        `json:"can_circulate"`
}
