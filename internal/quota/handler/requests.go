package handler

import (
	"strings"

	id "workpermit/pkg/domain"
	dErrors "workpermit/pkg/domain-errors"
)

// CreateLetterRequest is the HTTP request body for POST /letters.
type CreateLetterRequest struct {
	EmployerID    string `json:"employer_id"`
	LetterNumber  string `json:"letter_number"`
	ApprovedQuota int    `json:"approved_quota"`
	MaleQuota     int    `json:"male_quota"`
	FemaleQuota   int    `json:"female_quota"`
	CanCirculate  bool   `json:"can_circulate"`

	parsedEmployerID id.EmployerID
}

// Validate validates and parses the request. Quota range rules live in the
// model constructor; only shape and ID parsing happen here.
func (r *CreateLetterRequest) Validate() error {
	r.LetterNumber = strings.TrimSpace(r.LetterNumber)
	if r.LetterNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "letter_number is required")
	}
	if r.EmployerID == "" {
		return dErrors.New(dErrors.CodeValidation, "employer_id is required")
	}
	employerID, err := id.ParseEmployerID(r.EmployerID)
	if err != nil {
		return err
	}
	r.parsedEmployerID = employerID
	return nil
}
