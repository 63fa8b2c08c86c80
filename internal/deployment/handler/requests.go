package handler

import (
	"strings"
	"time"

	"workpermit/internal/deployment/models"
	id "workpermit/pkg/domain"
	dErrors "workpermit/pkg/domain-errors"
)

// CreateRequest is the HTTP request body for POST /deployments.
type CreateRequest struct {
	WorkerID          string    `json:"worker_id"`
	EmployerID        string    `json:"employer_id"`
	LetterID          string    `json:"letter_id,omitempty"`
	SourceType        string    `json:"source_type"`
	EntryPermitNumber string    `json:"entry_permit_number,omitempty"`
	Status            string    `json:"status,omitempty"`
	StartDate         time.Time `json:"start_date"`

	parsedWorkerID   id.WorkerID
	parsedEmployerID id.EmployerID
	parsedLetterID   *id.LetterID
}

// Validate validates and parses the request.
func (r *CreateRequest) Validate() error {
	if r.WorkerID == "" {
		return dErrors.New(dErrors.CodeValidation, "worker_id is required")
	}
	workerID, err := id.ParseWorkerID(r.WorkerID)
	if err != nil {
		return err
	}
	r.parsedWorkerID = workerID

	if r.EmployerID == "" {
		return dErrors.New(dErrors.CodeValidation, "employer_id is required")
	}
	employerID, err := id.ParseEmployerID(r.EmployerID)
	if err != nil {
		return err
	}
	r.parsedEmployerID = employerID

	if r.LetterID != "" {
		letterID, err := id.ParseLetterID(r.LetterID)
		if err != nil {
			return err
		}
		r.parsedLetterID = &letterID
	}

	if !models.SourceType(r.SourceType).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "source_type must be recruitment or transfer")
	}
	if r.Status != "" && !models.Status(r.Status).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid deployment status")
	}
	if r.StartDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "start_date is required")
	}
	r.EntryPermitNumber = strings.TrimSpace(r.EntryPermitNumber)
	return nil
}

func (r *CreateRequest) entryPermitNumber() *string {
	if r.EntryPermitNumber == "" {
		return nil
	}
	return &r.EntryPermitNumber
}

// TerminateRequest is the HTTP request body for POST
// /deployments/{deploymentID}/terminate.
type TerminateRequest struct {
	Reason  string    `json:"reason"`
	EndDate time.Time `json:"end_date"`
}

// Validate validates the request.
func (r *TerminateRequest) Validate() error {
	if !models.TerminationReason(r.Reason).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid termination reason")
	}
	if r.EndDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "end_date is required")
	}
	return nil
}
