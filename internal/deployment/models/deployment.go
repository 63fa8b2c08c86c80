package models

import (
	"time"

	id "workpermit/pkg/domain"
	dErrors "workpermit/pkg/domain-errors"
)

// Status is the coarse lifecycle state of a deployment.
type Status string

const (
	StatusPending    Status = "pending"
	StatusActive     Status = "active"
	StatusEnded      Status = "ended"
	StatusTerminated Status = "terminated"
)

var validStatuses = map[Status]bool{
	StatusPending:    true,
	StatusActive:     true,
	StatusEnded:      true,
	StatusTerminated: true,
}

func (s Status) IsValid() bool { return validStatuses[s] }

// IsOpen reports whether the deployment occupies its worker (and, for
// circular letters, a quota slot).
func (s Status) IsOpen() bool { return s == StatusPending || s == StatusActive }

// ServiceStatus is the finer-grained reason behind a status.
type ServiceStatus string

const (
	ServiceActive             ServiceStatus = "active_service"
	ServiceRunaway            ServiceStatus = "runaway"
	ServiceTransferredOut     ServiceStatus = "transferred_out"
	ServiceContractTerminated ServiceStatus = "contract_terminated"
	ServiceCommissionEnded    ServiceStatus = "commission_ended"
)

// SourceType records how the worker arrived at this employer.
type SourceType string

const (
	SourceRecruitment SourceType = "recruitment"
	SourceTransfer    SourceType = "transfer"
)

func (s SourceType) IsValid() bool {
	return s == SourceRecruitment || s == SourceTransfer
}

// TerminationReason is the operator-supplied reason code for ending a
// deployment. Each reason maps to a deterministic (status, serviceStatus)
// pair; there is no free-form status assignment.
type TerminationReason string

const (
	ReasonRunaway            TerminationReason = "runaway"
	ReasonTransferredOut     TerminationReason = "transferred_out"
	ReasonContractTerminated TerminationReason = "contract_terminated"
	ReasonOther              TerminationReason = "other"
)

var validReasons = map[TerminationReason]bool{
	ReasonRunaway:            true,
	ReasonTransferredOut:     true,
	ReasonContractTerminated: true,
	ReasonOther:              true,
}

func (r TerminationReason) IsValid() bool { return validReasons[r] }

// Outcome maps the reason to its (status, serviceStatus) pair.
func (r TerminationReason) Outcome() (Status, ServiceStatus) {
	switch r {
	case ReasonRunaway:
		return StatusTerminated, ServiceRunaway
	case ReasonTransferredOut:
		return StatusEnded, ServiceTransferredOut
	case ReasonContractTerminated:
		return StatusTerminated, ServiceContractTerminated
	default:
		return StatusEnded, ServiceCommissionEnded
	}
}

// Deployment is a worker's assignment to an employer, optionally consuming a
// recruitment-letter slot.
//
// Invariants:
//   - A worker has at most one deployment with an open status (pending or
//     active) at any time; enforced via a worker row lock during creation
//   - LetterID, once set, never changes
//   - Status transitions only through ApplyTermination
type Deployment struct {
	ID                id.DeploymentID `json:"id"`
	WorkerID          id.WorkerID     `json:"worker_id"`
	EmployerID        id.EmployerID   `json:"employer_id"`
	LetterID          *id.LetterID    `json:"letter_id,omitempty"`
	SourceType        SourceType      `json:"source_type"`
	EntryPermitNumber *string         `json:"entry_permit_number,omitempty"`
	Status            Status          `json:"status"`
	ServiceStatus     ServiceStatus   `json:"service_status"`
	StartDate         time.Time       `json:"start_date"`
	EndDate           *time.Time      `json:"end_date,omitempty"`
	TerminationReason *string         `json:"termination_reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IsOpen reports whether this deployment blocks a new placement of its worker.
func (d *Deployment) IsOpen() bool { return d.Status.IsOpen() }

// EligibleForInitialPermit checks the legal precondition for an INITIAL
// employment permit: transfer-sourced deployments need nothing further;
// recruited workers need an entry permit issued under a recruitment letter.
func (d *Deployment) EligibleForInitialPermit() bool {
	if d.SourceType == SourceTransfer {
		return true
	}
	return d.EntryPermitNumber != nil && *d.EntryPermitNumber != "" && d.LetterID != nil
}

// CanTerminate checks whether a termination may be applied.
func (d *Deployment) CanTerminate() error {
	if !d.IsOpen() {
		return dErrors.Newf(dErrors.CodeBusinessRule, "deployment is already %s", d.Status)
	}
	return nil
}

// ApplyTermination transitions the deployment per the reason mapping. Call
// CanTerminate first to validate the transition.
func (d *Deployment) ApplyTermination(reason TerminationReason, endDate, now time.Time) {
	status, serviceStatus := reason.Outcome()
	d.Status = status
	d.ServiceStatus = serviceStatus
	d.EndDate = &endDate
	reasonStr := string(reason)
	d.TerminationReason = &reasonStr
	d.UpdatedAt = now
}

// NewDeployment validates and constructs a deployment.
func NewDeployment(deploymentID id.DeploymentID, workerID id.WorkerID, employerID id.EmployerID, letterID *id.LetterID, source SourceType, entryPermitNumber *string, status Status, startDate, now time.Time) (*Deployment, error) {
	if workerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "worker_id is required")
	}
	if employerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "employer_id is required")
	}
	if !source.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid source type")
	}
	if !status.IsOpen() {
		return nil, dErrors.New(dErrors.CodeValidation, "a new deployment must start pending or active")
	}
	if startDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "start date is required")
	}
	return &Deployment{
		ID:                deploymentID,
		WorkerID:          workerID,
		EmployerID:        employerID,
		LetterID:          letterID,
		SourceType:        source,
		EntryPermitNumber: entryPermitNumber,
		Status:            status,
		ServiceStatus:     ServiceActive,
		StartDate:         startDate,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}
