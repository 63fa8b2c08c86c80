// Package domain holds typed identifiers and small value types shared across
// modules. IDs are distinct types over uuid.UUID so the compiler rejects
// cross-entity mixups; construct from external input via the ParseXxxID
// functions, which enforce the non-nil invariant at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "workpermit/pkg/domain-errors"
)

type (
	// WorkerID identifies a migrant worker record.
	WorkerID uuid.UUID
	// EmployerID identifies an employer record.
	EmployerID uuid.UUID
	// LetterID identifies a recruitment letter.
	LetterID uuid.UUID
	// DeploymentID identifies a worker's assignment to an employer.
	DeploymentID uuid.UUID
	// PermitID identifies an employment permit.
	PermitID uuid.UUID
	// RunawayID identifies a runaway incident record.
	RunawayID uuid.UUID
	// ActorID identifies the staff user performing a mutation.
	ActorID uuid.UUID
)

func (id WorkerID) String() string     { return uuid.UUID(id).String() }
func (id EmployerID) String() string   { return uuid.UUID(id).String() }
func (id LetterID) String() string     { return uuid.UUID(id).String() }
func (id DeploymentID) String() string { return uuid.UUID(id).String() }
func (id PermitID) String() string     { return uuid.UUID(id).String() }
func (id RunawayID) String() string    { return uuid.UUID(id).String() }
func (id ActorID) String() string      { return uuid.UUID(id).String() }

func (id WorkerID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id EmployerID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id LetterID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id DeploymentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PermitID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id RunawayID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "%s cannot be empty", field)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "%s is not a valid UUID", field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "%s cannot be the nil UUID", field)
	}
	return u, nil
}

// ParseWorkerID parses and validates a worker ID from external input.
func ParseWorkerID(s string) (WorkerID, error) {
	u, err := parseUUID(s, "worker_id")
	return WorkerID(u), err
}

// ParseEmployerID parses and validates an employer ID from external input.
func ParseEmployerID(s string) (EmployerID, error) {
	u, err := parseUUID(s, "employer_id")
	return EmployerID(u), err
}

// ParseLetterID parses and validates a recruitment letter ID from external input.
func ParseLetterID(s string) (LetterID, error) {
	u, err := parseUUID(s, "letter_id")
	return LetterID(u), err
}

// ParseDeploymentID parses and validates a deployment ID from external input.
func ParseDeploymentID(s string) (DeploymentID, error) {
	u, err := parseUUID(s, "deployment_id")
	return DeploymentID(u), err
}

// ParsePermitID parses and validates a permit ID from external input.
func ParsePermitID(s string) (PermitID, error) {
	u, err := parseUUID(s, "permit_id")
	return PermitID(u), err
}

// ParseRunawayID parses and validates a runaway record ID from external input.
func ParseRunawayID(s string) (RunawayID, error) {
	u, err := parseUUID(s, "runaway_id")
	return RunawayID(u), err
}

// ParseActorID parses and validates an actor ID from external input.
func ParseActorID(s string) (ActorID, error) {
	u, err := parseUUID(s, "actor_id")
	return ActorID(u), err
}
