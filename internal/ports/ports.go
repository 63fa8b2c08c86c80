// Package ports defines shared interfaces consumed by more than one service.
// Interfaces are placed here when used across modules to avoid duplication.
package ports

import (
	"context"
	"log/slog"
	"time"

	"workpermit/internal/audit"
	deploymentmodels "workpermit/internal/deployment/models"
	permitmodels "workpermit/internal/permit/models"
	quotamodels "workpermit/internal/quota/models"
	runawaymodels "workpermit/internal/runaway/models"
	"workpermit/pkg/attrs"
	id "workpermit/pkg/domain"
	"workpermit/pkg/requestcontext"
)

// TxRunner executes fn inside a transaction; stores join it via context.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditPublisher emits audit events for every mutating core operation.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LetterStore persists recruitment letters and answers the usage predicate.
type LetterStore interface {
	Create(ctx context.Context, letter *quotamodels.RecruitmentLetter) error

	FindByID(ctx context.Context, letterID id.LetterID) (*quotamodels.RecruitmentLetter, error)

	// LockForUpdate acquires an exclusive row lock on the letter,
	// serializing concurrent quota checks. Must be called inside a
	// transaction; implementations fail with a precondition error
	// otherwise. The lock is held until the transaction ends.
	LockForUpdate(ctx context.Context, letterID id.LetterID) error

	// CountInUse evaluates the usage predicate. For circular letters it
	// counts deployments with an open status or a quota-frozen runaway
	// record; for one-off letters it counts every deployment ever linked.
	// A non-nil gender restricts the count to workers of that gender.
	CountInUse(ctx context.Context, letterID id.LetterID, circular bool, gender *id.Gender) (int, error)

	// UpdateUsedQuota overwrites the derived cache column. Idempotent.
	UpdateUsedQuota(ctx context.Context, letterID id.LetterID, used int) error
}

// WorkerStore reads worker records owned by the CRM outside this core.
type WorkerStore interface {
	FindByID(ctx context.Context, workerID id.WorkerID) (*deploymentmodels.Worker, error)

	// Lock acquires an exclusive row lock on the worker, preventing two
	// concurrent placements of the same worker. Must be called inside a
	// transaction.
	Lock(ctx context.Context, workerID id.WorkerID) error
}

// EmployerStore reads employer records owned outside this core.
type EmployerStore interface {
	FindByID(ctx context.Context, employerID id.EmployerID) (*deploymentmodels.Employer, error)
}

// DeploymentStore persists deployments.
type DeploymentStore interface {
	Create(ctx context.Context, deployment *deploymentmodels.Deployment) error
	FindByID(ctx context.Context, deploymentID id.DeploymentID) (*deploymentmodels.Deployment, error)

	// FindOpenByWorker returns the worker's pending or active deployment,
	// or nil if none exists.
	FindOpenByWorker(ctx context.Context, workerID id.WorkerID) (*deploymentmodels.Deployment, error)

	Update(ctx context.Context, deployment *deploymentmodels.Deployment) error
}

// PermitStore persists employment permits.
type PermitStore interface {
	Create(ctx context.Context, permit *permitmodels.Permit) error

	// FindActiveByDeployment returns the deployment's single active
	// permit, or nil if none exists.
	FindActiveByDeployment(ctx context.Context, deploymentID id.DeploymentID) (*permitmodels.Permit, error)

	Update(ctx context.Context, permit *permitmodels.Permit) error

	// ListByDeployment returns the full permit chain, newest first.
	ListByDeployment(ctx context.Context, deploymentID id.DeploymentID) ([]*permitmodels.Permit, error)

	// ListActiveExpiringBefore returns active permits expiring before the
	// cutoff, for the expiry notifier.
	ListActiveExpiringBefore(ctx context.Context, cutoff time.Time) ([]*permitmodels.Permit, error)
}

// RunawayStore persists runaway incident records.
type RunawayStore interface {
	// Create rejects a second open record for the same deployment.
	Create(ctx context.Context, record *runawaymodels.Record) error

	FindByID(ctx context.Context, recordID id.RunawayID) (*runawaymodels.Record, error)
	Update(ctx context.Context, record *runawaymodels.Record) error
	ListByDeployment(ctx context.Context, deploymentID id.DeploymentID) ([]*runawaymodels.Record, error)
}

// LogAudit is a shared helper for audit emission across services. It logs to
// the structured logger and emits to the audit publisher if configured. The
// actor comes exclusively from the request context; events without an actor
// record an empty actor rather than falling back to any system user.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, action, entity, entityID string, extra ...any) {
	requestID := requestcontext.RequestID(ctx)
	actor := ""
	if actorID := requestcontext.ActorID(ctx); !actorID.IsNil() {
		actor = actorID.String()
	}

	args := append(extra,
		"event", action,
		"entity", entity,
		"entity_id", entityID,
		"request_id", requestID,
		"actor_id", actor,
		"log_type", "audit",
	)
	if logger != nil {
		logger.InfoContext(ctx, action, args...)
	}
	if publisher == nil {
		return
	}
	event := audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Actor:     actor,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		RequestID: requestID,
		Detail:    attrs.String(extra, "detail"),
	}
	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", action, "error", err)
	}
}
