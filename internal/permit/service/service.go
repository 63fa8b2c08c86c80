// Package service implements the employment permit state machine: issuance
// under per-type legal preconditions, the single-active-permit invariant,
// and the extension window report.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"workpermit/internal/audit"
	"workpermit/internal/permit/models"
	"workpermit/internal/platform/metrics"
	"workpermit/internal/ports"
	id "workpermit/pkg/domain"
	dErrors "workpermit/pkg/domain-errors"
	"workpermit/pkg/platform/sentinel"
	"workpermit/pkg/requestcontext"
)

// Service issues and inspects employment permits.
type Service struct {
	txRunner       ports.TxRunner
	permits        ports.PermitStore
	deployments    ports.DeploymentStore
	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs the permit service.
func New(txRunner ports.TxRunner, permits ports.PermitStore, deployments ports.DeploymentStore, opts ...Option) *Service {
	s := &Service{
		txRunner:    txRunner,
		permits:     permits,
		deployments: deployments,
		tracer:      otel.Tracer("workpermit/permit"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueParams are the inputs for issuing a permit.
type IssueParams struct {
	DeploymentID  id.DeploymentID
	PermitNumber  string
	Type          models.Type
	IssueDate     time.Time
	ExpiryDate    time.Time
	FeeAmount     *int64
	ReceiptNumber *string
}

// Issue creates a permit of the requested type after its legal precondition
// holds:
//
//   - initial: the deployment must be eligible (transfer-sourced, or
//     recruited with an entry permit under a letter) and must not already
//     hold an active permit
//   - extension: an active predecessor must exist; it is expired in the
//     same transaction that creates the extension
//   - reissue: any active predecessor is expired first, so a reissue after
//     a lost document never leaves two active permits
func (s *Service) Issue(ctx context.Context, params IssueParams) (*models.Permit, error) {
	ctx, span := s.tracer.Start(ctx, "permit.issue")
	defer span.End()

	if !params.Type.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid permit type")
	}

	var permit *models.Permit
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		deployment, err := s.deployments.FindByID(ctx, params.DeploymentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "deployment not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load deployment")
		}
		if !deployment.IsOpen() {
			return dErrors.Newf(dErrors.CodeBusinessRule, "cannot issue a permit on a %s deployment", deployment.Status)
		}

		active, err := s.permits.FindActiveByDeployment(ctx, params.DeploymentID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active permit")
		}

		now := requestcontext.Now(ctx)
		switch params.Type {
		case models.TypeInitial:
			if !deployment.EligibleForInitialPermit() {
				return dErrors.New(dErrors.CodeBusinessRule, "initial permit requires an entry permit issued under a recruitment letter")
			}
			if active != nil {
				return dErrors.New(dErrors.CodeBusinessRule, "deployment already has an active permit")
			}
		case models.TypeExtension:
			if active == nil {
				return dErrors.New(dErrors.CodeBusinessRule, "cannot extend without a prior active permit")
			}
			active.Expire(now)
			if err := s.permits.Update(ctx, active); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire predecessor permit")
			}
		case models.TypeReissue:
			if active != nil {
				active.Expire(now)
				if err := s.permits.Update(ctx, active); err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire predecessor permit")
				}
			}
		}

		permit, err = models.NewPermit(
			id.PermitID(uuid.New()),
			params.DeploymentID,
			params.PermitNumber,
			params.Type,
			params.IssueDate,
			params.ExpiryDate,
			params.FeeAmount,
			params.ReceiptNumber,
			now,
		)
		if err != nil {
			return err
		}
		if err := s.permits.Create(ctx, permit); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create permit")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.ActionPermitIssued, "permit", permit.ID.String(),
		"deployment_id", permit.DeploymentID.String(),
		"permit_number", permit.PermitNumber,
		"type", string(permit.Type))
	if s.metrics != nil {
		s.metrics.PermitsIssued.WithLabelValues(string(permit.Type)).Inc()
	}
	return permit, nil
}

// CheckExpiry reports the extension window for the deployment's active
// permit. A deployment with no active permit yields HasActivePermit=false
// rather than an error.
func (s *Service) CheckExpiry(ctx context.Context, deploymentID id.DeploymentID) (models.ExpiryCheck, error) {
	if _, err := s.deployments.FindByID(ctx, deploymentID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.ExpiryCheck{}, dErrors.New(dErrors.CodeNotFound, "deployment not found")
		}
		return models.ExpiryCheck{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load deployment")
	}

	active, err := s.permits.FindActiveByDeployment(ctx, deploymentID)
	if err != nil {
		return models.ExpiryCheck{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active permit")
	}
	if active == nil {
		return models.ExpiryCheck{}, nil
	}
	return active.CheckExpiry(requestcontext.Now(ctx)), nil
}

// ListByDeployment returns the deployment's permit chain, newest first.
func (s *Service) ListByDeployment(ctx context.Context, deploymentID id.DeploymentID) ([]*models.Permit, error) {
	if _, err := s.deployments.FindByID(ctx, deploymentID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "deployment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load deployment")
	}
	return s.permits.ListByDeployment(ctx, deploymentID)
}
