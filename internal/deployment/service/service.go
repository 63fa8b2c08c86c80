// Package service coordinates worker placement and termination. Every
// mutation runs in one transaction covering the worker lock, the quota
// check, the deployment row, and the usage recompute, so a failure at any
// step leaves no partial state.
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
	"workpermit/internal/deployment/models"
	"workpermit/internal/platform/metrics"
	"workpermit/internal/ports"
	quotamodels "workpermit/internal/quota/models"
	id "workpermit/pkg/domain"
	dErrors "workpermit/pkg/domain-errors"
	"workpermit/pkg/platform/sentinel"
	"workpermit/pkg/requestcontext"
)

// QuotaLedger is the slice of the quota service this coordinator depends on.
type QuotaLedger interface {
	GetLetter(ctx context.Context, letterID id.LetterID) (*quotamodels.RecruitmentLetter, error)
	CheckAvailability(ctx context.Context, letterID id.LetterID, gender id.Gender) error
	RecalculateUsage(ctx context.Context, letterID id.LetterID) (int, error)
}

// Service coordinates deployment lifecycle operations.
type Service struct {
	txRunner       ports.TxRunner
	deployments    ports.DeploymentStore
	workers        ports.WorkerStore
	employers      ports.EmployerStore
	ledger         QuotaLedger
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

// New constructs the deployment coordinator.
func New(txRunner ports.TxRunner, deployments ports.DeploymentStore, workers ports.WorkerStore, employers ports.EmployerStore, ledger QuotaLedger, opts ...Option) *Service {
	s := &Service{
		txRunner:    txRunner,
		deployments: deployments,
		workers:     workers,
		employers:   employers,
		ledger:      ledger,
		tracer:      otel.Tracer("workpermit/deployment"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams are the inputs for placing a worker.
type CreateParams struct {
	WorkerID          id.WorkerID
	EmployerID        id.EmployerID
	LetterID          *id.LetterID
	SourceType        models.SourceType
	EntryPermitNumber *string
	Status            models.Status
	StartDate         time.Time
}

// Create places a worker with an employer. The worker row lock makes
// concurrent placements of the same worker serialize; the quota check, when
// a letter is attached, holds the letter row lock until commit so two
// concurrent placements cannot both consume the last slot.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Deployment, error) {
	ctx, span := s.tracer.Start(ctx, "deployment.create")
	defer span.End()

	if params.Status == "" {
		params.Status = models.StatusActive
	}

	var deployment *models.Deployment
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.workers.Lock(ctx, params.WorkerID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "worker not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock worker")
		}
		worker, err := s.workers.FindByID(ctx, params.WorkerID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load worker")
		}

		open, err := s.deployments.FindOpenByWorker(ctx, params.WorkerID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check open deployments")
		}
		if open != nil {
			return dErrors.New(dErrors.CodeBusinessRule, "worker already has an open deployment").WithDetails(map[string]any{
				"deployment_id": open.ID.String(),
			})
		}

		if _, err := s.employers.FindByID(ctx, params.EmployerID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "employer not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load employer")
		}

		if params.LetterID != nil {
			letter, err := s.ledger.GetLetter(ctx, *params.LetterID)
			if err != nil {
				return err
			}
			if letter.EmployerID != params.EmployerID {
				return dErrors.New(dErrors.CodeBusinessRule, "recruitment letter belongs to a different employer")
			}
			if err := s.ledger.CheckAvailability(ctx, *params.LetterID, worker.Gender); err != nil {
				return err
			}
		}

		deployment, err = models.NewDeployment(
			id.DeploymentID(uuid.New()),
			params.WorkerID,
			params.EmployerID,
			params.LetterID,
			params.SourceType,
			params.EntryPermitNumber,
			params.Status,
			params.StartDate,
			requestcontext.Now(ctx),
		)
		if err != nil {
			return err
		}
		if err := s.deployments.Create(ctx, deployment); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create deployment")
		}

		if params.LetterID != nil {
			if _, err := s.ledger.RecalculateUsage(ctx, *params.LetterID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.ActionDeploymentCreated, "deployment", deployment.ID.String(),
		"worker_id", deployment.WorkerID.String(),
		"employer_id", deployment.EmployerID.String(),
		"source_type", string(deployment.SourceType))
	if s.metrics != nil {
		s.metrics.DeploymentsCreated.Inc()
	}
	return deployment, nil
}

// Terminate ends an open deployment. The reason decides the final status
// pair; the usage recompute in the same transaction releases the slot of a
// circular letter and leaves a one-off letter's count untouched.
func (s *Service) Terminate(ctx context.Context, deploymentID id.DeploymentID, reason models.TerminationReason, endDate time.Time) (*models.Deployment, error) {
	ctx, span := s.tracer.Start(ctx, "deployment.terminate")
	defer span.End()

	if !reason.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid termination reason")
	}
	if endDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "end date is required")
	}

	var deployment *models.Deployment
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		deployment, err = s.deployments.FindByID(ctx, deploymentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "deployment not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load deployment")
		}
		if err := deployment.CanTerminate(); err != nil {
			return err
		}
		deployment.ApplyTermination(reason, endDate, requestcontext.Now(ctx))
		if err := s.deployments.Update(ctx, deployment); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update deployment")
		}
		if deployment.LetterID != nil {
			if _, err := s.ledger.RecalculateUsage(ctx, *deployment.LetterID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.ActionDeploymentTerminated, "deployment", deployment.ID.String(),
		"reason", string(reason),
		"detail", "terminated with reason "+string(reason),
		"status", string(deployment.Status),
		"service_status", string(deployment.ServiceStatus))
	if s.metrics != nil {
		s.metrics.DeploymentsTerminated.WithLabelValues(string(reason)).Inc()
	}
	return deployment, nil
}

// Get returns a deployment by ID.
func (s *Service) Get(ctx context.Context, deploymentID id.DeploymentID) (*models.Deployment, error) {
	deployment, err := s.deployments.FindByID(ctx, deploymentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "deployment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load deployment")
	}
	return deployment, nil
}
