// Package service implements the runaway incident state machine. Only the
// confirmed transition has quota weight: it terminates the deployment,
// freezes the slot, and recomputes letter usage in one transaction.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"workpermit/internal/audit"
	deploymentmodels "workpermit/internal/deployment/models"
	"workpermit/internal/platform/metrics"
	"workpermit/internal/ports"
	"workpermit/internal/runaway/models"
	id "workpermit/pkg/domain"
	dErrors "workpermit/pkg/domain-errors"
	"workpermit/pkg/platform/sentinel"
	"workpermit/pkg/requestcontext"
)

// UsageRecalculator recomputes a letter's used quota from deployment rows.
type UsageRecalculator interface {
	RecalculateUsage(ctx context.Context, letterID id.LetterID) (int, error)
}

// Service drives runaway incident records through their legal transitions.
type Service struct {
	txRunner       ports.TxRunner
	runaways       ports.RunawayStore
	deployments    ports.DeploymentStore
	ledger         UsageRecalculator
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

// New constructs the runaway service.
func New(txRunner ports.TxRunner, runaways ports.RunawayStore, deployments ports.DeploymentStore, ledger UsageRecalculator, opts ...Option) *Service {
	s := &Service{
		txRunner:    txRunner,
		runaways:    runaways,
		deployments: deployments,
		ledger:      ledger,
		tracer:      otel.Tracer("workpermit/runaway"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReportParams are the inputs for reporting a missing worker.
type ReportParams struct {
	DeploymentID id.DeploymentID
	MissingDate  time.Time
	Notes        string
}

// Report opens an incident in reported_internally. It has no effect on the
// deployment or the quota; at most one open incident may exist per
// deployment.
func (s *Service) Report(ctx context.Context, params ReportParams) (*models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "runaway.report")
	defer span.End()

	var record *models.Record
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		deployment, err := s.deployments.FindByID(ctx, params.DeploymentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "deployment not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load deployment")
		}
		if !deployment.IsOpen() {
			return dErrors.Newf(dErrors.CodeBusinessRule, "cannot report a runaway on a %s deployment", deployment.Status)
		}

		record, err = models.NewRecord(
			id.RunawayID(uuid.New()),
			params.DeploymentID,
			params.MissingDate,
			strings.TrimSpace(params.Notes),
			requestcontext.Now(ctx),
		)
		if err != nil {
			return err
		}
		if err := s.runaways.Create(ctx, record); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "deployment already has an open runaway record")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create runaway record")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.ActionRunawayReported, "runaway_record", record.ID.String(),
		"deployment_id", record.DeploymentID.String())
	s.incrementTransition(record.Status)
	return record, nil
}

// NotificationParams are the inputs for recording the authority filing.
type NotificationParams struct {
	NotificationDate   time.Time
	NotificationNumber string
	Notes              string
}

// RecordNotification transitions reported_internally to
// notification_submitted. Still no quota effect; the filing reference is
// kept for the later confirmation.
func (s *Service) RecordNotification(ctx context.Context, recordID id.RunawayID, params NotificationParams) (*models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "runaway.record_notification")
	defer span.End()

	params.NotificationNumber = strings.TrimSpace(params.NotificationNumber)
	if params.NotificationNumber == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "notification number cannot be empty")
	}
	if params.NotificationDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "notification date is required")
	}

	var record *models.Record
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		record, err = s.findRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if err := record.CanRecordNotification(); err != nil {
			return err
		}
		record.ApplyNotification(params.NotificationDate, params.NotificationNumber, strings.TrimSpace(params.Notes), requestcontext.Now(ctx))
		if err := s.runaways.Update(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update runaway record")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.ActionRunawayNotified, "runaway_record", record.ID.String(),
		"notification_number", params.NotificationNumber)
	s.incrementTransition(record.Status)
	return record, nil
}

// Confirm transitions notification_submitted to confirmed_runaway. In the
// same transaction it terminates the deployment with the runaway reason,
// back-dated to the missing date, freezes the slot, and recomputes the
// letter's usage. A circular letter therefore stays consumed while the
// worker is missing even though the deployment is closed.
func (s *Service) Confirm(ctx context.Context, recordID id.RunawayID, notes string) (*models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "runaway.confirm")
	defer span.End()

	var record *models.Record
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		record, err = s.findRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if err := record.CanConfirm(); err != nil {
			return err
		}
		record.ApplyConfirmation(strings.TrimSpace(notes), requestcontext.Now(ctx))
		if err := s.runaways.Update(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update runaway record")
		}

		deployment, err := s.deployments.FindByID(ctx, record.DeploymentID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load deployment")
		}
		if deployment.IsOpen() {
			deployment.ApplyTermination(deploymentmodels.ReasonRunaway, record.MissingDate, requestcontext.Now(ctx))
			if err := s.deployments.Update(ctx, deployment); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to terminate deployment")
			}
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

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.ActionRunawayConfirmed, "runaway_record", record.ID.String(),
		"deployment_id", record.DeploymentID.String(),
		"detail", "deployment terminated, quota slot frozen")
	s.incrementTransition(record.Status)
	return record, nil
}

// MarkFound resolves a confirmed incident and releases the frozen slot,
// recomputing the letter's usage. The deployment stays terminated; putting
// the worker back to work is a new placement.
func (s *Service) MarkFound(ctx context.Context, recordID id.RunawayID) (*models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "runaway.mark_found")
	defer span.End()

	var record *models.Record
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		record, err = s.findRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if err := record.CanMarkFound(); err != nil {
			return err
		}
		record.ApplyFound(requestcontext.Now(ctx))
		if err := s.runaways.Update(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update runaway record")
		}

		deployment, err := s.deployments.FindByID(ctx, record.DeploymentID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load deployment")
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

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.ActionRunawayFound, "runaway_record", record.ID.String(),
		"deployment_id", record.DeploymentID.String(),
		"detail", "quota slot released")
	s.incrementTransition(record.Status)
	return record, nil
}

// ListByDeployment returns the deployment's incident history, newest first.
func (s *Service) ListByDeployment(ctx context.Context, deploymentID id.DeploymentID) ([]*models.Record, error) {
	if _, err := s.deployments.FindByID(ctx, deploymentID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "deployment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load deployment")
	}
	return s.runaways.ListByDeployment(ctx, deploymentID)
}

func (s *Service) findRecord(ctx context.Context, recordID id.RunawayID) (*models.Record, error) {
	record, err := s.runaways.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "runaway record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load runaway record")
	}
	return record, nil
}

func (s *Service) incrementTransition(state models.Status) {
	if s.metrics != nil {
		s.metrics.RunawayTransitions.WithLabelValues(string(state)).Inc()
	}
}
