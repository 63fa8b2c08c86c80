// Package expiry runs the background scan that surfaces permits entering
// their extension window. It only observes and alerts; filing the extension
// stays a human action through the API.
package expiry

import (
	"context"
	"log/slog"
	"time"

	"workpermit/internal/audit"
	"workpermit/internal/permit/models"
	"workpermit/internal/ports"
)

// Notifier periodically scans active permits and alerts on those within the
// extension window.
type Notifier struct {
	permits        ports.PermitStore
	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
	interval       time.Duration
}

// New constructs a notifier. A zero interval defaults to daily.
func New(permits ports.PermitStore, logger *slog.Logger, auditPublisher ports.AuditPublisher, interval time.Duration) *Notifier {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Notifier{
		permits:        permits,
		logger:         logger,
		auditPublisher: auditPublisher,
		interval:       interval,
	}
}

// Run scans once immediately, then on every tick until the context ends.
func (n *Notifier) Run(ctx context.Context) error {
	n.scan(ctx)

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n.scan(ctx)
		}
	}
}

func (n *Notifier) scan(ctx context.Context) {
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, models.ExtensionWindowDays)

	permits, err := n.permits.ListActiveExpiringBefore(ctx, cutoff)
	if err != nil {
		n.logger.ErrorContext(ctx, "expiry scan failed", "error", err)
		return
	}

	for _, p := range permits {
		check := p.CheckExpiry(now)
		n.logger.InfoContext(ctx, "permit nearing expiry",
			"permit_id", p.ID,
			"deployment_id", p.DeploymentID,
			"permit_number", p.PermitNumber,
			"days_until_expiry", check.DaysUntilExpiry,
			"urgent", check.IsUrgent,
			"expired", check.IsExpired,
		)
		ports.LogAudit(ctx, n.logger, n.auditPublisher, audit.ActionPermitExpiryAlert, "permit", p.ID.String(),
			"deployment_id", p.DeploymentID.String(),
			"days_until_expiry", check.DaysUntilExpiry,
			"urgent", check.IsUrgent)
	}

	n.logger.DebugContext(ctx, "expiry scan complete", "permits_flagged", len(permits))
}
