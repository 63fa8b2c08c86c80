package models

import (
	"time"

	id "workpermit/pkg/domain"
	dErrors "workpermit/pkg/domain-errors"
)

// Status is the legal state of a runaway incident.
//
// Transitions: reported_internally → notification_submitted →
// confirmed_runaway → found. Found is terminal for the incident; a later
// disappearance is a new record.
type Status string

const (
	StatusReported  Status = "reported_internally"
	StatusNotified  Status = "notification_submitted"
	StatusConfirmed Status = "confirmed_runaway"
	StatusFound     Status = "found"
)

// IsOpen reports whether the incident is still unresolved. At most one open
// record may exist per deployment.
func (s Status) IsOpen() bool { return s != StatusFound }

// Record tracks one missing-worker incident for one deployment.
//
// Invariants:
//   - QuotaFrozen is true exactly while Status is confirmed_runaway
//   - NotificationDate and NotificationNumber are set at the
//     notification_submitted transition and never cleared
//   - At most one open (non-found) record per deployment; enforced by the
//     store and a partial unique index
type Record struct {
	ID                 id.RunawayID    `json:"id"`
	DeploymentID       id.DeploymentID `json:"deployment_id"`
	Status             Status          `json:"status"`
	MissingDate        time.Time       `json:"missing_date"`
	NotificationDate   *time.Time      `json:"notification_date,omitempty"`
	NotificationNumber *string         `json:"notification_number,omitempty"`
	QuotaFrozen        bool            `json:"quota_frozen"`
	Notes              string          `json:"notes,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// NewRecord constructs an incident in reported_internally. Reporting alone
// has no legal weight: it touches neither the deployment nor the quota.
func NewRecord(recordID id.RunawayID, deploymentID id.DeploymentID, missingDate time.Time, notes string, now time.Time) (*Record, error) {
	if deploymentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "deployment_id is required")
	}
	if missingDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "missing date is required")
	}
	return &Record{
		ID:           recordID,
		DeploymentID: deploymentID,
		Status:       StatusReported,
		MissingDate:  missingDate,
		Notes:        notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CanRecordNotification checks the reported → notified transition.
func (r *Record) CanRecordNotification() error {
	if r.Status != StatusReported {
		return dErrors.Newf(dErrors.CodeBusinessRule, "notification can only be recorded from %s, record is %s", StatusReported, r.Status)
	}
	return nil
}

// ApplyNotification transitions to notification_submitted. No quota effect;
// the authority has been told but has not yet confirmed.
func (r *Record) ApplyNotification(notificationDate time.Time, notificationNumber string, notes string, now time.Time) {
	r.Status = StatusNotified
	r.NotificationDate = &notificationDate
	r.NotificationNumber = &notificationNumber
	if notes != "" {
		r.Notes = notes
	}
	r.UpdatedAt = now
}

// CanConfirm checks the notified → confirmed transition.
func (r *Record) CanConfirm() error {
	if r.Status != StatusNotified {
		return dErrors.Newf(dErrors.CodeBusinessRule, "runaway can only be confirmed from %s, record is %s", StatusNotified, r.Status)
	}
	return nil
}

// ApplyConfirmation transitions to confirmed_runaway and freezes the quota
// slot. The caller terminates the deployment and recomputes letter usage in
// the same transaction.
func (r *Record) ApplyConfirmation(notes string, now time.Time) {
	r.Status = StatusConfirmed
	r.QuotaFrozen = true
	if notes != "" {
		r.Notes = notes
	}
	r.UpdatedAt = now
}

// CanMarkFound checks the confirmed → found transition.
func (r *Record) CanMarkFound() error {
	if r.Status != StatusConfirmed {
		return dErrors.Newf(dErrors.CodeBusinessRule, "only a confirmed runaway can be marked found, record is %s", r.Status)
	}
	return nil
}

// ApplyFound resolves the incident and releases the frozen slot. It does not
// reactivate the deployment; that is a separate human decision.
func (r *Record) ApplyFound(now time.Time) {
	r.Status = StatusFound
	r.QuotaFrozen = false
	r.UpdatedAt = now
}
