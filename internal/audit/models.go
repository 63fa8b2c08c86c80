package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	Actor     string
	Action    string
	Entity    string
	EntityID  string
	RequestID string
	Detail    string
}

// Actions emitted by the core modules.
const (
	ActionLetterCreated        = "letter_created"
	ActionDeploymentCreated    = "deployment_created"
	ActionDeploymentTerminated = "deployment_terminated"
	ActionPermitIssued         = "permit_issued"
	ActionRunawayReported      = "runaway_reported"
	ActionRunawayNotified      = "runaway_notification_recorded"
	ActionRunawayConfirmed     = "runaway_confirmed"
	ActionRunawayFound         = "runaway_found"
	ActionPermitExpiryAlert    = "permit_expiry_alert"
)
