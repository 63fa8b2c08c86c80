package handler

import (
	"time"

	id "workpermit/pkg/domain"
	dErrors "workpermit/pkg/domain-errors"
)

// ReportRequest is the HTTP request body for POST /runaways.
type ReportRequest struct {
	DeploymentID string    `json:"deployment_id"`
	MissingDate  time.Time `json:"missing_date"`
	Notes        string    `json:"notes,omitempty"`

	parsedDeploymentID id.DeploymentID
}

// Validate validates and parses the request.
func (r *ReportRequest) Validate() error {
	if r.DeploymentID == "" {
		return dErrors.New(dErrors.CodeValidation, "deployment_id is required")
	}
	deploymentID, err := id.ParseDeploymentID(r.DeploymentID)
	if err != nil {
		return err
	}
	r.parsedDeploymentID = deploymentID
	if r.MissingDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "missing_date is required")
	}
	return nil
}

// NotificationRequest is the HTTP request body for POST
// /runaways/{recordID}/notification. Field rules are enforced by the
// service.
type NotificationRequest struct {
	NotificationDate   time.Time `json:"notification_date"`
	NotificationNumber string    `json:"notification_number"`
	Notes              string    `json:"notes,omitempty"`
}

// ConfirmRequest is the HTTP request body for POST
// /runaways/{recordID}/confirm.
type ConfirmRequest struct {
	Notes string `json:"notes,omitempty"`
}
