package handler

import (
	"strings"
	"time"

	"workpermit/internal/permit/models"
	dErrors "workpermit/pkg/domain-errors"
)

// IssueRequest is the HTTP request body for POST
// /deployments/{deploymentID}/permits.
type IssueRequest struct {
	PermitNumber  string    `json:"permit_number"`
	Type          string    `json:"type"`
	IssueDate     time.Time `json:"issue_date"`
	ExpiryDate    time.Time `json:"expiry_date"`
	FeeAmount     *int64    `json:"fee_amount,omitempty"`
	ReceiptNumber string    `json:"receipt_number,omitempty"`
}

// Validate validates the request. Date ordering and fee rules live in the
// model constructor.
func (r *IssueRequest) Validate() error {
	r.PermitNumber = strings.TrimSpace(r.PermitNumber)
	if r.PermitNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "permit_number is required")
	}
	if !models.Type(r.Type).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "type must be initial, extension, or reissue")
	}
	if r.IssueDate.IsZero() || r.ExpiryDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "issue_date and expiry_date are required")
	}
	r.ReceiptNumber = strings.TrimSpace(r.ReceiptNumber)
	return nil
}

func (r *IssueRequest) receiptNumber() *string {
	if r.ReceiptNumber == "" {
		return nil
	}
	return &r.ReceiptNumber
}
