// Package handler wires permit endpoints to the permit service. Permits are
// always addressed through their deployment; the chain has no standalone
// collection.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"workpermit/internal/permit/models"
	"workpermit/internal/permit/service"
	id "workpermit/pkg/domain"
	"workpermit/pkg/platform/httputil"
	"workpermit/pkg/requestcontext"
)

// Service defines the permit operations exposed over HTTP.
type Service interface {
	Issue(ctx context.Context, params service.IssueParams) (*models.Permit, error)
	CheckExpiry(ctx context.Context, deploymentID id.DeploymentID) (models.ExpiryCheck, error)
	ListByDeployment(ctx context.Context, deploymentID id.DeploymentID) ([]*models.Permit, error)
}

// Handler wires permit endpoints to the permit service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a permit handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts permit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/deployments/{deploymentID}/permits", h.HandleIssue)
	r.Get("/deployments/{deploymentID}/permits", h.HandleList)
	r.Get("/deployments/{deploymentID}/permits/expiry", h.HandleCheckExpiry)
}

// HandleIssue handles POST /deployments/{deploymentID}/permits.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	deploymentID, err := id.ParseDeploymentID(chi.URLParam(r, "deploymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[IssueRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	permit, err := h.service.Issue(ctx, service.IssueParams{
		DeploymentID:  deploymentID,
		PermitNumber:  req.PermitNumber,
		Type:          models.Type(req.Type),
		IssueDate:     req.IssueDate,
		ExpiryDate:    req.ExpiryDate,
		FeeAmount:     req.FeeAmount,
		ReceiptNumber: req.receiptNumber(),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "permit issuance failed",
			"request_id", requestcontext.RequestID(ctx),
			"deployment_id", deploymentID,
			"type", req.Type,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, permit)
}

// HandleList handles GET /deployments/{deploymentID}/permits.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	deploymentID, err := id.ParseDeploymentID(chi.URLParam(r, "deploymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	permits, err := h.service.ListByDeployment(r.Context(), deploymentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if permits == nil {
		permits = []*models.Permit{}
	}
	httputil.WriteJSON(w, http.StatusOK, permits)
}

// HandleCheckExpiry handles GET /deployments/{deploymentID}/permits/expiry.
func (h *Handler) HandleCheckExpiry(w http.ResponseWriter, r *http.Request) {
	deploymentID, err := id.ParseDeploymentID(chi.URLParam(r, "deploymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	check, err := h.service.CheckExpiry(r.Context(), deploymentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, check)
}
