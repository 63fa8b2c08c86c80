// Package handler wires deployment endpoints to the placement coordinator.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"workpermit/internal/deployment/models"
	"workpermit/internal/deployment/service"
	id "workpermit/pkg/domain"
	"workpermit/pkg/platform/httputil"
	"workpermit/pkg/requestcontext"
)

// Service defines the deployment operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, params service.CreateParams) (*models.Deployment, error)
	Terminate(ctx context.Context, deploymentID id.DeploymentID, reason models.TerminationReason, endDate time.Time) (*models.Deployment, error)
	Get(ctx context.Context, deploymentID id.DeploymentID) (*models.Deployment, error)
}

// Handler wires deployment endpoints to the coordinator.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a deployment handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts deployment endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/deployments", h.HandleCreate)
	r.Get("/deployments/{deploymentID}", h.HandleGet)
	r.Post("/deployments/{deploymentID}/terminate", h.HandleTerminate)
}

// HandleCreate handles POST /deployments.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, ok := httputil.Decode[CreateRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	deployment, err := h.service.Create(ctx, service.CreateParams{
		WorkerID:          req.parsedWorkerID,
		EmployerID:        req.parsedEmployerID,
		LetterID:          req.parsedLetterID,
		SourceType:        models.SourceType(req.SourceType),
		EntryPermitNumber: req.entryPermitNumber(),
		Status:            models.Status(req.Status),
		StartDate:         req.StartDate,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "placement failed",
			"request_id", requestcontext.RequestID(ctx),
			"worker_id", req.WorkerID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "worker placed",
		"request_id", requestcontext.RequestID(ctx),
		"deployment_id", deployment.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, deployment)
}

// HandleTerminate handles POST /deployments/{deploymentID}/terminate.
func (h *Handler) HandleTerminate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	deploymentID, err := id.ParseDeploymentID(chi.URLParam(r, "deploymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[TerminateRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	deployment, err := h.service.Terminate(ctx, deploymentID, models.TerminationReason(req.Reason), req.EndDate)
	if err != nil {
		h.logger.WarnContext(ctx, "termination failed",
			"request_id", requestcontext.RequestID(ctx),
			"deployment_id", deploymentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, deployment)
}

// HandleGet handles GET /deployments/{deploymentID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	deploymentID, err := id.ParseDeploymentID(chi.URLParam(r, "deploymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	deployment, err := h.service.Get(r.Context(), deploymentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, deployment)
}
