// Package handler wires runaway incident endpoints to the runaway service.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"workpermit/internal/runaway/models"
	"workpermit/internal/runaway/service"
	id "workpermit/pkg/domain"
	"workpermit/pkg/platform/httputil"
	"workpermit/pkg/requestcontext"
)

// Service defines the runaway operations exposed over HTTP.
type Service interface {
	Report(ctx context.Context, params service.ReportParams) (*models.Record, error)
	RecordNotification(ctx context.Context, recordID id.RunawayID, params service.NotificationParams) (*models.Record, error)
	Confirm(ctx context.Context, recordID id.RunawayID, notes string) (*models.Record, error)
	MarkFound(ctx context.Context, recordID id.RunawayID) (*models.Record, error)
	ListByDeployment(ctx context.Context, deploymentID id.DeploymentID) ([]*models.Record, error)
}

// Handler wires runaway endpoints to the runaway service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a runaway handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts runaway endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/runaways", h.HandleReport)
	r.Post("/runaways/{recordID}/notification", h.HandleRecordNotification)
	r.Post("/runaways/{recordID}/confirm", h.HandleConfirm)
	r.Post("/runaways/{recordID}/found", h.HandleMarkFound)
	r.Get("/deployments/{deploymentID}/runaways", h.HandleList)
}

// HandleReport handles POST /runaways.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[ReportRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.Report(ctx, service.ReportParams{
		DeploymentID: req.parsedDeploymentID,
		MissingDate:  req.MissingDate,
		Notes:        req.Notes,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "runaway report failed",
			"request_id", requestcontext.RequestID(ctx),
			"deployment_id", req.DeploymentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, record)
}

// HandleRecordNotification handles POST /runaways/{recordID}/notification.
func (h *Handler) HandleRecordNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recordID, err := id.ParseRunawayID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[NotificationRequest](w, r, h.logger)
	if !ok {
		return
	}

	record, err := h.service.RecordNotification(ctx, recordID, service.NotificationParams{
		NotificationDate:   req.NotificationDate,
		NotificationNumber: req.NotificationNumber,
		Notes:              req.Notes,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleConfirm handles POST /runaways/{recordID}/confirm.
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recordID, err := id.ParseRunawayID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[ConfirmRequest](w, r, h.logger)
	if !ok {
		return
	}

	record, err := h.service.Confirm(ctx, recordID, req.Notes)
	if err != nil {
		h.logger.WarnContext(ctx, "runaway confirmation failed",
			"request_id", requestcontext.RequestID(ctx),
			"record_id", recordID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleMarkFound handles POST /runaways/{recordID}/found.
func (h *Handler) HandleMarkFound(w http.ResponseWriter, r *http.Request) {
	recordID, err := id.ParseRunawayID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	record, err := h.service.MarkFound(r.Context(), recordID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleList handles GET /deployments/{deploymentID}/runaways.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	deploymentID, err := id.ParseDeploymentID(chi.URLParam(r, "deploymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	records, err := h.service.ListByDeployment(r.Context(), deploymentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if records == nil {
		records = []*models.Record{}
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}
