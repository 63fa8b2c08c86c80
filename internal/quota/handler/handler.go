// Package handler wires recruitment letter endpoints to the quota ledger.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"workpermit/internal/quota/models"
	"workpermit/internal/quota/service"
	id "workpermit/pkg/domain"
	"workpermit/pkg/platform/httputil"
	"workpermit/pkg/requestcontext"
)

// Service defines the quota ledger operations exposed over HTTP.
type Service interface {
	CreateLetter(ctx context.Context, params service.CreateLetterParams) (*models.RecruitmentLetter, error)
	GetLetter(ctx context.Context, letterID id.LetterID) (*models.RecruitmentLetter, error)
	GetSummary(ctx context.Context, letterID id.LetterID) (*models.UsageSummary, error)
}

// Handler wires letter endpoints to the quota service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a quota handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts letter endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/letters", h.HandleCreateLetter)
	r.Get("/letters/{letterID}", h.HandleGetLetter)
	r.Get("/letters/{letterID}/summary", h.HandleGetSummary)
}

// HandleCreateLetter handles POST /letters.
func (h *Handler) HandleCreateLetter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[CreateLetterRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	letter, err := h.service.CreateLetter(ctx, service.CreateLetterParams{
		EmployerID:    req.parsedEmployerID,
		LetterNumber:  req.LetterNumber,
		ApprovedQuota: req.ApprovedQuota,
		MaleQuota:     req.MaleQuota,
		FemaleQuota:   req.FemaleQuota,
		CanCirculate:  req.CanCirculate,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "letter creation failed",
			"request_id", requestcontext.RequestID(ctx),
			"letter_number", req.LetterNumber,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, letter)
}

// HandleGetLetter handles GET /letters/{letterID}.
func (h *Handler) HandleGetLetter(w http.ResponseWriter, r *http.Request) {
	letterID, err := id.ParseLetterID(chi.URLParam(r, "letterID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	letter, err := h.service.GetLetter(r.Context(), letterID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, letter)
}

// HandleGetSummary handles GET /letters/{letterID}/summary.
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	letterID, err := id.ParseLetterID(chi.URLParam(r, "letterID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	summary, err := h.service.GetSummary(r.Context(), letterID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}
