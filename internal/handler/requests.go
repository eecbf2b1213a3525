package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fwdesk/fwdesk/internal/model"
	"github.com/fwdesk/fwdesk/internal/server/middleware"
	"github.com/fwdesk/fwdesk/internal/service"
)

// RequestHandler serves the rule request CRUD surface. All routes run behind
// the Authenticate middleware, so an identity is always present in the
// context.
type RequestHandler struct {
	svc    *service.RequestService
	logger *slog.Logger
}

// NewRequestHandler creates a RequestHandler.
func NewRequestHandler(svc *service.RequestService, logger *slog.Logger) *RequestHandler {
	return &RequestHandler{svc: svc, logger: logger}
}

// List returns the caller's requests, or all requests for admins.
// GET /api/requests
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetIdentity(r.Context())

	requests, err := h.svc.List(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

// Get returns one request by id, subject to ownership checks.
// GET /api/request/{id}
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetIdentity(r.Context())

	req, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// Create submits a new rule request.
// POST /api/requests
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetIdentity(r.Context())

	var in model.RuleRequestInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req, err := h.svc.Create(r.Context(), in, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

type updateRequest struct {
	Status        string `json:"status"`
	ReviewerNotes string `json:"reviewer_notes"`
}

// Update moves a request through its lifecycle. Admin only; enforced by the
// RequireAdmin middleware and re-checked in the service.
// PATCH /api/request/{id}
func (h *RequestHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetIdentity(r.Context())

	var in updateRequest
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"),
		model.Status(in.Status), in.ReviewerNotes, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
