package handler

import (
	"log/slog"
	"net/http"

	"github.com/fwdesk/fwdesk/internal/server/middleware"
	"github.com/fwdesk/fwdesk/internal/service"
)

// AuditHandler serves the audit trail.
type AuditHandler struct {
	svc    *service.RequestService
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(svc *service.RequestService, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{svc: svc, logger: logger}
}

// List returns every audit entry in write order.
// GET /api/audit
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetIdentity(r.Context())

	entries, err := h.svc.Audit(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
