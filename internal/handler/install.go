package handler

import (
	"log/slog"
	"net/http"

	"github.com/fwdesk/fwdesk/internal/server/middleware"
	"github.com/fwdesk/fwdesk/internal/service"
)

// InstallHandler acknowledges installation triggers. The actual push of
// approved rules to firewall hardware is performed by an external installer;
// this endpoint records the trigger in the audit log and accepts it.
type InstallHandler struct {
	svc    *service.RequestService
	logger *slog.Logger
}

// NewInstallHandler creates an InstallHandler.
func NewInstallHandler(svc *service.RequestService, logger *slog.Logger) *InstallHandler {
	return &InstallHandler{svc: svc, logger: logger}
}

// Install records and acknowledges an installation trigger.
// POST /api/install
func (h *InstallHandler) Install(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetIdentity(r.Context())

	if err := h.svc.Install(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "accepted",
	})
}
