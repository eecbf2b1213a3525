package handler

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// LookupHandler is the unauthenticated DNS helper the request form uses to
// prefill IP fields from hostnames.
type LookupHandler struct {
	resolver *net.Resolver
	timeout  time.Duration
	logger   *slog.Logger
}

// NewLookupHandler creates a LookupHandler.
func NewLookupHandler(timeout time.Duration, logger *slog.Logger) *LookupHandler {
	return &LookupHandler{
		resolver: net.DefaultResolver,
		timeout:  timeout,
		logger:   logger,
	}
}

type lookupRequest struct {
	Domain string `json:"domain"`
}

// NSLookup resolves a domain to its first IPv4 address.
// POST /api/nslookup
func (h *LookupHandler) NSLookup(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Domain == "" {
		writeError(w, http.StatusBadRequest, "Domain is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ips, err := h.resolver.LookupIP(ctx, "ip4", req.Domain)
	if err != nil || len(ips) == 0 {
		h.logger.Warn("nslookup failed", "domain", req.Domain, "error", err)
		writeError(w, http.StatusInternalServerError, "Error performing nslookup")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"ip": ips[0].String()})
}
