// internal/handlers/sync.go
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/ports"
)

// ConnectivityToggle is implemented by providers that accept a manual override
type ConnectivityToggle interface {
	IsOnline() bool
	SetOnline(online bool)
}

// SyncHandler exposes the sync monitor
type SyncHandler struct {
	monitor ports.SyncMonitor
	toggle  ConnectivityToggle
	logger  *slog.Logger
}

// NewSyncHandler creates a sync handler. toggle may be nil when
// connectivity comes from a probe.
func NewSyncHandler(monitor ports.SyncMonitor, toggle ConnectivityToggle, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		monitor: monitor,
		toggle:  toggle,
		logger:  logger.With(slog.String("handler", "sync")),
	}
}

// ConnectivityRequest is the body of PUT /connectivity
type ConnectivityRequest struct {
	Online *bool `json:"online"`
}

// Status handles GET /api/v1/sync/status
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respondJSON(w, h.logger, http.StatusOK, h.monitor.Status(r.Context()))
}

// SyncNow handles POST /api/v1/sync
func (h *SyncHandler) SyncNow(w http.ResponseWriter, r *http.Request) {
	result, err := h.monitor.SyncNow(r.Context())
	if err != nil {
		respondDomainError(w, r, h.logger, err, "Sync failed")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, result)
}

// SetConnectivity handles PUT /api/v1/connectivity
func (h *SyncHandler) SetConnectivity(w http.ResponseWriter, r *http.Request) {
	if h.toggle == nil {
		respondError(w, r, h.logger, http.StatusConflict, "connectivity is detected automatically")
		return
	}

	var req ConnectivityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, bodyErrorStatus(err), err.Error())
		return
	}
	if req.Online == nil {
		respondError(w, r, h.logger, http.StatusBadRequest, "online is required")
		return
	}

	h.toggle.SetOnline(*req.Online)
	h.logger.InfoContext(r.Context(), "connectivity set manually", slog.Bool("online", *req.Online))

	respondJSON(w, h.logger, http.StatusOK, h.monitor.Status(r.Context()))
}
