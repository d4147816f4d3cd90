// internal/handlers/collections.go
package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/ports"
)

// CollectionsHandler serves the store collections to the UI
type CollectionsHandler struct {
	refs   ports.ReferenceService
	logger *slog.Logger
}

// NewCollectionsHandler creates a new collections handler
func NewCollectionsHandler(refs ports.ReferenceService, logger *slog.Logger) *CollectionsHandler {
	return &CollectionsHandler{
		refs:   refs,
		logger: logger.With(slog.String("handler", "collections")),
	}
}

// CountResponse is the body of GET /collections/{name}/count
type CountResponse struct {
	Collection domain.Collection `json:"collection"`
	Count      int               `json:"count"`
}

// ListResponse is the body of GET /collections/{name}
type ListResponse struct {
	Collection domain.Collection `json:"collection"`
	Records    []domain.Record   `json:"records"`
	Count      int               `json:"count"`
}

// List handles GET /api/v1/collections/{name}
func (h *CollectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	c, err := domain.ParseCollection(r.PathValue("name"))
	if err != nil {
		respondDomainError(w, r, h.logger, err, "Failed to list collection")
		return
	}

	records, err := h.refs.List(r.Context(), c)
	if err != nil {
		respondDomainError(w, r, h.logger, err, "Failed to list collection")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, ListResponse{
		Collection: c,
		Records:    records,
		Count:      len(records),
	})
}

// Count handles GET /api/v1/collections/{name}/count
func (h *CollectionsHandler) Count(w http.ResponseWriter, r *http.Request) {
	c, err := domain.ParseCollection(r.PathValue("name"))
	if err != nil {
		respondDomainError(w, r, h.logger, err, "Failed to count collection")
		return
	}

	n, err := h.refs.Count(r.Context(), c)
	if err != nil {
		respondDomainError(w, r, h.logger, err, "Failed to count collection")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, CountResponse{Collection: c, Count: n})
}

// Add handles POST /api/v1/collections/{name}
func (h *CollectionsHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := domain.ParseCollection(r.PathValue("name"))
	if err != nil {
		respondDomainError(w, r, h.logger, err, "Failed to add record")
		return
	}

	record, err := newRecord(c)
	if err != nil {
		respondDomainError(w, r, h.logger, err, "Failed to add record")
		return
	}
	if err := decodeJSON(r, record); err != nil {
		respondError(w, r, h.logger, bodyErrorStatus(err), err.Error())
		return
	}

	if err := h.refs.Add(ctx, c, record); err != nil {
		respondDomainError(w, r, h.logger, err, "Failed to add record")
		return
	}

	h.logger.InfoContext(ctx, "record added",
		slog.String("collection", c.String()),
		slog.String("key", record.Key()))

	respondJSON(w, h.logger, http.StatusCreated, record)
}

// newRecord returns an empty record of the collection's type
func newRecord(c domain.Collection) (domain.Record, error) {
	switch c {
	case domain.CollectionCustomers:
		return &domain.Customer{}, nil
	case domain.CollectionInventory:
		return &domain.InventoryItem{}, nil
	case domain.CollectionPackages:
		return &domain.Package{}, nil
	case domain.CollectionDevices:
		return &domain.Device{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrReadOnlyCollection, c)
	}
}
