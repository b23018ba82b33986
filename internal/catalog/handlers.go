package catalog

import (
	"errors"
	"net/http"

	"github.com/noah-isme/toko-cart/internal/common"
)

// Handler exposes the catalog over HTTP.
type Handler struct {
	Source Source
}

// Get returns the current catalog payload.
func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Source == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog source not configured", nil)
		return
	}
	payload, err := h.Source.Load(r.Context())
	if err != nil {
		if errors.Is(err, ErrInvalidPayload) {
			common.JSONError(w, http.StatusBadGateway, "CATALOG_INVALID", err.Error(), nil)
			return
		}
		common.JSONError(w, http.StatusBadGateway, "CATALOG_UNAVAILABLE", "unable to load catalog", nil)
		return
	}
	common.Data(w, http.StatusOK, payload)
}
