package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/security"
)

// Sessions hosts per-user cart state for the HTTP layer.
type Sessions interface {
	Apply(ctx context.Context, userID string, cmd Command) (State, error)
	Get(ctx context.Context, userID string) (State, error)
	Reload(ctx context.Context, userID string) (State, error)
}

// Handler wires cart sessions to HTTP.
type Handler struct {
	Sessions Sessions
}

var requestValidator = validator.New(validator.WithRequiredStructEnabled())

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Count     int    `json:"count" validate:"gt=0,lte=9999"`
	IsChecked *bool  `json:"isChecked"`
}

type countRequest struct {
	Count int `json:"count" validate:"gt=0,lte=9999"`
}

type checkRequest struct {
	Check *bool `json:"check" validate:"required"`
}

type codeRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// Routes mounts the cart endpoints. write wraps every mutating route.
func (h *Handler) Routes(r chi.Router, write func(http.Handler) http.Handler) {
	r.Get("/", h.Get)
	r.Group(func(r chi.Router) {
		if write != nil {
			r.Use(write)
		}
		r.Delete("/", h.Clear)
		r.Post("/items", h.AddItem)
		r.Post("/items/check", h.CheckAll)
		r.Patch("/items/{productId}", h.UpdateCount)
		r.Delete("/items/{productId}", h.RemoveItem)
		r.Post("/items/{productId}/toggle", h.ToggleItem)
		r.Post("/discount", h.ApplyDiscount)
		r.Post("/coupon", h.ApplyCoupon)
		r.Delete("/coupon", h.RemoveCoupon)
		r.Put("/shipping", h.SetShipping)
		r.Post("/agreement", h.ToggleAgreement)
	})
}

// Get returns the caller's cart state.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	state, err := h.Sessions.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, state)
}

// AddItem adds a catalog product to the cart, merging with an existing line.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var payload addItemRequest
	if !decode(w, r, &payload) {
		return
	}
	state, err := h.Sessions.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	product, found := state.FindProduct(strings.TrimSpace(payload.ProductID))
	if !found {
		common.JSONError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found", map[string]any{"productId": payload.ProductID})
		return
	}
	checked := true
	if payload.IsChecked != nil {
		checked = *payload.IsChecked
	}
	h.apply(w, r, userID, AddToCart{Product: product, Count: payload.Count, IsChecked: checked})
}

// UpdateCount sets an item's count.
func (h *Handler) UpdateCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var payload countRequest
	if !decode(w, r, &payload) {
		return
	}
	h.apply(w, r, userID, UpdateProductCount{ProductID: chi.URLParam(r, "productId"), Count: payload.Count})
}

// RemoveItem drops an item from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if userID, ok := h.user(w, r); ok {
		h.apply(w, r, userID, RemoveFromCart{ProductID: chi.URLParam(r, "productId")})
	}
}

// ToggleItem flips an item's checked flag.
func (h *Handler) ToggleItem(w http.ResponseWriter, r *http.Request) {
	if userID, ok := h.user(w, r); ok {
		h.apply(w, r, userID, UpdateProductCheck{ProductID: chi.URLParam(r, "productId")})
	}
}

// CheckAll sets every item's checked flag.
func (h *Handler) CheckAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var payload checkRequest
	if !decode(w, r, &payload) {
		return
	}
	h.apply(w, r, userID, CheckAllItems{Check: *payload.Check})
}

// ApplyDiscount applies an item discount code.
func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	h.withCode(w, r, func(code string) Command { return ApplyDiscount{Code: code} })
}

// ApplyCoupon attaches a coupon, or clears it when the code is not available.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	h.withCode(w, r, func(code string) Command { return ApplyCoupon{Code: code} })
}

// RemoveCoupon detaches the coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	if userID, ok := h.user(w, r); ok {
		h.apply(w, r, userID, RemoveCoupon{})
	}
}

// SetShipping selects a shipping option.
func (h *Handler) SetShipping(w http.ResponseWriter, r *http.Request) {
	h.withCode(w, r, func(code string) Command { return SetShipping{Code: code} })
}

// ToggleAgreement flips the terms-and-agreement flag.
func (h *Handler) ToggleAgreement(w http.ResponseWriter, r *http.Request) {
	if userID, ok := h.user(w, r); ok {
		h.apply(w, r, userID, SetAgreement{})
	}
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if userID, ok := h.user(w, r); ok {
		h.apply(w, r, userID, ClearCart{})
	}
}

// Reload re-reads the catalog into the caller's store.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	state, err := h.Sessions.Reload(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, state)
}

func (h *Handler) withCode(w http.ResponseWriter, r *http.Request, build func(string) Command) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var payload codeRequest
	if !decode(w, r, &payload) {
		return
	}
	h.apply(w, r, userID, build(strings.TrimSpace(payload.Code)))
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, userID string, cmd Command) {
	state, err := h.Sessions.Apply(r.Context(), userID, cmd)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, state)
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Sessions == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart sessions not configured", nil)
		return "", false
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		h.writeError(w, ErrNoUser)
		return "", false
	}
	return userID, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if security.IsTooLarge(err) {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
			return false
		}
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	if err := requestValidator.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		details := map[string]string{}
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid payload", details)
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	if common.WriteAppError(w, err, http.StatusBadRequest) {
		return
	}
	switch {
	case errors.Is(err, ErrNoUser):
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrBusy):
		common.JSONError(w, http.StatusConflict, "CART_BUSY", "cart is being updated, retry shortly", nil)
	case errors.Is(err, ErrCatalogUnavailable):
		common.JSONError(w, http.StatusBadGateway, "CATALOG_UNAVAILABLE", "catalog is unavailable", nil)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		common.JSONError(w, http.StatusServiceUnavailable, "TIMEOUT", "request timed out", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to update cart", nil)
	}
}
