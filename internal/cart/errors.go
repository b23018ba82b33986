package cart

import "errors"

// Errors surfaced by the layers that host the store. The reducer itself never fails.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrNoUser             = errors.New("cart: user id required")
	ErrBusy               = errors.New("cart: another update is in progress")
	ErrCatalogUnavailable = errors.New("cart: catalog unavailable")
)
