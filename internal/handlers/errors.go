package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/tools/router"

	"ticket-platform/internal/status"
)

// apiError maps a service error onto the HTTP status of its category.
func apiError(err error) error {
	switch {
	case errors.Is(err, status.ErrValidation):
		return apis.NewBadRequestError(err.Error(), nil)
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError(err.Error(), nil)
	case errors.Is(err, status.ErrGatewayTimeout):
		return router.NewApiError(http.StatusGatewayTimeout, err.Error(), nil)
	case errors.Is(err, status.ErrGateway):
		return router.NewApiError(http.StatusBadGateway, err.Error(), nil)
	case errors.Is(err, status.ErrConflict):
		return router.NewApiError(http.StatusConflict, err.Error(), nil)
	default:
		slog.Error("unhandled checkout error", "error", err)
		return apis.NewInternalServerError("Something went wrong while processing your request.", nil)
	}
}
