package controlplane

import (
	"context"
	"errors"
	"net/http"

	"github.com/cleaver/open-dev-coach/internal/ai"
	"github.com/cleaver/open-dev-coach/internal/models"
	"github.com/cleaver/open-dev-coach/internal/scheduler"
	"github.com/cleaver/open-dev-coach/internal/session"
)

// ErrUnavailable is returned when a component the operation needs is not wired.
var ErrUnavailable = errors.New("component not available")

// httpStatus maps service errors to HTTP status codes.
func httpStatus(err error) int {
	switch {
	case models.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, scheduler.ErrStopped),
		errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrStopped),
		errors.Is(err, ai.ErrDisabled),
		errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
