package fiber

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/bantay/core"
)

const serverErrorMessage = "Server error"

// mapErrorToStatus maps bantay errors to HTTP status codes
func mapErrorToStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, core.ErrUnauthorized),
		errors.Is(err, core.ErrInvalidCredentials),
		errors.Is(err, core.ErrInvalidToken),
		errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrSessionExpired):
		return http.StatusUnauthorized

	case errors.Is(err, core.ErrUserNotFound):
		return http.StatusNotFound

	case errors.Is(err, core.ErrUserExists):
		return http.StatusConflict

	case errors.Is(err, core.ErrRateLimited):
		return http.StatusTooManyRequests

	default:
		return http.StatusInternalServerError
	}
}

// userMessage is the text shown to the client. Internal details stay in the
// logs.
func userMessage(err error) string {
	if mapErrorToStatus(err) == http.StatusInternalServerError {
		return serverErrorMessage
	}

	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	return err.Error()
}

// isFormError reports whether err is shown on the form it came from rather
// than as an error response.
func isFormError(err error) bool {
	return errors.Is(err, core.ErrValidation) ||
		errors.Is(err, core.ErrUserExists) ||
		errors.Is(err, core.ErrInvalidCredentials) ||
		errors.Is(err, core.ErrRateLimited)
}

// handleError writes the JSON error response for err and logs server faults.
func (a *Adapter) handleError(c fiber.Ctx, err error) error {
	status := mapErrorToStatus(err)
	if status == http.StatusInternalServerError {
		a.logFailure(c, err)
	}
	return c.Status(status).JSON(core.ErrorResponse{Error: userMessage(err)})
}

func (a *Adapter) logFailure(c fiber.Ctx, err error) {
	a.log.Error(c.Context(), "request failed",
		"method", c.Method(), "path", c.Path(), "err", err)
}
