package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/chicrime/internal/core/ports"
	"github.com/samirrijal/chicrime/internal/core/usecases"
	"github.com/samirrijal/chicrime/internal/timeseries"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, not_found, no_data, no_viable_configuration, ...
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal logs err with the request logger and returns a 500 error.
func errInternal(c *fiber.Ctx, err error) error {
	LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
	return newError(c, fiber.StatusInternalServerError, "internal_error", "internal server error")
}

// errFromService maps service errors onto the envelope. Unusable input
// (no incidents, too little history, no viable sweep value) is a 422;
// anything unrecognised is logged and hidden behind a 500.
func errFromService(c *fiber.Ctx, err error, what string) error {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return errNotFound(c, what+" not found")
	case usecases.IsNoData(err):
		return newError(c, fiber.StatusUnprocessableEntity, "no_data", err.Error())
	case usecases.IsNoViable(err):
		return newError(c, fiber.StatusUnprocessableEntity, "no_viable_configuration", err.Error())
	case errors.Is(err, timeseries.ErrInsufficientHistory):
		return newError(c, fiber.StatusUnprocessableEntity, "insufficient_history", err.Error())
	}
	return errInternal(c, err)
}
