package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/projexia/projexia/internal/api/middleware"
	"github.com/projexia/projexia/internal/core/domain"
)

// IdempotencyHeader carries the client-chosen key that makes create calls
// safe to retry.
const IdempotencyHeader = "Idempotency-Key"

// ctxCaller extracts the caller injected by the Auth middleware. A missing
// caller means the route was mounted without Auth.
func ctxCaller(c echo.Context) (domain.Caller, error) {
	caller, ok := middleware.CallerFrom(c)
	if !ok || caller.UserID == "" {
		return domain.Caller{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return caller, nil
}

// bindAndValidate decodes the request body into req and runs struct validation.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	return c.Validate(req)
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}
