package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/labstack/echo/v4"
)

// errorStatus maps service errors to HTTP statuses. The first match wins.
var errorStatus = []struct {
	err    error
	status int
}{
	{common.ErrorValidation, http.StatusBadRequest},

	{common.ErrInvalidCredentials, http.StatusUnauthorized},
	{common.ErrAccountInactive, http.StatusUnauthorized},
	{common.ErrRefreshTokenNotFound, http.StatusUnauthorized},
	{common.ErrRefreshTokenInvalid, http.StatusUnauthorized},
	{common.ErrRefreshTokenReused, http.StatusUnauthorized},
	{common.ErrUserInactiveOrMissing, http.StatusUnauthorized},
	{common.ErrUnauthenticated, http.StatusUnauthorized},
	{common.ErrInvalidToken, http.StatusUnauthorized},

	{common.ErrInsufficientRole, http.StatusForbidden},
	{common.ErrForbidden, http.StatusForbidden},

	{common.ErrorNotFound, http.StatusNotFound},
	{common.ErrEmailAlreadyExists, http.StatusConflict},
	{common.ErrorAlreadyExists, http.StatusConflict},
}

// statusFor returns the status for err and whether err is a known error.
func statusFor(err error) (int, bool) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return m.status, true
		}
	}
	return http.StatusInternalServerError, false
}

// handleError renders every error returned by a handler as a failure
// envelope. Unknown errors are logged and hidden behind a generic message.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		status  int
		message string
		he      *echo.HTTPError
	)
	if errors.As(err, &he) {
		status = he.Code
		message = http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			message = m
		}
	} else if code, known := statusFor(err); known {
		status, message = code, err.Error()
	} else {
		status, message = code, "internal error"
		s.logger.Error(c.Request().Context(), "request failed", "path", c.Path(), "error", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = fail(c, status, message)
	}
	if err != nil {
		s.logger.Error(c.Request().Context(), "write error response", "error", err)
	}
}
