package httpapi

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/labstack/echo/v4"
)

const bearerPrefix = "Bearer "

// requireAuth resolves the bearer token into the caller identity and puts
// it into the request context.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			return common.ErrUnauthenticated
		}

		ctx := c.Request().Context()
		id, err := s.auth.Authenticate(ctx, header[len(bearerPrefix):])
		if err != nil {
			return err
		}

		c.SetRequest(c.Request().WithContext(auth.WithIdentity(ctx, *id)))
		return next(c)
	}
}

// requireRole applies the authorization gate to the identity set by
// requireAuth.
func requireRole(allowed ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := auth.Authorize(identity(c), allowed...); err != nil {
				return err
			}
			return next(c)
		}
	}
}

func identity(c echo.Context) *models.Identity {
	return auth.IdentityFromContext(c.Request().Context())
}

// requestLogger logs one line per request after the error handler ran.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		// the RequestID middleware has already set the response header
		if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
			c.SetRequest(c.Request().WithContext(logging.WithRequestID(c.Request().Context(), id)))
		}

		if err := next(c); err != nil {
			c.Error(err)
		}

		req := c.Request()
		s.logger.Info(req.Context(), "http request",
			"method", req.Method,
			"path", c.Path(),
			"status", c.Response().Status,
			"latency", time.Since(start).String(),
		)
		return nil
	}
}
