package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/infrastructure/logger"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entities.ErrValidation),
		errors.Is(err, entities.ErrUnsupportedType),
		errors.Is(err, entities.ErrDuplicate):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, entities.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrReindexInProgress):
		return http.StatusConflict
	case errors.Is(err, entities.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleError renders every error as {"detail": message}.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	} else {
		status = statusFor(err)
	}

	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
		if status == http.StatusInternalServerError {
			msg = "internal server error"
		}
	}
	if errors.Is(err, entities.ErrAuth) {
		c.Response().Header().Set("WWW-Authenticate", "Bearer")
		msg = entities.ErrAuth.Error()
	}

	if c.Request().Method == http.MethodHead {
		c.NoContent(status)
		return
	}
	c.JSON(status, map[string]string{"detail": msg})
}
