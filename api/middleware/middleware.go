package middleware

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/luminalearn/questboard/api/utils"
	"github.com/luminalearn/questboard/questboard/services"
)

// AuthRequired checks the bearer token against the configured API token.
// An empty configured token disables the check (local development).
func AuthRequired(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}

		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") || strings.TrimPrefix(header, "Bearer ") != token {
			slog.Debug("Auth required: missing or invalid token",
				slog.String("path", c.Path()))
			return utils.SendUnauthorized(c, "Missing or invalid API token")
		}

		return c.Next()
	}
}

// LoggingMiddleware logs HTTP requests in a structured format
func LoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		statusCode := c.Response().StatusCode()
		logLevel := slog.LevelInfo
		if statusCode >= 400 && statusCode < 500 {
			logLevel = slog.LevelWarn
		} else if statusCode >= 500 {
			logLevel = slog.LevelError
		}

		slog.Log(c.UserContext(), logLevel, "Request handled",
			slog.String("type", "http"),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", statusCode),
			slog.Duration("duration", time.Since(start)),
			slog.String("ip", c.IP()),
			slog.Int("size", len(c.Response().Body())))

		return err
	}
}

// SecurityHeaders adds security headers to responses
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		return c.Next()
	}
}

// CustomErrorHandler maps the service failure taxonomy onto status codes:
// validation → 400, completed-or-missing → 409, store down → 503.
func CustomErrorHandler(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrValidation):
		return utils.SendBadRequest(c, err.Error(), nil)
	case errors.Is(err, services.ErrAlreadyCompletedOrNotFound):
		return utils.SendConflict(c, err.Error(), nil)
	case errors.Is(err, services.ErrStoreUnavailable):
		return utils.SendServiceUnavailable(c, "Quest store is unavailable, try again shortly")
	}

	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	return utils.SendError(c, code, "INTERNAL_SERVER_ERROR", message, nil)
}
