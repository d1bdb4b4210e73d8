package serverutils

import (
	"errors"

	"moviesearch-client/internal/pkg/logger"
	"moviesearch-client/pkg/searchapi"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders every returned error as {"error": ...}. Search errors
// keep their kind so clients can decide whether to offer a retry.
func ErrorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		body := fiber.Map{"error": err.Error()}

		var fe *fiber.Error
		var apiErr *searchapi.Error
		switch {
		case errors.As(err, &fe):
			code = fe.Code
			body["error"] = fe.Message
		case errors.As(err, &apiErr):
			code = StatusForSearchError(apiErr)
			body["error"] = apiErr.Reason
			body["kind"] = apiErr.Kind
			body["retryable"] = apiErr.Retryable()
		}

		if code >= fiber.StatusInternalServerError {
			log.Error("HTTP", "Request failed", map[string]interface{}{
				"method": c.Method(),
				"path":   c.Path(),
				"status": code,
				"error":  err.Error(),
			})
		}
		return c.Status(code).JSON(body)
	}
}

// StatusForSearchError maps a search failure onto the relay's HTTP status.
func StatusForSearchError(err *searchapi.Error) int {
	switch err.Kind {
	case searchapi.KindInvalidRequest:
		return fiber.StatusBadRequest
	case searchapi.KindTransport:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusBadGateway
}
