package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-prediction/internal/logger"
	"github.com/i474232898/weather-prediction/internal/weather"
)

// ErrorHandler maps service errors to status codes and a JSON body.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"success": false,
			"error":   "http_error",
			"message": fe.Message,
		})
	}

	code := weather.Code(err)
	status := StatusFor(err)
	if status == fiber.StatusInternalServerError {
		logger.Errorf("http: %s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   code,
		"message": err.Error(),
	})
}

// StatusFor returns the HTTP status of a service error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, weather.ErrInvalidParameter):
		return fiber.StatusBadRequest
	case errors.Is(err, weather.ErrNoData):
		return fiber.StatusNotFound
	case errors.Is(err, weather.ErrInsufficientHistory),
		errors.Is(err, weather.ErrModelUnavailable),
		errors.Is(err, weather.ErrNoForecast),
		errors.Is(err, weather.ErrStoreBusy):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
