package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-feedback-dashboard/internal/config"
	"github.com/noah-isme/gema-feedback-dashboard/internal/dashboard"
	"github.com/noah-isme/gema-feedback-dashboard/internal/database"
	"github.com/noah-isme/gema-feedback-dashboard/internal/middleware"
	"github.com/noah-isme/gema-feedback-dashboard/internal/repository"
	"github.com/noah-isme/gema-feedback-dashboard/internal/service"
)

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}

	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[strings.ToLower(fieldErr.Field())] = fieldErr.Tag()
	}
	return details
}

// errorStatus maps dashboard errors onto an HTTP status and a message safe
// to show the teacher.
func errorStatus(err error) (int, string) {
	var (
		cfgErr   *config.ConfigError
		connErr  *database.ConnectionError
		fetchErr *repository.FetchError
	)

	switch {
	case errors.Is(err, dashboard.ErrStudentNotFound):
		return fiber.StatusNotFound, "student not found"
	case errors.Is(err, service.ErrInvalidSortMode):
		return fiber.StatusBadRequest, "invalid sort mode"
	case errors.As(err, &cfgErr):
		return fiber.StatusServiceUnavailable, "data store is not configured: " + cfgErr.Error()
	case errors.As(err, &connErr):
		return fiber.StatusServiceUnavailable, "data store is unreachable: " + connErr.Error()
	case errors.As(err, &fetchErr):
		switch {
		case fetchErr.MissingCollection():
			return fiber.StatusBadGateway, "failed to load submissions: table " + fetchErr.Collection + " was not found"
		case fetchErr.AccessDenied():
			return fiber.StatusBadGateway, "failed to load submissions: access to " + fetchErr.Collection + " was denied"
		default:
			return fiber.StatusBadGateway, "failed to load submissions: " + fetchErr.Error()
		}
	default:
		return fiber.StatusInternalServerError, "failed to load submissions"
	}
}
