package management

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/momentics/hioload-sfu/api"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code, "RequestException"
	case errors.Is(err, api.ErrNotFound):
		return fiber.StatusNotFound, "NotFoundException"
	case errors.Is(err, api.ErrAlreadyExists):
		return fiber.StatusConflict, "AlreadyExistsException"
	case errors.Is(err, api.ErrInvalidArgument):
		return fiber.StatusBadRequest, "BadRequestException"
	default:
		return fiber.StatusInternalServerError, "ServerError"
	}
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code, kind := statusFor(err)
	message := err.Error()
	var details map[string]any
	var ae *api.Error
	if errors.As(err, &ae) {
		message = ae.Message
		details = ae.Context
	}
	if code == fiber.StatusInternalServerError {
		s.logger.Error("request error",
			slog.Any("error", err),
			slog.String("path", c.Path()),
			slog.String("method", c.Method()))
		message = "Internal Server Error"
	}

	body := fiber.Map{
		"message": message,
		"type":    kind,
		"code":    code,
	}
	if len(details) > 0 {
		body["context"] = details
	}
	return c.Status(code).JSON(fiber.Map{"error": body})
}
