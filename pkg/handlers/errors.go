package handlers

import (
	"errors"

	"chirp/pkg/compose"
	"chirp/pkg/media"
	"chirp/pkg/middleware"
	"chirp/pkg/services"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// statusFor maps domain errors to HTTP status codes, shared with socket
// error frames.
func statusFor(err error) int {
	var (
		verrs services.ValidationErrors
		ferr  *fiber.Error
	)
	switch {
	case errors.As(err, &verrs):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &ferr):
		return ferr.Code
	case errors.Is(err, services.ErrPostNotFound),
		errors.Is(err, services.ErrUserNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken):
		return fiber.StatusUnauthorized
	case errors.Is(err, media.ErrTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, compose.ErrEmptyDraft),
		errors.Is(err, compose.ErrTooLong),
		errors.Is(err, compose.ErrQuoteOfQuote),
		errors.Is(err, compose.ErrImageNotAllowed),
		errors.Is(err, compose.ErrNoMention),
		errors.Is(err, compose.ErrUnknownKind),
		errors.Is(err, media.ErrNotImage),
		errors.Is(err, media.ErrNoFile),
		errors.Is(err, services.ErrViewerRequired):
		return fiber.StatusBadRequest
	case errors.Is(err, compose.ErrImagePending):
		return fiber.StatusRequestTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	code := statusFor(err)

	var verrs services.ValidationErrors
	if errors.As(err, &verrs) {
		return c.Status(code).JSON(fiber.Map{"erros": verrs})
	}
	if code >= 500 {
		log.Errorf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(code).JSON(fiber.Map{"erro": "internal error"})
	}
	return c.Status(code).JSON(fiber.Map{"erro": err.Error()})
}

// kept reports whether err still left a usable result: nil, or a change
// that lives in memory only. The latter is flagged with X-Persisted: false.
func kept(c *fiber.Ctx, err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, services.ErrNotPersisted) {
		c.Set(middleware.HeaderPersisted, "false")
		return true
	}
	return false
}
