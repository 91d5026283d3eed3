package services

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Precondition errors: rejected with no partial state change.
var (
	ErrAlreadyGenerated         = errors.New("bracket already generated for this event, category and phase")
	ErrInsufficientParticipants = errors.New("ranking does not contain enough participants for the requested bracket size")
	ErrAlreadySubmitted         = errors.New("score already submitted and can no longer be modified")
	ErrIncompleteJudging        = errors.New("not every expected score has been submitted for this battle")
	ErrVotesTied                = errors.New("judge votes are tied; an admin must resolve the battle")
)

// Consistency / authorization errors. Role gating itself lives in
// middleware; services only police judge assignment.
var (
	ErrAlreadyRegistered = errors.New("participant already registered for this event and category")
	ErrNotAssigned       = errors.New("judge is not assigned to this event, category and phase")
)

// ValidationError carries a message surfaced verbatim to the caller. It is
// always raised before any write.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationf(msg string) error { return &ValidationError{Message: msg} }

// httpStatus maps a domain error onto its transport status. Anything
// unrecognized is an infrastructure failure and surfaces as a generic 500.
func httpStatus(err error) int {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrAlreadyGenerated),
		errors.Is(err, ErrAlreadySubmitted),
		errors.Is(err, ErrAlreadyRegistered):
		return fiber.StatusConflict
	case errors.Is(err, ErrInsufficientParticipants),
		errors.Is(err, ErrIncompleteJudging),
		errors.Is(err, ErrVotesTied):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, ErrNotAssigned):
		return fiber.StatusForbidden
	}
	return fiber.StatusInternalServerError
}

// respondError translates a domain error into the uniform error payload.
// Infrastructure errors keep their detail out of the response body.
func respondError(c *fiber.Ctx, err error) error {
	status := httpStatus(err)
	if status == fiber.StatusInternalServerError {
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// isUniqueViolation detects a unique-constraint collision so callers can
// translate a race into an "already registered" outcome instead of a raw
// failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "SQLSTATE 23505")
}
