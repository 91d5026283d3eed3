package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{validationf("bad input"), fiber.StatusBadRequest},
		{ErrAlreadyGenerated, fiber.StatusConflict},
		{ErrAlreadySubmitted, fiber.StatusConflict},
		{ErrAlreadyRegistered, fiber.StatusConflict},
		{ErrInsufficientParticipants, fiber.StatusUnprocessableEntity},
		{ErrIncompleteJudging, fiber.StatusUnprocessableEntity},
		{ErrVotesTied, fiber.StatusUnprocessableEntity},
		{ErrNotAssigned, fiber.StatusForbidden},
		{errors.New("dial tcp: connection refused"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := httpStatus(tc.err); got != tc.want {
			t.Errorf("httpStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestValidationErrorIsNotInfrastructure(t *testing.T) {
	// Batch operations skip over validation failures of a single source but
	// must propagate storage failures; the classes must stay separable.
	var ve *ValidationError
	if !errors.As(validationf("event has no category"), &ve) {
		t.Fatal("validationf must yield a ValidationError")
	}
	ve = nil
	if errors.As(fmt.Errorf("query failed: %w", errors.New("driver: bad connection")), &ve) {
		t.Fatal("infrastructure errors must not match ValidationError")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New(`duplicate key value violates unique constraint "idx_inscripcion_unique"`), true},
		{errors.New("ERROR: conflict (SQLSTATE 23505)"), true},
		{errors.New("dial tcp: connection refused"), false},
	}
	for _, tc := range cases {
		if got := isUniqueViolation(tc.err); got != tc.want {
			t.Errorf("isUniqueViolation(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
