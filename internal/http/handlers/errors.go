package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/tradevault/backend/internal/chain"
	"github.com/tradevault/backend/internal/contracts/collateral"
	"github.com/tradevault/backend/internal/contracts/escrow"
	"github.com/tradevault/backend/internal/contracts/loan"
	"github.com/tradevault/backend/internal/contracts/oracle"
	"github.com/tradevault/backend/internal/http/dto"
)

// statusForErr maps contract errors to HTTP status codes. Unknown errors
// surface as 500 so the caller retries instead of silently accepting.
func statusForErr(err error) int {
	switch {
	case errors.Is(err, escrow.ErrEscrowNotFound),
		errors.Is(err, loan.ErrLoanNotFound),
		errors.Is(err, collateral.ErrCollateralNotFound),
		errors.Is(err, oracle.ErrOracleNotRegistered):
		return fiber.StatusNotFound

	case errors.Is(err, escrow.ErrUnauthorized),
		errors.Is(err, loan.ErrUnauthorized),
		errors.Is(err, oracle.ErrUnauthorized),
		errors.Is(err, collateral.ErrUnauthorized):
		return fiber.StatusForbidden

	case errors.Is(err, escrow.ErrEscrowNotActive),
		errors.Is(err, escrow.ErrEscrowNotExpired),
		errors.Is(err, escrow.ErrConfirmationNotMet),
		errors.Is(err, escrow.ErrQuorumNotMet),
		errors.Is(err, escrow.ErrSlippageExceeded),
		errors.Is(err, loan.ErrLoanNotActive),
		errors.Is(err, loan.ErrLoanAlreadyIssued),
		errors.Is(err, loan.ErrDeadlinePassed),
		errors.Is(err, loan.ErrDeadlineNotPassed),
		errors.Is(err, oracle.ErrConfirmationAlreadyExists),
		errors.Is(err, oracle.ErrOracleAlreadyRegistered):
		return fiber.StatusConflict

	case errors.Is(err, escrow.ErrInvalidAmount),
		errors.Is(err, escrow.ErrInvalidOracleSet),
		errors.Is(err, escrow.ErrInvalidThreshold),
		errors.Is(err, loan.ErrInvalidAmount),
		errors.Is(err, loan.ErrInsufficientAmount),
		errors.Is(err, oracle.ErrInvalidSignature),
		errors.Is(err, oracle.ErrInvalidEventType),
		errors.Is(err, chain.ErrMathOverflow),
		errors.Is(err, chain.ErrInsufficientBalance):
		return fiber.StatusBadRequest

	default:
		return fiber.StatusInternalServerError
	}
}

func contractError(c *fiber.Ctx, err error) error {
	return c.Status(statusForErr(err)).JSON(dto.ErrorResponse{Error: err.Error()})
}
