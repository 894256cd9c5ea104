package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/tradevault/backend/internal/http/dto"
	"github.com/tradevault/backend/internal/middleware"
	"github.com/tradevault/backend/internal/repositories"
	"github.com/tradevault/backend/internal/services"
	"go.uber.org/zap"
)

type LoanHandler struct {
	loanService *services.LoanService
	log         *zap.Logger
}

func NewLoanHandler(loanService *services.LoanService, log *zap.Logger) *LoanHandler {
	return &LoanHandler{loanService: loanService, log: log}
}

func (h *LoanHandler) IssueLoan(c *fiber.Ctx) error {
	var req dto.IssueLoanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	caller := middleware.GetAddress(c)
	l, err := h.loanService.Issue(c.Context(), caller, services.IssueLoanParams{
		EscrowID:    req.EscrowID,
		Borrower:    req.Borrower,
		Amount:      req.Amount,
		InterestBPS: req.InterestBPS,
		Duration:    req.Duration,
	})
	if err != nil {
		return contractError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: l})
}

func (h *LoanHandler) GetLoan(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid loan id"})
	}

	l, err := h.loanService.Get(c.Context(), id)
	if err != nil {
		return contractError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: l})
}

func (h *LoanHandler) GetLoanByEscrow(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}

	l, ok, err := h.loanService.GetByEscrow(c.Context(), id)
	if err != nil {
		return contractError(c, err)
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "no loan for escrow"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: l})
}

func (h *LoanHandler) ListLoans(c *fiber.Ctx) error {
	filter := repositories.LoanFilter{Limit: 20}

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}
	if c.Query("mine") == "true" {
		addr := middleware.GetAddress(c)
		filter.Address = &addr
	}

	loans, err := h.loanService.List(c.Context(), filter)
	if err != nil {
		h.log.Error("loan list failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: loans})
}

func (h *LoanHandler) RepayLoan(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid loan id"})
	}

	var req dto.RepayLoanRequest
	if err := c.BodyParser(&req); err != nil || req.Amount == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "amount is required"})
	}

	caller := middleware.GetAddress(c)
	l, err := h.loanService.Repay(c.Context(), caller, id, req.Amount)
	if err != nil {
		return contractError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: l})
}

func (h *LoanHandler) MarkDefault(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid loan id"})
	}

	l, err := h.loanService.MarkDefault(c.Context(), id)
	if err != nil {
		return contractError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: l})
}

func (h *LoanHandler) MarkLiquidated(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid loan id"})
	}

	var req dto.MarkLiquidatedRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	caller := middleware.GetAddress(c)
	liquidator := req.Liquidator
	if liquidator == "" {
		liquidator = caller
	}

	l, err := h.loanService.MarkLiquidated(c.Context(), caller, id, liquidator)
	if err != nil {
		return contractError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: l})
}
