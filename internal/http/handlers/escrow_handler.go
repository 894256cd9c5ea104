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

type EscrowHandler struct {
	escrowService *services.EscrowService
	log           *zap.Logger
}

func NewEscrowHandler(escrowService *services.EscrowService, log *zap.Logger) *EscrowHandler {
	return &EscrowHandler{escrowService: escrowService, log: log}
}

func parseID(c *fiber.Ctx, name string) (uint64, error) {
	return strconv.ParseUint(c.Params(name), 10, 64)
}

func (h *EscrowHandler) CreateEscrow(c *fiber.Ctx) error {
	var req dto.CreateEscrowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	caller := middleware.GetAddress(c)
	esc, err := h.escrowService.CreateEscrow(c.Context(), caller, services.CreateEscrowParams{
		Buyer:                 req.Buyer,
		Seller:                req.Seller,
		CollateralID:          req.CollateralID,
		Amount:                req.Amount,
		Asset:                 req.Asset,
		RequiredConfirmation:  req.RequiredConfirmation,
		ExpiryTS:              req.ExpiryTS,
		DestinationAsset:      req.DestinationAsset,
		MinDestinationAmount:  req.MinDestinationAmount,
		RequiredConfirmations: req.RequiredConfirmations,
		OracleSet:             req.OracleSet,
	})
	if err != nil {
		return contractError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: esc})
}

func (h *EscrowHandler) GetEscrow(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}

	esc, err := h.escrowService.Get(c.Context(), id)
	if err != nil {
		return contractError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: esc})
}

func (h *EscrowHandler) ListEscrows(c *fiber.Ctx) error {
	filter := repositories.EscrowFilter{Limit: 20}

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

	escrows, err := h.escrowService.List(c.Context(), filter)
	if err != nil {
		h.log.Error("escrow list failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: escrows})
}

func (h *EscrowHandler) Release(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}

	esc, err := h.escrowService.Release(c.Context(), id)
	if err != nil {
		return contractError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: esc})
}

func (h *EscrowHandler) Refund(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}

	esc, err := h.escrowService.Refund(c.Context(), id)
	if err != nil {
		return contractError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: esc})
}

func (h *EscrowHandler) GetConfirmations(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}

	confs, err := h.escrowService.Confirmations(c.Context(), id)
	if err != nil {
		return contractError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: confs})
}

// SetExchangeRate stores the rate used for cross-asset releases. Admin only.
func (h *EscrowHandler) SetExchangeRate(c *fiber.Ctx) error {
	var req dto.SetExchangeRateRequest
	if err := c.BodyParser(&req); err != nil || req.Rate == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "rate is required"})
	}

	caller := middleware.GetAddress(c)
	if err := h.escrowService.SetExchangeRate(c.Context(), caller, req.Rate); err != nil {
		return contractError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
