package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/tradevault/backend/internal/chain"
	"github.com/tradevault/backend/internal/contracts/collateral"
	"github.com/tradevault/backend/internal/http/dto"
	"github.com/tradevault/backend/internal/middleware"
	"github.com/tradevault/backend/internal/node"
	"github.com/tradevault/backend/internal/repositories"
	"go.uber.org/zap"
)

type CollateralHandler struct {
	node           *node.Node
	collateralRepo *repositories.CollateralRepo
	log            *zap.Logger
}

func NewCollateralHandler(n *node.Node, collateralRepo *repositories.CollateralRepo, log *zap.Logger) *CollateralHandler {
	return &CollateralHandler{node: n, collateralRepo: collateralRepo, log: log}
}

func (h *CollateralHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterCollateralRequest
	if err := c.BodyParser(&req); err != nil || req.AssetType == "" || req.Value == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "asset_type and value are required"})
	}

	owner := middleware.GetAddress(c)
	id, err := h.node.Collateral.RegisterCollateral(chain.Address(owner), req.AssetType, req.Value)
	if err != nil {
		return contractError(c, err)
	}

	col, err := h.node.Collateral.GetCollateral(id)
	if err != nil {
		return contractError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: col})
}

func (h *CollateralHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid collateral id"})
	}

	col, err := h.node.Collateral.GetCollateral(id)
	if err != nil {
		return contractError(c, err)
	}
	if col == nil {
		return contractError(c, collateral.ErrCollateralNotFound)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: col})
}

// ListMine serves the caller's collateral from the mirror.
func (h *CollateralHandler) ListMine(c *fiber.Ctx) error {
	owner := middleware.GetAddress(c)

	limit, offset := 20, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	cols, err := h.collateralRepo.ListByOwner(c.Context(), owner, limit, offset)
	if err != nil {
		h.log.Error("collateral list failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: cols})
}
