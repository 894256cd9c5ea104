package handlers

import (
	"encoding/hex"

	"github.com/gofiber/fiber/v2"
	"github.com/tradevault/backend/internal/chain"
	"github.com/tradevault/backend/internal/http/dto"
	"github.com/tradevault/backend/internal/middleware"
	"github.com/tradevault/backend/internal/node"
	"go.uber.org/zap"
)

type OracleHandler struct {
	node *node.Node
	log  *zap.Logger
}

func NewOracleHandler(n *node.Node, log *zap.Logger) *OracleHandler {
	return &OracleHandler{node: n, log: log}
}

// AddOracle registers a trusted oracle signer. Admin only, enforced by the
// contract.
func (h *OracleHandler) AddOracle(c *fiber.Ctx) error {
	var req dto.AddOracleRequest
	if err := c.BodyParser(&req); err != nil || req.Oracle == "" || req.PubKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "oracle and pub_key are required"})
	}

	pubKey, err := hex.DecodeString(req.PubKey)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "pub_key must be hex"})
	}

	caller := middleware.GetAddress(c)
	if err := h.node.Oracle.AddOracle(chain.Address(caller), chain.Address(req.Oracle), pubKey); err != nil {
		return contractError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true})
}

func (h *OracleHandler) RemoveOracle(c *fiber.Ctx) error {
	oracleAddr := c.Params("address")
	if oracleAddr == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "oracle address is required"})
	}

	caller := middleware.GetAddress(c)
	if err := h.node.Oracle.RemoveOracle(chain.Address(caller), chain.Address(oracleAddr)); err != nil {
		return contractError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// ConfirmEvent submits a signed trade event attestation. The caller must be
// a registered oracle and the signature must verify against its stored key.
func (h *OracleHandler) ConfirmEvent(c *fiber.Ctx) error {
	var req dto.ConfirmEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	sig, err := hex.DecodeString(req.Signature)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "signature must be hex"})
	}

	caller := middleware.GetAddress(c)
	if err := h.node.Oracle.ConfirmEvent(chain.Address(caller), req.EscrowID, req.EventType, []byte(req.Result), sig); err != nil {
		return contractError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true})
}
