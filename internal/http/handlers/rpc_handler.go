package handlers

import (
	"math/big"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/tradevault/backend/internal/chain"
	"github.com/tradevault/backend/internal/http/dto"
	"github.com/tradevault/backend/internal/middleware"
	"github.com/tradevault/backend/internal/node"
	"github.com/tradevault/backend/internal/repositories"
	"github.com/tradevault/backend/internal/services"
	"go.uber.org/zap"
)

// RPCHandler exposes the node's ledger surface: the event feed the indexer
// polls, the maintenance calls the worker fires and admin funding.
type RPCHandler struct {
	node          *node.Node
	escrowService *services.EscrowService
	loanService   *services.LoanService
	eventRepo     *repositories.EventRepo
	log           *zap.Logger
}

func NewRPCHandler(n *node.Node, escrowService *services.EscrowService, loanService *services.LoanService, eventRepo *repositories.EventRepo, log *zap.Logger) *RPCHandler {
	return &RPCHandler{node: n, escrowService: escrowService, loanService: loanService, eventRepo: eventRepo, log: log}
}

// Events returns contract events after the given cursor.
func (h *RPCHandler) Events(c *fiber.Ctx) error {
	cursor, _ := strconv.ParseUint(c.Query("cursor", "0"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit", "100"))

	evs, next := h.node.EventsAfter(chain.Cursor(cursor), limit)

	out := make([]services.RawEvent, 0, len(evs))
	for _, e := range evs {
		out = append(out, services.RawEvent{
			Ledger:   e.Ledger,
			TxHash:   e.TxHash,
			Index:    e.Index,
			Contract: string(e.Contract),
			Topic:    e.Topic,
			Data:     e.Data,
		})
	}

	return c.JSON(services.EventsPage{
		Events: out,
		Cursor: uint64(next),
		Ledger: h.node.Host.LedgerSeq(),
	})
}

// Status reports the ledger sequence and deployed contract addresses.
func (h *RPCHandler) Status(c *fiber.Ctx) error {
	var resp dto.StatusResponse
	resp.Ledger = h.node.Host.LedgerSeq()
	resp.Contracts.Collateral = string(h.node.Collateral.Address())
	resp.Contracts.Oracle = string(h.node.Oracle.Address())
	resp.Contracts.Escrow = string(h.node.Escrow.Address())
	resp.Contracts.Loan = string(h.node.Loans.Address())
	resp.Contracts.Treasury = string(h.node.Treasury.Address())
	return c.JSON(resp)
}

// Refund triggers a refund for an expired escrow. Unauthenticated by design:
// the contract only pays the lender back and only after expiry.
func (h *RPCHandler) Refund(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}
	if _, err := h.escrowService.Refund(c.Context(), id); err != nil {
		return contractError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// MarkDefault flags an overdue loan. Same open-call semantics as Refund.
func (h *RPCHandler) MarkDefault(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid loan id"})
	}
	if _, err := h.loanService.MarkDefault(c.Context(), id); err != nil {
		return contractError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// Fund mints test balance to an account. Admin only.
func (h *RPCHandler) Fund(c *fiber.Ctx) error {
	var req dto.FundRequest
	if err := c.BodyParser(&req); err != nil || req.Asset == "" || req.Account == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "asset and account are required"})
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "amount must be a positive integer string"})
	}

	caller := middleware.GetAddress(c)
	if err := h.node.Fund(chain.Address(caller), chain.Address(req.Asset), chain.Address(req.Account), amount); err != nil {
		return contractError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// AuditEvents lists indexed contract events from the mirror.
func (h *RPCHandler) AuditEvents(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	var contract *string
	if v := c.Query("contract"); v != "" {
		contract = &v
	}

	evs, err := h.eventRepo.List(c.Context(), contract, limit, offset)
	if err != nil {
		h.log.Error("event list failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: evs})
}
