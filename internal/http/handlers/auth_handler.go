package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/tradevault/backend/internal/auth"
	"github.com/tradevault/backend/internal/config"
	"github.com/tradevault/backend/internal/http/dto"
	"go.uber.org/zap"
)

type AuthHandler struct {
	cfg        *config.Config
	challenges *auth.ChallengeStore
	log        *zap.Logger
}

func NewAuthHandler(cfg *config.Config, challenges *auth.ChallengeStore, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, challenges: challenges, log: log}
}

// Challenge issues a one-time nonce the wallet must sign to log in.
func (h *AuthHandler) Challenge(c *fiber.Ctx) error {
	var req dto.AuthChallengeRequest
	if err := c.BodyParser(&req); err != nil || req.Address == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "address is required"})
	}

	nonce, err := h.challenges.Issue(c.Context(), req.Address)
	if err != nil {
		if errors.Is(err, auth.ErrBadAddress) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
		}
		h.log.Error("challenge issue failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.ChallengeResponse{Address: req.Address, Nonce: nonce})
}

// Verify checks the signed nonce and returns a session token.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req dto.AuthVerifyRequest
	if err := c.BodyParser(&req); err != nil || req.Address == "" || req.Signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "address and signature are required"})
	}

	if err := h.challenges.Verify(c.Context(), req.Address, req.Signature); err != nil {
		switch {
		case errors.Is(err, auth.ErrChallengeNotFound):
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "challenge not found or expired"})
		case errors.Is(err, auth.ErrBadSignature), errors.Is(err, auth.ErrBadAddress):
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "signature verification failed"})
		default:
			h.log.Error("challenge verify failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
		}
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, req.Address, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("jwt generation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.AuthResponse{Token: token, Address: req.Address})
}
