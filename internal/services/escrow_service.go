package services

import (
	"context"
	"errors"
	"math/big"

	"github.com/tradevault/backend/internal/chain"
	"github.com/tradevault/backend/internal/contracts/escrow"
	"github.com/tradevault/backend/internal/models"
	"github.com/tradevault/backend/internal/node"
	"github.com/tradevault/backend/internal/repositories"
	"go.uber.org/zap"
)

var ErrBadAmount = errors.New("amount must be a positive integer string")

// EscrowService fronts the escrow manager contract. Writes go to the chain;
// list queries are served from the indexed mirror.
type EscrowService struct {
	node       *node.Node
	escrowRepo *repositories.EscrowRepo
	confRepo   *repositories.ConfirmationRepo
	log        *zap.Logger
}

func NewEscrowService(n *node.Node, escrowRepo *repositories.EscrowRepo, confRepo *repositories.ConfirmationRepo, log *zap.Logger) *EscrowService {
	return &EscrowService{node: n, escrowRepo: escrowRepo, confRepo: confRepo, log: log}
}

type CreateEscrowParams struct {
	Buyer                 string
	Seller                string
	CollateralID          uint64
	Amount                string
	Asset                 string
	RequiredConfirmation  uint32
	ExpiryTS              uint64
	DestinationAsset      string
	MinDestinationAmount  string
	RequiredConfirmations uint32
	OracleSet             []string
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() <= 0 {
		return nil, ErrBadAmount
	}
	return v, nil
}

// CreateEscrow submits the creation to the chain. caller is the lender and
// must hold the escrowed funds.
func (s *EscrowService) CreateEscrow(ctx context.Context, caller string, p CreateEscrowParams) (*escrow.Escrow, error) {
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return nil, err
	}

	cfg := escrow.Config{
		Buyer:                 chain.Address(p.Buyer),
		Seller:                chain.Address(p.Seller),
		Lender:                chain.Address(caller),
		CollateralID:          p.CollateralID,
		Amount:                amount,
		Asset:                 chain.Address(p.Asset),
		RequiredConfirmation:  p.RequiredConfirmation,
		ExpiryTS:              p.ExpiryTS,
		RequiredConfirmations: p.RequiredConfirmations,
	}
	minDest, err := parseAmount(p.MinDestinationAmount)
	if err != nil {
		return nil, err
	}
	cfg.MinDestinationAmount = minDest
	if p.DestinationAsset != "" && p.DestinationAsset != p.Asset {
		cfg.DestinationAsset = chain.Address(p.DestinationAsset)
	}
	for _, o := range p.OracleSet {
		cfg.OracleSet = append(cfg.OracleSet, chain.Address(o))
	}

	id, err := s.node.Escrow.CreateEscrow(chain.Address(caller), cfg)
	if err != nil {
		return nil, err
	}

	s.log.Info("escrow created",
		zap.Uint64("escrow_id", id),
		zap.String("lender", caller),
		zap.String("amount", amount.String()))

	return s.node.Escrow.GetEscrow(id)
}

// Release pays out the escrow once its confirmation policy is satisfied.
// Callable by anyone.
func (s *EscrowService) Release(ctx context.Context, escrowID uint64) (*escrow.Escrow, error) {
	if err := s.node.Escrow.ReleaseFunds(escrowID); err != nil {
		return nil, err
	}
	s.log.Info("escrow released", zap.Uint64("escrow_id", escrowID))
	return s.node.Escrow.GetEscrow(escrowID)
}

// Refund returns the funds to the lender after expiry. Callable by anyone.
func (s *EscrowService) Refund(ctx context.Context, escrowID uint64) (*escrow.Escrow, error) {
	if err := s.node.Escrow.RefundEscrow(escrowID); err != nil {
		return nil, err
	}
	s.log.Info("escrow refunded", zap.Uint64("escrow_id", escrowID))
	return s.node.Escrow.GetEscrow(escrowID)
}

// Get reads the authoritative record from the chain.
func (s *EscrowService) Get(ctx context.Context, escrowID uint64) (*escrow.Escrow, error) {
	esc, err := s.node.Escrow.GetEscrow(escrowID)
	if err != nil {
		return nil, err
	}
	if esc == nil {
		return nil, escrow.ErrEscrowNotFound
	}
	return esc, nil
}

// List serves from the mirror; the chain has no list queries.
func (s *EscrowService) List(ctx context.Context, f repositories.EscrowFilter) ([]models.EscrowMirror, error) {
	return s.escrowRepo.List(ctx, f)
}

// Confirmations lists the indexed oracle attestations for an escrow. Served
// from the mirror like the other list queries; the contract's replay guard
// keeps the mirror one-row-per-(escrow, oracle).
func (s *EscrowService) Confirmations(ctx context.Context, escrowID uint64) ([]models.ConfirmationMirror, error) {
	return s.confRepo.ListByEscrow(ctx, escrowID)
}

// SetExchangeRate stores the conversion rate used by cross-asset releases.
// Admin only, enforced by the contract.
func (s *EscrowService) SetExchangeRate(ctx context.Context, caller string, rate string) error {
	r, err := parseAmount(rate)
	if err != nil {
		return err
	}
	return s.node.Escrow.SetExchangeRate(chain.Address(caller), r)
}
