package services

import (
	"context"

	"github.com/tradevault/backend/internal/chain"
	"github.com/tradevault/backend/internal/contracts/loan"
	"github.com/tradevault/backend/internal/models"
	"github.com/tradevault/backend/internal/node"
	"github.com/tradevault/backend/internal/repositories"
	"go.uber.org/zap"
)

// LoanService fronts the loan management contract.
type LoanService struct {
	node     *node.Node
	loanRepo *repositories.LoanRepo
	log      *zap.Logger
}

func NewLoanService(n *node.Node, loanRepo *repositories.LoanRepo, log *zap.Logger) *LoanService {
	return &LoanService{node: n, loanRepo: loanRepo, log: log}
}

type IssueLoanParams struct {
	EscrowID    uint64
	Borrower    string
	Amount      string
	InterestBPS uint32
	Duration    uint64 // seconds until the repayment deadline
}

// Issue records a loan against an escrow. caller is the lender. One loan per
// escrow, enforced by the contract.
func (s *LoanService) Issue(ctx context.Context, caller string, p IssueLoanParams) (*loan.Loan, error) {
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return nil, err
	}

	id, err := s.node.Loans.IssueLoan(chain.Address(caller), p.EscrowID,
		chain.Address(p.Borrower), chain.Address(caller), amount, p.InterestBPS, p.Duration)
	if err != nil {
		return nil, err
	}

	s.log.Info("loan issued",
		zap.Uint64("loan_id", id),
		zap.Uint64("escrow_id", p.EscrowID),
		zap.String("lender", caller))

	return s.node.Loans.GetLoan(id)
}

// Repay settles the loan in full. caller must be the borrower and amount must
// cover principal plus interest.
func (s *LoanService) Repay(ctx context.Context, caller string, loanID uint64, amount string) (*loan.Loan, error) {
	v, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	if err := s.node.Loans.RepayLoan(chain.Address(caller), loanID, v); err != nil {
		return nil, err
	}
	s.log.Info("loan repaid", zap.Uint64("loan_id", loanID))
	return s.node.Loans.GetLoan(loanID)
}

// MarkDefault flags an overdue loan. Callable by anyone.
func (s *LoanService) MarkDefault(ctx context.Context, loanID uint64) (*loan.Loan, error) {
	if err := s.node.Loans.MarkDefault(loanID); err != nil {
		return nil, err
	}
	s.log.Info("loan defaulted", zap.Uint64("loan_id", loanID))
	return s.node.Loans.GetLoan(loanID)
}

// MarkLiquidated records a liquidation. caller must be the risk engine.
func (s *LoanService) MarkLiquidated(ctx context.Context, caller string, loanID uint64, liquidator string) (*loan.Loan, error) {
	if err := s.node.Loans.MarkLiquidated(chain.Address(caller), loanID, chain.Address(liquidator)); err != nil {
		return nil, err
	}
	s.log.Info("loan liquidated", zap.Uint64("loan_id", loanID), zap.String("liquidator", liquidator))
	return s.node.Loans.GetLoan(loanID)
}

func (s *LoanService) Get(ctx context.Context, loanID uint64) (*loan.Loan, error) {
	l, err := s.node.Loans.GetLoan(loanID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, loan.ErrLoanNotFound
	}
	return l, nil
}

// GetByEscrow resolves the loan recorded against an escrow, if any.
func (s *LoanService) GetByEscrow(ctx context.Context, escrowID uint64) (*loan.Loan, bool, error) {
	id, ok, err := s.node.Loans.LoanIDByEscrow(escrowID)
	if err != nil || !ok {
		return nil, false, err
	}
	l, err := s.node.Loans.GetLoan(id)
	if err != nil {
		return nil, false, err
	}
	return l, true, nil
}

func (s *LoanService) List(ctx context.Context, f repositories.LoanFilter) ([]models.LoanMirror, error) {
	return s.loanRepo.List(ctx, f)
}
