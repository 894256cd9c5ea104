// Package loan implements the loan management contract: loans issued 1:1
// against escrows, repaid with basis-point interest before a deadline, or
// marked defaulted/liquidated after it. All transitions out of Active are
// terminal.
package loan

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/tradevault/backend/internal/chain"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrLoanNotFound       = errors.New("loan not found")
	ErrLoanAlreadyIssued  = errors.New("loan already issued")
	ErrLoanNotActive      = errors.New("loan not active")
	ErrDeadlineNotPassed  = errors.New("deadline not passed")
	ErrDeadlinePassed     = errors.New("deadline passed")
	ErrInsufficientAmount = errors.New("insufficient amount")
	ErrInvalidAmount      = errors.New("invalid amount")
)

// Status is the loan lifecycle state.
type Status uint32

const (
	StatusActive     Status = 0
	StatusRepaid     Status = 1
	StatusDefaulted  Status = 2
	StatusLiquidated Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusRepaid:
		return "repaid"
	case StatusDefaulted:
		return "defaulted"
	case StatusLiquidated:
		return "liquidated"
	default:
		return "unknown"
	}
}

const (
	keyAdmin      = "admin"
	keyNextID     = "next_id"
	keyRiskEngine = "risk_engine"
)

func loanKey(id uint64) string       { return fmt.Sprintf("loan:%d", id) }
func escrowKey(escrow uint64) string { return fmt.Sprintf("escrow_loan:%d", escrow) }

// Loan is the persisted ledger record.
type Loan struct {
	ID           uint64        `json:"id"`
	EscrowID     uint64        `json:"escrow_id"`
	Borrower     chain.Address `json:"borrower"`
	Lender       chain.Address `json:"lender"`
	Amount       *big.Int      `json:"amount"`
	InterestRate uint32        `json:"interest_rate"` // basis points
	Deadline     uint64        `json:"deadline"`
	Status       Status        `json:"status"`
}

// TotalDue is principal plus interest: amount + amount*rate/10000, truncating.
func (l *Loan) TotalDue() (*big.Int, error) {
	interest, err := chain.FeeForBps(l.Amount, l.InterestRate)
	if err != nil {
		return nil, err
	}
	return chain.CheckedAdd(l.Amount, interest)
}

type Management struct {
	host *chain.Host
	addr chain.Address
}

func New(host *chain.Host, addr chain.Address) *Management {
	host.Register(addr)
	return &Management{host: host, addr: addr}
}

func (m *Management) Address() chain.Address { return m.addr }

func (m *Management) admin(env *chain.Env) (chain.Address, bool, error) {
	var admin chain.Address
	ok, err := env.State(m.addr).Get(keyAdmin, &admin)
	return admin, ok, err
}

// Initialize sets the admin and the id counter. Single-shot.
func (m *Management) Initialize(admin chain.Address) error {
	return m.host.Invoke(func(env *chain.Env) error {
		st := env.State(m.addr)
		if st.Has(keyAdmin) {
			return ErrAlreadyInitialized
		}
		if err := st.Set(keyAdmin, admin); err != nil {
			return err
		}
		if err := st.Set(keyNextID, uint64(1)); err != nil {
			return err
		}
		env.Emit(m.addr, "loan_init", map[string]any{"admin": string(admin)})
		return nil
	})
}

// IssueLoan mints a loan bound to an escrow. caller must be the lender.
// The escrow→loan reverse index rejects a second loan on the same escrow.
func (m *Management) IssueLoan(caller chain.Address, escrowID uint64, borrower, lender chain.Address, amount *big.Int, interestRate uint32, duration uint64) (uint64, error) {
	var id uint64
	err := m.host.Invoke(func(env *chain.Env) error {
		if caller != lender {
			return ErrUnauthorized
		}
		if amount == nil || amount.Sign() <= 0 {
			return ErrInvalidAmount
		}

		st := env.State(m.addr)
		if st.Has(escrowKey(escrowID)) {
			return ErrLoanAlreadyIssued
		}

		now := env.Now()
		if duration > math.MaxUint64-now {
			return chain.ErrMathOverflow
		}
		deadline := now + duration

		if _, err := st.Get(keyNextID, &id); err != nil {
			return err
		}
		if id == 0 {
			id = 1
		}

		l := Loan{
			ID:           id,
			EscrowID:     escrowID,
			Borrower:     borrower,
			Lender:       lender,
			Amount:       amount,
			InterestRate: interestRate,
			Deadline:     deadline,
			Status:       StatusActive,
		}
		if err := st.Set(loanKey(id), &l); err != nil {
			return err
		}
		if err := st.Set(escrowKey(escrowID), id); err != nil {
			return err
		}
		if err := st.Set(keyNextID, id+1); err != nil {
			return err
		}

		env.Emit(m.addr, "loan_iss", map[string]any{
			"loan_id":      id,
			"escrow_id":    escrowID,
			"borrower":     string(borrower),
			"lender":       string(lender),
			"amount":       amount.String(),
			"interest_bps": interestRate,
			"deadline":     deadline,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// RepayLoan settles an active loan before the deadline. caller must be the
// borrower, and the paid amount must cover principal plus interest.
func (m *Management) RepayLoan(caller chain.Address, loanID uint64, amount *big.Int) error {
	return m.host.Invoke(func(env *chain.Env) error {
		st := env.State(m.addr)
		var l Loan
		ok, err := st.Get(loanKey(loanID), &l)
		if err != nil {
			return err
		}
		if !ok {
			return ErrLoanNotFound
		}
		if caller != l.Borrower {
			return ErrUnauthorized
		}
		if l.Status != StatusActive {
			return ErrLoanNotActive
		}
		if env.Now() > l.Deadline {
			return ErrDeadlinePassed
		}

		totalDue, err := l.TotalDue()
		if err != nil {
			return err
		}
		if amount == nil || amount.Cmp(totalDue) < 0 {
			return ErrInsufficientAmount
		}

		l.Status = StatusRepaid
		if err := st.Set(loanKey(loanID), &l); err != nil {
			return err
		}

		env.Emit(m.addr, "loan_rep", map[string]any{
			"loan_id": loanID,
			"amount":  amount.String(),
		})
		return nil
	})
}

// MarkDefault flags an active loan whose deadline has passed. Callable by
// anyone; no funds move, liquidation happens downstream.
func (m *Management) MarkDefault(loanID uint64) error {
	return m.host.Invoke(func(env *chain.Env) error {
		st := env.State(m.addr)
		var l Loan
		ok, err := st.Get(loanKey(loanID), &l)
		if err != nil {
			return err
		}
		if !ok {
			return ErrLoanNotFound
		}
		if l.Status != StatusActive {
			return ErrLoanNotActive
		}
		if env.Now() <= l.Deadline {
			return ErrDeadlineNotPassed
		}

		l.Status = StatusDefaulted
		if err := st.Set(loanKey(loanID), &l); err != nil {
			return err
		}

		env.Emit(m.addr, "loan_def", map[string]any{"loan_id": loanID})
		return nil
	})
}

// MarkLiquidated finalizes an active loan as liquidated. Only the registered
// risk engine may call; the liquidator identity is recorded for audit.
func (m *Management) MarkLiquidated(caller chain.Address, loanID uint64, liquidator chain.Address) error {
	return m.host.Invoke(func(env *chain.Env) error {
		st := env.State(m.addr)
		var riskEngine chain.Address
		ok, err := st.Get(keyRiskEngine, &riskEngine)
		if err != nil {
			return err
		}
		if !ok || caller != riskEngine {
			return ErrUnauthorized
		}

		var l Loan
		ok, err = st.Get(loanKey(loanID), &l)
		if err != nil {
			return err
		}
		if !ok {
			return ErrLoanNotFound
		}
		if l.Status != StatusActive {
			return ErrLoanNotActive
		}

		l.Status = StatusLiquidated
		if err := st.Set(loanKey(loanID), &l); err != nil {
			return err
		}

		env.Emit(m.addr, "loan_liq", map[string]any{
			"loan_id":    loanID,
			"liquidator": string(liquidator),
		})
		return nil
	})
}

// SetRiskEngine registers the address allowed to liquidate. Admin only.
func (m *Management) SetRiskEngine(caller, riskEngine chain.Address) error {
	return m.host.Invoke(func(env *chain.Env) error {
		admin, ok, err := m.admin(env)
		if err != nil {
			return err
		}
		if !ok || caller != admin {
			return ErrUnauthorized
		}
		if err := env.State(m.addr).Set(keyRiskEngine, riskEngine); err != nil {
			return err
		}
		env.Emit(m.addr, "risk_set", map[string]any{"risk_engine": string(riskEngine)})
		return nil
	})
}

// RiskEngine returns the registered risk engine, empty if unset.
func (m *Management) RiskEngine() (chain.Address, error) {
	var addr chain.Address
	err := m.host.View(func(env *chain.Env) error {
		_, err := env.State(m.addr).Get(keyRiskEngine, &addr)
		return err
	})
	return addr, err
}

// GetLoan returns the loan record, or nil if absent.
func (m *Management) GetLoan(loanID uint64) (*Loan, error) {
	var l *Loan
	err := m.host.View(func(env *chain.Env) error {
		var rec Loan
		ok, err := env.State(m.addr).Get(loanKey(loanID), &rec)
		if err != nil {
			return err
		}
		if ok {
			l = &rec
		}
		return nil
	})
	return l, err
}

// LoanIDByEscrow returns the loan id bound to an escrow (0, false if none).
func (m *Management) LoanIDByEscrow(escrowID uint64) (uint64, bool, error) {
	var id uint64
	var found bool
	err := m.host.View(func(env *chain.Env) error {
		ok, err := env.State(m.addr).Get(escrowKey(escrowID), &id)
		found = ok
		return err
	})
	return id, found, err
}
