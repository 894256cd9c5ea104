package models

import "time"

// Loan statuses. Everything except active is terminal.
const (
	LoanStatusActive     = "active"
	LoanStatusRepaid     = "repaid"
	LoanStatusDefaulted  = "defaulted"
	LoanStatusLiquidated = "liquidated"
)

// Valid state transitions: from -> []to
var ValidLoanTransitions = map[string][]string{
	LoanStatusActive:     {LoanStatusRepaid, LoanStatusDefaulted, LoanStatusLiquidated},
	LoanStatusRepaid:     {},
	LoanStatusDefaulted:  {},
	LoanStatusLiquidated: {},
}

func IsValidLoanTransition(from, to string) bool {
	allowed, ok := ValidLoanTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// LoanMirror is the indexed off-chain copy of a loan record.
type LoanMirror struct {
	LoanID        uint64    `json:"loan_id"`
	EscrowID      uint64    `json:"escrow_id"`
	Lender        string    `json:"lender"`
	Borrower      string    `json:"borrower"`
	Amount        string    `json:"amount"` // i128 as string
	InterestBPS   int       `json:"interest_bps"`
	Deadline      uint64    `json:"deadline"`
	Status        string    `json:"status"`
	Liquidator    *string   `json:"liquidator,omitempty"`
	IssueTxHash   string    `json:"issue_tx_hash"`
	FinalTxHash   *string   `json:"final_tx_hash,omitempty"`
	CreatedLedger uint64    `json:"created_ledger"`
	UpdatedLedger uint64    `json:"updated_ledger"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
