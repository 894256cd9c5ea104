package models

import "time"

// Escrow statuses as reported by the contract. Released and refunded are
// terminal.
const (
	EscrowStatusActive   = "active"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"
)

// Valid state transitions: from -> []to
var ValidEscrowTransitions = map[string][]string{
	EscrowStatusActive:   {EscrowStatusReleased, EscrowStatusRefunded},
	EscrowStatusReleased: {},
	EscrowStatusRefunded: {},
}

func IsValidEscrowTransition(from, to string) bool {
	allowed, ok := ValidEscrowTransitions[from]
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

// EscrowMirror is the indexed off-chain copy of an escrow record. The chain
// is the source of truth; rows are only ever written from contract events.
type EscrowMirror struct {
	EscrowID              uint64     `json:"escrow_id"`
	Buyer                 string     `json:"buyer"`
	Seller                string     `json:"seller"`
	Lender                string     `json:"lender"`
	CollateralID          uint64     `json:"collateral_id"`
	Amount                string     `json:"amount"` // i128 as string
	Asset                 string     `json:"asset"`
	RequiredConfirmation  int        `json:"required_confirmation"`
	RequiredConfirmations int        `json:"required_confirmations"`
	Status                string     `json:"status"`
	ExpiryTS              uint64     `json:"expiry_ts"`
	DestinationAsset      *string    `json:"destination_asset,omitempty"`
	MinDestinationAmount  *string    `json:"min_destination_amount,omitempty"`
	FeeAmount             *string    `json:"fee_amount,omitempty"`
	CreateTxHash          string     `json:"create_tx_hash"`
	FinalTxHash           *string    `json:"final_tx_hash,omitempty"`
	CreatedLedger         uint64     `json:"created_ledger"`
	UpdatedLedger         uint64     `json:"updated_ledger"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}
