// Package escrow implements the escrow manager contract: funds held against
// locked collateral, released to the seller on oracle confirmation or
// refunded to the lender after expiry. Both transitions are terminal.
package escrow

import (
	"errors"
	"math/big"

	"github.com/tradevault/backend/internal/chain"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrEscrowNotFound     = errors.New("escrow not found")
	ErrEscrowNotActive    = errors.New("escrow not active")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrConfirmationNotMet = errors.New("confirmation not met")
	ErrQuorumNotMet       = errors.New("quorum not met")
	ErrEscrowNotExpired   = errors.New("escrow not expired")
	ErrPathPaymentFailed  = errors.New("path payment failed")
	ErrSlippageExceeded   = errors.New("slippage exceeded")
	ErrInvalidOracleSet   = errors.New("invalid oracle set")
	ErrInvalidThreshold   = errors.New("invalid threshold")
)

// Status is the escrow lifecycle state. Active is the only non-terminal state.
type Status uint32

const (
	StatusActive   Status = 0
	StatusReleased Status = 1
	StatusRefunded Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusReleased:
		return "released"
	case StatusRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// Config is the creation request for an escrow.
type Config struct {
	Buyer                 chain.Address
	Seller                chain.Address
	Lender                chain.Address
	CollateralID          uint64
	Amount                *big.Int
	Asset                 chain.Address
	RequiredConfirmation  uint32
	ExpiryTS              uint64
	DestinationAsset      chain.Address
	MinDestinationAmount  *big.Int // must be positive; gates payout on the conversion path only
	RequiredConfirmations uint32
	OracleSet             []chain.Address
}

// Escrow is the persisted ledger record. Never deleted; terminal status
// transitions freeze it for audit.
type Escrow struct {
	ID                    uint64          `json:"id"`
	Buyer                 chain.Address   `json:"buyer"`
	Seller                chain.Address   `json:"seller"`
	Lender                chain.Address   `json:"lender"`
	CollateralID          uint64          `json:"collateral_id"`
	Amount                *big.Int        `json:"amount"`
	Asset                 chain.Address   `json:"asset"`
	RequiredConfirmation  uint32          `json:"required_confirmation"`
	Status                Status          `json:"status"`
	ExpiryTS              uint64          `json:"expiry_ts"`
	CreatedAt             uint64          `json:"created_at"`
	DestinationAsset      chain.Address   `json:"destination_asset"`
	MinDestinationAmount  *big.Int        `json:"min_destination_amount"`
	RequiredConfirmations uint32          `json:"required_confirmations"`
	OracleSet             []chain.Address `json:"oracle_set"`
}

// CollateralLocker is the consumed surface of the collateral registry.
// Both calls run inside the caller's invocation, so a failure aborts the
// whole escrow transition.
type CollateralLocker interface {
	LockCollateral(env *chain.Env, id uint64) error
	UnlockCollateral(env *chain.Env, id uint64) error
}

// Confirmation is the view of an oracle attestation the release check needs.
type Confirmation struct {
	Oracle    chain.Address
	EventType uint32
	Verified  bool
}

// ConfirmationSource yields the stored confirmations for an escrow.
type ConfirmationSource interface {
	Confirmations(env *chain.Env, escrowID uint64) ([]Confirmation, error)
}

// Treasury is the consumed surface of the protocol treasury.
type Treasury interface {
	Address() chain.Address
	FeeBps(env *chain.Env) (uint32, error)
	DepositFee(env *chain.Env, asset chain.Address, amount *big.Int) error
}
