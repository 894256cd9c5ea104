package models

import "time"

const (
	CollateralStatusActive = "active"
	CollateralStatusLocked = "locked"
)

// CollateralMirror is the indexed off-chain copy of a collateral record.
type CollateralMirror struct {
	CollateralID  uint64    `json:"collateral_id"`
	Owner         string    `json:"owner"`
	AssetType     string    `json:"asset_type"`
	Value         string    `json:"value"` // i128 as string
	Status        string    `json:"status"`
	UpdatedLedger uint64    `json:"updated_ledger"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ConfirmationMirror is an indexed oracle attestation for an escrow.
type ConfirmationMirror struct {
	EscrowID  uint64    `json:"escrow_id"`
	Oracle    string    `json:"oracle"`
	EventType int       `json:"event_type"`
	Result    string    `json:"result"`
	Verified  bool      `json:"verified"`
	TxHash    string    `json:"tx_hash"`
	Ledger    uint64    `json:"ledger"`
	CreatedAt time.Time `json:"created_at"`
}
