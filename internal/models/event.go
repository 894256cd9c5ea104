package models

import (
	"time"

	"github.com/google/uuid"
)

// ChainEvent is the audit row for every contract event the indexer has seen.
// Uniqueness on (contract, tx_hash, ledger, event_index) makes ingestion
// idempotent.
type ChainEvent struct {
	ID         uuid.UUID `json:"id"`
	Contract   string    `json:"contract"`
	Topic      string    `json:"topic"`
	TxHash     string    `json:"tx_hash"`
	Ledger     uint64    `json:"ledger"`
	EventIndex int       `json:"event_index"`
	Data       any       `json:"data,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
