package events

import "context"

// Event types
const (
	EventEscrowStatusChanged = "escrow_status_changed"
	EventLoanStatusChanged   = "loan_status_changed"
	EventOracleConfirmed     = "oracle_confirmed"
	EventContractRaw         = "contract_event"
)

// StreamContracts — канал, в который индексер публикует события контрактов.
const StreamContracts = "events:contracts"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
