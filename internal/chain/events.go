package chain

// Event is one entry of the append-only audit log. Ledger and Index are
// assigned at commit time; ordering within one transaction is emission order,
// cross-transaction ordering follows ledger sequence.
type Event struct {
	Ledger   uint64         `json:"ledger"`
	TxHash   string         `json:"tx_hash"`
	Index    int            `json:"index"`
	Contract Address        `json:"contract"`
	Topic    string         `json:"topic"`
	Data     map[string]any `json:"data"`
}

// Cursor identifies a position in the event log: the number of events already
// consumed. EventsAfter(cursor) returns everything appended since.
type Cursor uint64
