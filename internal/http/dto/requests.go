package dto

type AuthChallengeRequest struct {
	Address string `json:"address"`
}

type AuthVerifyRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"` // hex-encoded ed25519 signature over the nonce
}

type CreateEscrowRequest struct {
	Buyer                 string   `json:"buyer"`
	Seller                string   `json:"seller"`
	CollateralID          uint64   `json:"collateral_id"`
	Amount                string   `json:"amount"` // i128 as decimal string
	Asset                 string   `json:"asset"`
	RequiredConfirmation  uint32   `json:"required_confirmation"` // oracle event type gating release
	ExpiryTS              uint64   `json:"expiry_ts"`
	DestinationAsset      string   `json:"destination_asset,omitempty"`
	MinDestinationAmount  string   `json:"min_destination_amount"` // positive i128 as decimal string, required
	RequiredConfirmations uint32   `json:"required_confirmations,omitempty"` // 0 keeps single-oracle semantics
	OracleSet             []string `json:"oracle_set,omitempty"`
}

type SetExchangeRateRequest struct {
	Rate string `json:"rate"` // destination units per source unit, 6 decimals
}

type RegisterCollateralRequest struct {
	AssetType string `json:"asset_type"`
	Value     string `json:"value"`
}

type AddOracleRequest struct {
	Oracle string `json:"oracle"`
	PubKey string `json:"pub_key"` // hex-encoded ed25519 public key
}

type ConfirmEventRequest struct {
	EscrowID  uint64 `json:"escrow_id"`
	EventType uint32 `json:"event_type"` // 1 shipment, 2 delivery, 3 quality, 4 custom
	Result    string `json:"result"`
	Signature string `json:"signature"` // hex-encoded ed25519 signature
}

type IssueLoanRequest struct {
	EscrowID    uint64 `json:"escrow_id"`
	Borrower    string `json:"borrower"`
	Amount      string `json:"amount"`
	InterestBPS uint32 `json:"interest_bps"`
	Duration    uint64 `json:"duration"` // seconds until the repayment deadline
}

type RepayLoanRequest struct {
	Amount string `json:"amount"`
}

type MarkLiquidatedRequest struct {
	Liquidator string `json:"liquidator"`
}

type FundRequest struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}
