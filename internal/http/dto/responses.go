package dto

type ChallengeResponse struct {
	Address string `json:"address"`
	Nonce   string `json:"nonce"`
}

type AuthResponse struct {
	Token   string `json:"token"`
	Address string `json:"address"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type StatusResponse struct {
	Ledger    uint64 `json:"ledger"`
	Contracts struct {
		Collateral string `json:"collateral"`
		Oracle     string `json:"oracle"`
		Escrow     string `json:"escrow"`
		Loan       string `json:"loan"`
		Treasury   string `json:"treasury"`
	} `json:"contracts"`
}
