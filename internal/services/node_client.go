package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// NodeClient talks to the API node's internal RPC endpoints. The indexer and
// worker run as separate processes and cannot reach the ledger host directly.
type NodeClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewNodeClient(baseURL string, timeout time.Duration, log *zap.Logger) *NodeClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NodeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// RawEvent is the wire form of a contract event.
type RawEvent struct {
	Ledger   uint64         `json:"ledger"`
	TxHash   string         `json:"tx_hash"`
	Index    int            `json:"index"`
	Contract string         `json:"contract"`
	Topic    string         `json:"topic"`
	Data     map[string]any `json:"data"`
}

type EventsPage struct {
	Events []RawEvent `json:"events"`
	Cursor uint64     `json:"cursor"`
	Ledger uint64     `json:"ledger"`
}

// Events fetches contract events after cursor, at most limit.
func (c *NodeClient) Events(ctx context.Context, cursor uint64, limit int) (*EventsPage, error) {
	url := fmt.Sprintf("%s/rpc/events?cursor=%d&limit=%d", c.baseURL, cursor, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("node unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("node returned %d: %s", resp.StatusCode, string(body))
	}

	var page EventsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *NodeClient) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("node unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("node returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// RefundEscrow triggers a refund for an expired escrow. The contract rejects
// the call if the escrow is not actually expired, so racing the indexer is
// harmless.
func (c *NodeClient) RefundEscrow(ctx context.Context, escrowID uint64) error {
	return c.post(ctx, fmt.Sprintf("/rpc/escrows/%d/refund", escrowID))
}

// MarkLoanDefault flags an overdue loan.
func (c *NodeClient) MarkLoanDefault(ctx context.Context, loanID uint64) error {
	return c.post(ctx, fmt.Sprintf("/rpc/loans/%d/default", loanID))
}
