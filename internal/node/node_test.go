package node

import (
	"crypto/ed25519"
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/tradevault/backend/internal/chain"
	"github.com/tradevault/backend/internal/config"
	"github.com/tradevault/backend/internal/contracts/escrow"
	"github.com/tradevault/backend/internal/contracts/loan"
	"github.com/tradevault/backend/internal/contracts/oracle"
	"go.uber.org/zap"
)

func testNode(t *testing.T, now *uint64) *Node {
	t.Helper()
	cfg := &config.Config{
		AdminAddress:      "admin",
		RiskEngineAddress: "risk-engine",
		ProtocolFeeBPS:    30,
	}
	n, err := New(cfg, zap.NewNop(), chain.WithClock(func() uint64 { return *now }))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return n
}

// Full trade lifecycle across all contracts: pledge, escrow, loan, oracle
// confirmation, release, repayment.
func TestTradeLifecycle(t *testing.T) {
	now := uint64(1_700_000_000)
	n := testNode(t, &now)

	lender := chain.Address("lender")
	seller := chain.Address("seller")
	usdc := chain.Address("USDC")

	if err := n.Fund("admin", usdc, lender, big.NewInt(100_000)); err != nil {
		t.Fatalf("Fund() error = %v", err)
	}
	if err := n.Fund(lender, usdc, lender, big.NewInt(1)); err != escrow.ErrUnauthorized {
		t.Fatalf("Fund() by non-admin error = %v, want ErrUnauthorized", err)
	}

	collID, err := n.Collateral.RegisterCollateral(lender, "invoice", "50000")
	if err != nil {
		t.Fatalf("RegisterCollateral() error = %v", err)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate oracle key: %v", err)
	}
	oracleAddr := chain.Address("oracle-1")
	if err := n.Oracle.AddOracle("admin", oracleAddr, pub); err != nil {
		t.Fatalf("AddOracle() error = %v", err)
	}

	escrowID, err := n.Escrow.CreateEscrow(lender, escrow.Config{
		Buyer:                "buyer",
		Seller:               seller,
		Lender:               lender,
		CollateralID:         collID,
		Amount:               big.NewInt(10_000),
		Asset:                usdc,
		MinDestinationAmount: big.NewInt(10_000),
		RequiredConfirmation: oracle.EventDelivery,
		ExpiryTS:             now + 3600,
	})
	if err != nil {
		t.Fatalf("CreateEscrow() error = %v", err)
	}

	loanID, err := n.Loans.IssueLoan(lender, escrowID, "borrower", lender, big.NewInt(10_000), 500, 86_400)
	if err != nil {
		t.Fatalf("IssueLoan() error = %v", err)
	}

	// Release is gated on the oracle attestation.
	if err := n.Escrow.ReleaseFunds(escrowID); err != escrow.ErrConfirmationNotMet {
		t.Fatalf("premature ReleaseFunds() error = %v, want ErrConfirmationNotMet", err)
	}
	result := []byte("delivered")
	sig := ed25519.Sign(priv, oracle.ConfirmationMessage(escrowID, oracle.EventDelivery, result))
	if err := n.Oracle.ConfirmEvent(oracleAddr, escrowID, oracle.EventDelivery, result, sig); err != nil {
		t.Fatalf("ConfirmEvent() error = %v", err)
	}
	if err := n.Escrow.ReleaseFunds(escrowID); err != nil {
		t.Fatalf("ReleaseFunds() error = %v", err)
	}

	if got := n.Host.Balance(usdc, seller); got.Int64() != 10_000 {
		t.Errorf("seller balance = %s, want 10000", got)
	}
	locked, _ := n.Collateral.IsLocked(collID)
	if locked {
		t.Error("collateral stayed locked after release")
	}

	if err := n.Loans.RepayLoan("borrower", loanID, big.NewInt(10_500)); err != nil {
		t.Fatalf("RepayLoan() error = %v", err)
	}
	l, _ := n.Loans.GetLoan(loanID)
	if l.Status != loan.StatusRepaid {
		t.Errorf("loan status = %v, want repaid", l.Status)
	}

	// The event feed saw the whole story in order.
	events, _ := n.EventsAfter(0, 0)
	var topics []string
	for _, ev := range events {
		topics = append(topics, ev.Topic)
	}
	wantOrder := []string{"coll_reg", "oracle_add", "coll_lock", "esc_crtd", "loan_iss", "confirmed", "esc_rel", "loan_rep"}
	i := 0
	for _, topic := range topics {
		if i < len(wantOrder) && topic == wantOrder[i] {
			i++
		}
	}
	if i != len(wantOrder) {
		t.Errorf("event feed missing %q, got topics %v", wantOrder[i], topics)
	}
}

func TestRiskEngineWiredFromConfig(t *testing.T) {
	now := uint64(1_700_000_000)
	n := testNode(t, &now)

	if _, err := n.Loans.IssueLoan("lender", 1, "borrower", "lender", big.NewInt(100), 0, 10); err != nil {
		t.Fatalf("IssueLoan() error = %v", err)
	}
	if err := n.Loans.MarkLiquidated("risk-engine", 1, "liquidator"); err != nil {
		t.Fatalf("MarkLiquidated() by configured risk engine error = %v", err)
	}
}
