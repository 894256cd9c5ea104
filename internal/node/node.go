// Package node wires the contract triad into one deployment over a single
// ledger host. It is the process-local equivalent of deploying the contracts
// to a chain: fixed contract addresses, one initialization pass driven by
// config, no ambient globals.
package node

import (
	"fmt"
	"math/big"

	"github.com/tradevault/backend/internal/chain"
	"github.com/tradevault/backend/internal/config"
	"github.com/tradevault/backend/internal/contracts/collateral"
	"github.com/tradevault/backend/internal/contracts/escrow"
	"github.com/tradevault/backend/internal/contracts/loan"
	"github.com/tradevault/backend/internal/contracts/oracle"
	"github.com/tradevault/backend/internal/contracts/treasury"
	"go.uber.org/zap"
)

// Deployed contract addresses. Stable so mirror rows and event consumers can
// key on them.
const (
	AddrCollateral = chain.Address("CT.COLLATERAL")
	AddrOracle     = chain.Address("CT.ORACLE")
	AddrEscrow     = chain.Address("CT.ESCROW")
	AddrLoan       = chain.Address("CT.LOAN")
	AddrTreasury   = chain.Address("CT.TREASURY")
)

// Node owns the ledger host and the deployed contracts.
type Node struct {
	Host       *chain.Host
	Collateral *collateral.Registry
	Oracle     *oracle.Adapter
	Escrow     *escrow.Manager
	Loans      *loan.Management
	Treasury   *treasury.Treasury

	admin chain.Address
	log   *zap.Logger
}

// confirmationSource adapts the oracle adapter to the escrow manager's
// consumption shape.
type confirmationSource struct {
	adapter *oracle.Adapter
}

func (s confirmationSource) Confirmations(env *chain.Env, escrowID uint64) ([]escrow.Confirmation, error) {
	confs, err := s.adapter.ConfirmationsIn(env, escrowID)
	if err != nil {
		return nil, err
	}
	out := make([]escrow.Confirmation, 0, len(confs))
	for _, c := range confs {
		out = append(out, escrow.Confirmation{
			Oracle:    c.Oracle,
			EventType: c.EventType,
			Verified:  c.Verified,
		})
	}
	return out, nil
}

// New deploys and initializes the contracts. The admin address, fee rate and
// fee deduction mode come from config.
func New(cfg *config.Config, log *zap.Logger, opts ...chain.Option) (*Node, error) {
	host := chain.NewHost(opts...)
	admin := chain.Address(cfg.AdminAddress)

	coll := collateral.New(host, AddrCollateral)
	orc := oracle.New(host, AddrOracle, oracle.Ed25519Verifier{})
	trs := treasury.New(host, AddrTreasury)
	loans := loan.New(host, AddrLoan)

	var mgrOpts []escrow.ManagerOption
	if cfg.FeeDeducted {
		mgrOpts = append(mgrOpts, escrow.WithFeeDeduction())
	}
	esc := escrow.New(host, AddrEscrow, escrow.Deps{
		Collateral:    coll,
		Confirmations: confirmationSource{adapter: orc},
		Treasury:      trs,
	}, mgrOpts...)

	if err := coll.Initialize(admin); err != nil {
		return nil, fmt.Errorf("initialize collateral registry: %w", err)
	}
	if err := orc.Initialize(admin); err != nil {
		return nil, fmt.Errorf("initialize oracle adapter: %w", err)
	}
	if err := trs.Initialize(admin, uint32(cfg.ProtocolFeeBPS)); err != nil {
		return nil, fmt.Errorf("initialize treasury: %w", err)
	}
	if err := esc.Initialize(admin); err != nil {
		return nil, fmt.Errorf("initialize escrow manager: %w", err)
	}
	if err := loans.Initialize(admin); err != nil {
		return nil, fmt.Errorf("initialize loan management: %w", err)
	}
	if cfg.RiskEngineAddress != "" {
		if err := loans.SetRiskEngine(admin, chain.Address(cfg.RiskEngineAddress)); err != nil {
			return nil, fmt.Errorf("set risk engine: %w", err)
		}
	}
	if cfg.DefaultRate != "" {
		rate, ok := new(big.Int).SetString(cfg.DefaultRate, 10)
		if !ok || rate.Sign() <= 0 {
			return nil, fmt.Errorf("DEFAULT_EXCHANGE_RATE is not a positive integer: %q", cfg.DefaultRate)
		}
		if err := esc.SetExchangeRate(admin, rate); err != nil {
			return nil, fmt.Errorf("set exchange rate: %w", err)
		}
	}

	log.Info("contracts deployed",
		zap.String("admin", cfg.AdminAddress),
		zap.Int("fee_bps", cfg.ProtocolFeeBPS),
		zap.Bool("fee_deducted", cfg.FeeDeducted),
	)

	return &Node{
		Host:       host,
		Collateral: coll,
		Oracle:     orc,
		Escrow:     esc,
		Loans:      loans,
		Treasury:   trs,
		admin:      admin,
		log:        log,
	}, nil
}

// Admin returns the configured admin address.
func (n *Node) Admin() chain.Address { return n.admin }

// EventsAfter exposes the host event feed for the RPC endpoint.
func (n *Node) EventsAfter(cursor chain.Cursor, limit int) ([]chain.Event, chain.Cursor) {
	return n.Host.EventsAfter(cursor, limit)
}

// Fund credits a ledger account. Admin bootstrap surface for the reference
// deployment; a production chain funds accounts through asset issuance.
func (n *Node) Fund(caller chain.Address, asset, account chain.Address, amount *big.Int) error {
	if caller != n.admin {
		return escrow.ErrUnauthorized
	}
	n.Host.Mint(asset, account, amount)
	return nil
}
