package escrow

import (
	"errors"
	"math/big"
	"testing"

	"github.com/tradevault/backend/internal/chain"
	"github.com/tradevault/backend/internal/contracts/collateral"
	"github.com/tradevault/backend/internal/contracts/treasury"
)

const (
	admin  = chain.Address("admin")
	lender = chain.Address("lender")
	buyer  = chain.Address("buyer")
	seller = chain.Address("seller")

	usdc = chain.Address("USDC")
	eurc = chain.Address("EURC")

	escrowAddr = chain.Address("CT.ESCROW")
	deliveryEv = uint32(2)
)

type fakeConfs struct {
	confs []Confirmation
}

func (f *fakeConfs) Confirmations(env *chain.Env, escrowID uint64) ([]Confirmation, error) {
	return f.confs, nil
}

type fixture struct {
	host  *chain.Host
	now   uint64
	coll  *collateral.Registry
	trs   *treasury.Treasury
	mgr   *Manager
	confs *fakeConfs
}

func newFixture(t *testing.T, opts ...ManagerOption) *fixture {
	t.Helper()
	f := &fixture{now: 1_700_000_000, confs: &fakeConfs{}}
	f.host = chain.NewHost(chain.WithClock(func() uint64 { return f.now }))

	f.coll = collateral.New(f.host, "CT.COLLATERAL")
	f.trs = treasury.New(f.host, "CT.TREASURY")
	f.mgr = New(f.host, escrowAddr, Deps{
		Collateral:    f.coll,
		Confirmations: f.confs,
		Treasury:      f.trs,
	}, opts...)

	if err := f.coll.Initialize(admin); err != nil {
		t.Fatalf("collateral init: %v", err)
	}
	if err := f.trs.Initialize(admin, 30); err != nil {
		t.Fatalf("treasury init: %v", err)
	}
	if err := f.mgr.Initialize(admin); err != nil {
		t.Fatalf("escrow init: %v", err)
	}

	f.host.Mint(usdc, lender, big.NewInt(1_000_000))
	return f
}

// pledge registers fresh collateral for the lender and returns its id.
func (f *fixture) pledge(t *testing.T) uint64 {
	t.Helper()
	id, err := f.coll.RegisterCollateral(lender, "invoice", "10000")
	if err != nil {
		t.Fatalf("register collateral: %v", err)
	}
	return id
}

func (f *fixture) baseConfig(collateralID uint64) Config {
	return Config{
		Buyer:                buyer,
		Seller:               seller,
		Lender:               lender,
		CollateralID:         collateralID,
		Amount:               big.NewInt(10_000),
		Asset:                usdc,
		MinDestinationAmount: big.NewInt(10_000),
		RequiredConfirmation: deliveryEv,
		ExpiryTS:             f.now + 3600,
	}
}

func (f *fixture) confirm(oracle chain.Address, eventType uint32) {
	f.confs.confs = append(f.confs.confs, Confirmation{
		Oracle:    oracle,
		EventType: eventType,
		Verified:  true,
	})
}

func TestCreateEscrow(t *testing.T) {
	f := newFixture(t)
	collID := f.pledge(t)

	id, err := f.mgr.CreateEscrow(lender, f.baseConfig(collID))
	if err != nil {
		t.Fatalf("CreateEscrow() error = %v", err)
	}
	if id != 1 {
		t.Errorf("first escrow id = %d, want 1", id)
	}

	esc, err := f.mgr.GetEscrow(id)
	if err != nil || esc == nil {
		t.Fatalf("GetEscrow() = %v, %v", esc, err)
	}
	if esc.Status != StatusActive {
		t.Errorf("status = %v, want active", esc.Status)
	}
	if esc.CreatedAt != f.now {
		t.Errorf("created_at = %d, want %d", esc.CreatedAt, f.now)
	}

	// Funds in custody, collateral locked.
	if got := f.host.Balance(usdc, escrowAddr); got.Int64() != 10_000 {
		t.Errorf("custody balance = %s, want 10000", got)
	}
	if got := f.host.Balance(usdc, lender); got.Int64() != 990_000 {
		t.Errorf("lender balance = %s, want 990000", got)
	}
	locked, err := f.coll.IsLocked(collID)
	if err != nil || !locked {
		t.Errorf("IsLocked() = %v, %v, want true", locked, err)
	}

	// Ids are sequential.
	id2, err := f.mgr.CreateEscrow(lender, f.baseConfig(f.pledge(t)))
	if err != nil {
		t.Fatalf("second CreateEscrow() error = %v", err)
	}
	if id2 != 2 {
		t.Errorf("second escrow id = %d, want 2", id2)
	}
}

func TestCreateEscrowUnauthorized(t *testing.T) {
	f := newFixture(t)
	cfg := f.baseConfig(f.pledge(t))
	if _, err := f.mgr.CreateEscrow(buyer, cfg); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("CreateEscrow() error = %v, want ErrUnauthorized", err)
	}
}

func TestCreateEscrowValidation(t *testing.T) {
	f := newFixture(t)
	collID := f.pledge(t)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"zero amount", func(c *Config) { c.Amount = big.NewInt(0) }, ErrInvalidAmount},
		{"negative amount", func(c *Config) { c.Amount = big.NewInt(-1) }, ErrInvalidAmount},
		{"nil amount", func(c *Config) { c.Amount = nil }, ErrInvalidAmount},
		{"duplicate oracle", func(c *Config) {
			c.OracleSet = []chain.Address{"o1", "o1"}
		}, ErrInvalidOracleSet},
		{"threshold above set size", func(c *Config) {
			c.OracleSet = []chain.Address{"o1", "o2"}
			c.RequiredConfirmations = 3
		}, ErrInvalidThreshold},
		{"nil destination floor", func(c *Config) {
			c.MinDestinationAmount = nil
		}, ErrInvalidAmount},
		{"zero destination floor", func(c *Config) {
			c.MinDestinationAmount = big.NewInt(0)
		}, ErrInvalidAmount},
		{"cross-asset without floor", func(c *Config) {
			c.DestinationAsset = eurc
			c.MinDestinationAmount = nil
		}, ErrInvalidAmount},
		{"unknown collateral", func(c *Config) {
			c.CollateralID = 999
		}, collateral.ErrCollateralNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := f.baseConfig(collID)
			tt.mutate(&cfg)
			if _, err := f.mgr.CreateEscrow(lender, cfg); !errors.Is(err, tt.wantErr) {
				t.Fatalf("CreateEscrow() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// A failed funds transfer must also revert the collateral lock staged
// earlier in the same invocation.
func TestCreateEscrowRollsBackCollateralLock(t *testing.T) {
	f := newFixture(t)
	collID := f.pledge(t)

	cfg := f.baseConfig(collID)
	cfg.Amount = big.NewInt(2_000_000) // more than the lender holds

	if _, err := f.mgr.CreateEscrow(lender, cfg); !errors.Is(err, chain.ErrInsufficientBalance) {
		t.Fatalf("CreateEscrow() error = %v, want ErrInsufficientBalance", err)
	}
	locked, err := f.coll.IsLocked(collID)
	if err != nil {
		t.Fatalf("IsLocked() error = %v", err)
	}
	if locked {
		t.Error("collateral stayed locked after failed creation")
	}
}

func TestReleaseRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	collID := f.pledge(t)
	id, err := f.mgr.CreateEscrow(lender, f.baseConfig(collID))
	if err != nil {
		t.Fatalf("CreateEscrow() error = %v", err)
	}

	if err := f.mgr.ReleaseFunds(id); !errors.Is(err, ErrConfirmationNotMet) {
		t.Fatalf("ReleaseFunds() without confirmation error = %v, want ErrConfirmationNotMet", err)
	}

	// Wrong event type does not satisfy the policy.
	f.confirm("o1", deliveryEv+1)
	if err := f.mgr.ReleaseFunds(id); !errors.Is(err, ErrConfirmationNotMet) {
		t.Fatalf("ReleaseFunds() with wrong event type error = %v, want ErrConfirmationNotMet", err)
	}

	// Neither does an unverified confirmation of the right type.
	f.confs.confs = append(f.confs.confs, Confirmation{Oracle: "o2", EventType: deliveryEv})
	if err := f.mgr.ReleaseFunds(id); !errors.Is(err, ErrConfirmationNotMet) {
		t.Fatalf("ReleaseFunds() with unverified confirmation error = %v, want ErrConfirmationNotMet", err)
	}

	f.confirm("o1", deliveryEv)
	if err := f.mgr.ReleaseFunds(id); err != nil {
		t.Fatalf("ReleaseFunds() error = %v", err)
	}

	esc, _ := f.mgr.GetEscrow(id)
	if esc.Status != StatusReleased {
		t.Errorf("status = %v, want released", esc.Status)
	}
	// Default mode records the fee but pays the seller in full.
	if got := f.host.Balance(usdc, seller); got.Int64() != 10_000 {
		t.Errorf("seller balance = %s, want 10000", got)
	}
	collected, err := f.trs.Collected(usdc)
	if err != nil {
		t.Fatalf("Collected() error = %v", err)
	}
	if collected.Int64() != 30 { // 10000 * 30bps
		t.Errorf("recorded fee = %s, want 30", collected)
	}
	if got := f.host.Balance(usdc, f.trs.Address()); got.Sign() != 0 {
		t.Errorf("treasury token balance = %s, want 0 in recording mode", got)
	}
	locked, _ := f.coll.IsLocked(collID)
	if locked {
		t.Error("collateral stayed locked after release")
	}
}

func TestReleaseWithFeeDeduction(t *testing.T) {
	f := newFixture(t, WithFeeDeduction())
	id, err := f.mgr.CreateEscrow(lender, f.baseConfig(f.pledge(t)))
	if err != nil {
		t.Fatalf("CreateEscrow() error = %v", err)
	}
	f.confirm("o1", deliveryEv)

	if err := f.mgr.ReleaseFunds(id); err != nil {
		t.Fatalf("ReleaseFunds() error = %v", err)
	}
	if got := f.host.Balance(usdc, seller); got.Int64() != 9_970 {
		t.Errorf("seller balance = %s, want 9970 (net of 30 fee)", got)
	}
	if got := f.host.Balance(usdc, f.trs.Address()); got.Int64() != 30 {
		t.Errorf("treasury balance = %s, want 30", got)
	}
}

func TestReleaseRefundExclusive(t *testing.T) {
	f := newFixture(t)

	released, err := f.mgr.CreateEscrow(lender, f.baseConfig(f.pledge(t)))
	if err != nil {
		t.Fatalf("CreateEscrow() error = %v", err)
	}
	f.confirm("o1", deliveryEv)
	if err := f.mgr.ReleaseFunds(released); err != nil {
		t.Fatalf("ReleaseFunds() error = %v", err)
	}
	f.now += 7200
	if err := f.mgr.RefundEscrow(released); !errors.Is(err, ErrEscrowNotActive) {
		t.Errorf("RefundEscrow() after release error = %v, want ErrEscrowNotActive", err)
	}
	if err := f.mgr.ReleaseFunds(released); !errors.Is(err, ErrEscrowNotActive) {
		t.Errorf("second ReleaseFunds() error = %v, want ErrEscrowNotActive", err)
	}

	refunded, err := f.mgr.CreateEscrow(lender, f.baseConfig(f.pledge(t)))
	if err != nil {
		t.Fatalf("CreateEscrow() error = %v", err)
	}
	f.now += 7200
	if err := f.mgr.RefundEscrow(refunded); err != nil {
		t.Fatalf("RefundEscrow() error = %v", err)
	}
	if err := f.mgr.ReleaseFunds(refunded); !errors.Is(err, ErrEscrowNotActive) {
		t.Errorf("ReleaseFunds() after refund error = %v, want ErrEscrowNotActive", err)
	}
}

func TestRefundExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	collID := f.pledge(t)
	cfg := f.baseConfig(collID)
	id, err := f.mgr.CreateEscrow(lender, cfg)
	if err != nil {
		t.Fatalf("CreateEscrow() error = %v", err)
	}
	lenderBefore := f.host.Balance(usdc, lender)

	// Refund is strictly after expiry.
	f.now = cfg.ExpiryTS
	if err := f.mgr.RefundEscrow(id); !errors.Is(err, ErrEscrowNotExpired) {
		t.Fatalf("RefundEscrow() at expiry error = %v, want ErrEscrowNotExpired", err)
	}

	f.now = cfg.ExpiryTS + 1
	if err := f.mgr.RefundEscrow(id); err != nil {
		t.Fatalf("RefundEscrow() error = %v", err)
	}

	esc, _ := f.mgr.GetEscrow(id)
	if esc.Status != StatusRefunded {
		t.Errorf("status = %v, want refunded", esc.Status)
	}
	want := new(big.Int).Add(lenderBefore, big.NewInt(10_000))
	if got := f.host.Balance(usdc, lender); got.Cmp(want) != 0 {
		t.Errorf("lender balance = %s, want %s", got, want)
	}
	locked, _ := f.coll.IsLocked(collID)
	if locked {
		t.Error("collateral stayed locked after refund")
	}
}

func TestReleaseQuorum(t *testing.T) {
	f := newFixture(t)
	cfg := f.baseConfig(f.pledge(t))
	cfg.OracleSet = []chain.Address{"o1", "o2", "o3"}
	cfg.RequiredConfirmations = 2
	id, err := f.mgr.CreateEscrow(lender, cfg)
	if err != nil {
		t.Fatalf("CreateEscrow() error = %v", err)
	}

	f.confirm("o1", deliveryEv)
	if err := f.mgr.ReleaseFunds(id); !errors.Is(err, ErrQuorumNotMet) {
		t.Fatalf("ReleaseFunds() with 1 of 2 error = %v, want ErrQuorumNotMet", err)
	}

	// Confirmations outside the oracle set do not count toward quorum.
	f.confirm("outsider", deliveryEv)
	if err := f.mgr.ReleaseFunds(id); !errors.Is(err, ErrQuorumNotMet) {
		t.Fatalf("ReleaseFunds() with outsider error = %v, want ErrQuorumNotMet", err)
	}

	f.confirm("o2", deliveryEv)
	if err := f.mgr.ReleaseFunds(id); err != nil {
		t.Fatalf("ReleaseFunds() with quorum error = %v", err)
	}
}

func TestReleaseOracleSetWithoutQuorum(t *testing.T) {
	f := newFixture(t)
	cfg := f.baseConfig(f.pledge(t))
	cfg.OracleSet = []chain.Address{"o1", "o2"}
	id, err := f.mgr.CreateEscrow(lender, cfg)
	if err != nil {
		t.Fatalf("CreateEscrow() error = %v", err)
	}

	// Single-oracle semantics still restricted to the set.
	f.confirm("outsider", deliveryEv)
	if err := f.mgr.ReleaseFunds(id); !errors.Is(err, ErrConfirmationNotMet) {
		t.Fatalf("ReleaseFunds() error = %v, want ErrConfirmationNotMet", err)
	}
	f.confirm("o2", deliveryEv)
	if err := f.mgr.ReleaseFunds(id); err != nil {
		t.Fatalf("ReleaseFunds() error = %v", err)
	}
}

func TestCrossAssetRelease(t *testing.T) {
	tests := []struct {
		name       string
		minDest    int64
		wantErr    error
		wantSeller int64
	}{
		{"estimate clears floor", 4500, nil, 4500},
		{"estimate below floor", 4800, ErrSlippageExceeded, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			// 0.9 destination units per source unit.
			if err := f.mgr.SetExchangeRate(admin, big.NewInt(900_000)); err != nil {
				t.Fatalf("SetExchangeRate() error = %v", err)
			}
			// Destination-side liquidity held by the contract.
			f.host.Mint(eurc, escrowAddr, big.NewInt(100_000))

			cfg := f.baseConfig(f.pledge(t))
			cfg.Amount = big.NewInt(5_000)
			cfg.DestinationAsset = eurc
			cfg.MinDestinationAmount = big.NewInt(tt.minDest)
			id, err := f.mgr.CreateEscrow(lender, cfg)
			if err != nil {
				t.Fatalf("CreateEscrow() error = %v", err)
			}
			f.confirm("o1", deliveryEv)

			err = f.mgr.ReleaseFunds(id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ReleaseFunds() error = %v, want %v", err, tt.wantErr)
				}
				esc, _ := f.mgr.GetEscrow(id)
				if esc.Status != StatusActive {
					t.Errorf("status = %v, want active after failed release", esc.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReleaseFunds() error = %v", err)
			}
			if got := f.host.Balance(eurc, seller); got.Int64() != tt.wantSeller {
				t.Errorf("seller EURC balance = %s, want %d", got, tt.wantSeller)
			}
			if got := f.host.Balance(usdc, seller); got.Sign() != 0 {
				t.Errorf("seller USDC balance = %s, want 0", got)
			}
		})
	}
}

func TestSetExchangeRateAdminOnly(t *testing.T) {
	f := newFixture(t)
	if err := f.mgr.SetExchangeRate(lender, big.NewInt(900_000)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("SetExchangeRate() error = %v, want ErrUnauthorized", err)
	}
}

func TestReleaseUnknownEscrow(t *testing.T) {
	f := newFixture(t)
	if err := f.mgr.ReleaseFunds(42); !errors.Is(err, ErrEscrowNotFound) {
		t.Fatalf("ReleaseFunds() error = %v, want ErrEscrowNotFound", err)
	}
	if err := f.mgr.RefundEscrow(42); !errors.Is(err, ErrEscrowNotFound) {
		t.Fatalf("RefundEscrow() error = %v, want ErrEscrowNotFound", err)
	}
}

func TestInitializeTwice(t *testing.T) {
	f := newFixture(t)
	if err := f.mgr.Initialize(admin); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("Initialize() error = %v, want ErrAlreadyInitialized", err)
	}
}
