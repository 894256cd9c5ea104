package treasury

import (
	"errors"
	"math/big"
	"testing"

	"github.com/tradevault/backend/internal/chain"
)

func newTreasury(t *testing.T) (*chain.Host, *Treasury) {
	t.Helper()
	host := chain.NewHost()
	trs := New(host, "CT.TREASURY")
	if err := trs.Initialize("admin", 30); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return host, trs
}

func TestFeeBps(t *testing.T) {
	host, trs := newTreasury(t)

	var bps uint32
	_ = host.View(func(env *chain.Env) error {
		var err error
		bps, err = trs.FeeBps(env)
		return err
	})
	if bps != 30 {
		t.Errorf("FeeBps() = %d, want 30", bps)
	}

	if err := trs.SetFeeBps("stranger", 100); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("SetFeeBps() by non-admin error = %v, want ErrUnauthorized", err)
	}
	if err := trs.SetFeeBps("admin", 100); err != nil {
		t.Fatalf("SetFeeBps() error = %v", err)
	}
	_ = host.View(func(env *chain.Env) error {
		var err error
		bps, err = trs.FeeBps(env)
		return err
	})
	if bps != 100 {
		t.Errorf("FeeBps() = %d, want 100", bps)
	}
}

func TestDepositFeeAccumulates(t *testing.T) {
	host, trs := newTreasury(t)

	for _, amount := range []int64{30, 15} {
		err := host.Invoke(func(env *chain.Env) error {
			return trs.DepositFee(env, "USDC", big.NewInt(amount))
		})
		if err != nil {
			t.Fatalf("DepositFee(%d) error = %v", amount, err)
		}
	}

	got, err := trs.Collected("USDC")
	if err != nil {
		t.Fatalf("Collected() error = %v", err)
	}
	if got.Int64() != 45 {
		t.Errorf("Collected(USDC) = %s, want 45", got)
	}

	other, err := trs.Collected("EURC")
	if err != nil || other.Sign() != 0 {
		t.Errorf("Collected(EURC) = %s, %v, want 0", other, err)
	}
}

func TestInitializeTwice(t *testing.T) {
	_, trs := newTreasury(t)
	if err := trs.Initialize("admin", 30); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("Initialize() error = %v, want ErrAlreadyInitialized", err)
	}
}
