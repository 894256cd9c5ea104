package escrow

import (
	"math/big"
	"testing"

	"github.com/tradevault/backend/internal/chain"
)

func TestStoredRateFallback(t *testing.T) {
	host := chain.NewHost()
	host.Register(escrowAddr)
	src := StoredRate{Contract: escrowAddr}

	rateOf := func(t *testing.T) *big.Int {
		t.Helper()
		var rate *big.Int
		err := host.View(func(env *chain.Env) error {
			var e error
			rate, e = src.Rate(env, usdc, eurc)
			return e
		})
		if err != nil {
			t.Fatalf("Rate() error = %v", err)
		}
		return rate
	}

	// Nothing stored: 1:1.
	if got := rateOf(t); got.Int64() != chain.RateScale {
		t.Errorf("default rate = %s, want %d", got, chain.RateScale)
	}

	// Global default takes over.
	err := host.Invoke(func(env *chain.Env) error {
		return env.State(escrowAddr).Set(keyRateDefault, big.NewInt(900_000))
	})
	if err != nil {
		t.Fatalf("set default rate: %v", err)
	}
	if got := rateOf(t); got.Int64() != 900_000 {
		t.Errorf("rate = %s, want 900000", got)
	}

	// A per-pair rate wins over the default.
	err = host.Invoke(func(env *chain.Env) error {
		return env.State(escrowAddr).Set(ratePairKey(usdc, eurc), big.NewInt(950_000))
	})
	if err != nil {
		t.Fatalf("set pair rate: %v", err)
	}
	if got := rateOf(t); got.Int64() != 950_000 {
		t.Errorf("rate = %s, want 950000", got)
	}

	// The reverse pair is unaffected.
	var reverse *big.Int
	_ = host.View(func(env *chain.Env) error {
		var e error
		reverse, e = src.Rate(env, eurc, usdc)
		return e
	})
	if reverse.Int64() != 900_000 {
		t.Errorf("reverse rate = %s, want 900000 (default)", reverse)
	}
}
