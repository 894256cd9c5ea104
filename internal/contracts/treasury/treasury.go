// Package treasury implements the protocol treasury contract: it owns the
// protocol fee rate and keeps a running total of fees recorded per asset.
package treasury

import (
	"errors"
	"math/big"

	"github.com/tradevault/backend/internal/chain"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAlreadyInitialized = errors.New("already initialized")
)

const (
	keyAdmin  = "admin"
	keyFeeBps = "fee_bps"
)

type Treasury struct {
	host *chain.Host
	addr chain.Address
}

func New(host *chain.Host, addr chain.Address) *Treasury {
	host.Register(addr)
	return &Treasury{host: host, addr: addr}
}

func (t *Treasury) Address() chain.Address { return t.addr }

func collectedKey(asset chain.Address) string { return "collected:" + string(asset) }

// Initialize sets the admin and the fee rate. Single-shot.
func (t *Treasury) Initialize(admin chain.Address, feeBps uint32) error {
	return t.host.Invoke(func(env *chain.Env) error {
		st := env.State(t.addr)
		if st.Has(keyAdmin) {
			return ErrAlreadyInitialized
		}
		if err := st.Set(keyAdmin, admin); err != nil {
			return err
		}
		if err := st.Set(keyFeeBps, feeBps); err != nil {
			return err
		}
		env.Emit(t.addr, "trs_init", map[string]any{"admin": string(admin), "fee_bps": feeBps})
		return nil
	})
}

// SetFeeBps updates the fee rate. Admin only.
func (t *Treasury) SetFeeBps(caller chain.Address, feeBps uint32) error {
	return t.host.Invoke(func(env *chain.Env) error {
		st := env.State(t.addr)
		var admin chain.Address
		ok, err := st.Get(keyAdmin, &admin)
		if err != nil {
			return err
		}
		if !ok || caller != admin {
			return ErrUnauthorized
		}
		if err := st.Set(keyFeeBps, feeBps); err != nil {
			return err
		}
		env.Emit(t.addr, "fee_set", map[string]any{"fee_bps": feeBps})
		return nil
	})
}

// FeeBps reads the fee rate inside an ongoing invocation.
func (t *Treasury) FeeBps(env *chain.Env) (uint32, error) {
	var bps uint32
	if _, err := env.State(t.addr).Get(keyFeeBps, &bps); err != nil {
		return 0, err
	}
	return bps, nil
}

// DepositFee records a fee amount against the per-asset running total.
// Recording is a ledger entry, not a token movement; the escrow manager
// decides whether the fee is actually withheld.
func (t *Treasury) DepositFee(env *chain.Env, asset chain.Address, amount *big.Int) error {
	st := env.State(t.addr)
	total := big.NewInt(0)
	if _, err := st.Get(collectedKey(asset), total); err != nil {
		return err
	}
	sum, err := chain.CheckedAdd(total, amount)
	if err != nil {
		return err
	}
	if err := st.Set(collectedKey(asset), sum); err != nil {
		return err
	}
	env.Emit(t.addr, "fee_dep", map[string]any{
		"asset":  string(asset),
		"amount": amount.String(),
	})
	return nil
}

// Collected returns the running total recorded for an asset.
func (t *Treasury) Collected(asset chain.Address) (*big.Int, error) {
	total := big.NewInt(0)
	err := t.host.View(func(env *chain.Env) error {
		_, err := env.State(t.addr).Get(collectedKey(asset), total)
		return err
	})
	return total, err
}
