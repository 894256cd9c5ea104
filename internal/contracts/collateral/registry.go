// Package collateral implements the collateral registry contract: records of
// pledged assets with a lock flag owned by the escrow flow. Lock and unlock
// are idempotent so that a replayed cross-contract call cannot corrupt state.
package collateral

import (
	"errors"
	"fmt"

	"github.com/tradevault/backend/internal/chain"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrCollateralNotFound = errors.New("collateral not found")
	ErrInvalidAmount      = errors.New("invalid amount")
)

const (
	keyAdmin  = "admin"
	keyNextID = "next_id"
)

// Collateral statuses mirror the lock flag for off-chain consumers.
const (
	StatusActive = "active"
	StatusLocked = "locked"
)

type Collateral struct {
	ID        uint64        `json:"id"`
	Owner     chain.Address `json:"owner"`
	AssetType string        `json:"asset_type"`
	Value     string        `json:"value"`
	Locked    bool          `json:"locked"`
	CreatedAt uint64        `json:"created_at"`
}

func (c *Collateral) Status() string {
	if c.Locked {
		return StatusLocked
	}
	return StatusActive
}

type Registry struct {
	host *chain.Host
	addr chain.Address
}

func New(host *chain.Host, addr chain.Address) *Registry {
	host.Register(addr)
	return &Registry{host: host, addr: addr}
}

func (r *Registry) Address() chain.Address { return r.addr }

func collateralKey(id uint64) string { return fmt.Sprintf("collateral:%d", id) }

// Initialize sets the admin. Single-shot.
func (r *Registry) Initialize(admin chain.Address) error {
	return r.host.Invoke(func(env *chain.Env) error {
		st := env.State(r.addr)
		if st.Has(keyAdmin) {
			return ErrAlreadyInitialized
		}
		if err := st.Set(keyAdmin, admin); err != nil {
			return err
		}
		if err := st.Set(keyNextID, uint64(1)); err != nil {
			return err
		}
		env.Emit(r.addr, "coll_init", map[string]any{"admin": string(admin)})
		return nil
	})
}

// RegisterCollateral mints a new unlocked collateral record for owner.
func (r *Registry) RegisterCollateral(owner chain.Address, assetType, value string) (uint64, error) {
	var id uint64
	err := r.host.Invoke(func(env *chain.Env) error {
		st := env.State(r.addr)
		if _, err := st.Get(keyNextID, &id); err != nil {
			return err
		}
		if id == 0 {
			id = 1
		}
		rec := Collateral{
			ID:        id,
			Owner:     owner,
			AssetType: assetType,
			Value:     value,
			Locked:    false,
			CreatedAt: env.Now(),
		}
		if err := st.Set(collateralKey(id), &rec); err != nil {
			return err
		}
		if err := st.Set(keyNextID, id+1); err != nil {
			return err
		}
		env.Emit(r.addr, "coll_reg", map[string]any{
			"collateral_id": id,
			"owner":         string(owner),
			"asset_type":    assetType,
			"value":         value,
		})
		return nil
	})
	return id, err
}

// LockCollateral marks the record locked. Locking an already-locked record is
// a no-op so a replayed call cannot fail an otherwise valid escrow creation.
func (r *Registry) LockCollateral(env *chain.Env, id uint64) error {
	st := env.State(r.addr)
	var rec Collateral
	ok, err := st.Get(collateralKey(id), &rec)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("lock collateral %d: %w", id, ErrCollateralNotFound)
	}
	if rec.Locked {
		return nil
	}
	rec.Locked = true
	if err := st.Set(collateralKey(id), &rec); err != nil {
		return err
	}
	env.Emit(r.addr, "coll_lock", map[string]any{"collateral_id": id})
	return nil
}

// UnlockCollateral clears the lock flag. Idempotent for the same reason as
// LockCollateral: terminal escrow transitions may race a worker retry.
func (r *Registry) UnlockCollateral(env *chain.Env, id uint64) error {
	st := env.State(r.addr)
	var rec Collateral
	ok, err := st.Get(collateralKey(id), &rec)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("unlock collateral %d: %w", id, ErrCollateralNotFound)
	}
	if !rec.Locked {
		return nil
	}
	rec.Locked = false
	if err := st.Set(collateralKey(id), &rec); err != nil {
		return err
	}
	env.Emit(r.addr, "coll_unlk", map[string]any{"collateral_id": id})
	return nil
}

// GetCollateral returns the record, or nil if absent.
func (r *Registry) GetCollateral(id uint64) (*Collateral, error) {
	var rec *Collateral
	err := r.host.View(func(env *chain.Env) error {
		var c Collateral
		ok, err := env.State(r.addr).Get(collateralKey(id), &c)
		if err != nil {
			return err
		}
		if ok {
			rec = &c
		}
		return nil
	})
	return rec, err
}

// IsLocked reports the lock flag; absent records count as unlocked.
func (r *Registry) IsLocked(id uint64) (bool, error) {
	rec, err := r.GetCollateral(id)
	if err != nil {
		return false, err
	}
	return rec != nil && rec.Locked, nil
}
