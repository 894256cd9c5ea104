package collateral

import (
	"errors"
	"testing"

	"github.com/tradevault/backend/internal/chain"
)

const owner = chain.Address("owner")

func newRegistry(t *testing.T) (*chain.Host, *Registry) {
	t.Helper()
	host := chain.NewHost()
	r := New(host, "CT.COLLATERAL")
	if err := r.Initialize("admin"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return host, r
}

func TestRegisterCollateral(t *testing.T) {
	_, r := newRegistry(t)

	id, err := r.RegisterCollateral(owner, "invoice", "10000")
	if err != nil {
		t.Fatalf("RegisterCollateral() error = %v", err)
	}
	if id != 1 {
		t.Errorf("first collateral id = %d, want 1", id)
	}

	rec, err := r.GetCollateral(id)
	if err != nil || rec == nil {
		t.Fatalf("GetCollateral() = %v, %v", rec, err)
	}
	if rec.Owner != owner || rec.AssetType != "invoice" || rec.Value != "10000" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Locked {
		t.Error("fresh collateral must be unlocked")
	}
	if rec.Status() != StatusActive {
		t.Errorf("Status() = %q, want %q", rec.Status(), StatusActive)
	}

	id2, err := r.RegisterCollateral(owner, "warehouse receipt", "5000")
	if err != nil {
		t.Fatalf("second RegisterCollateral() error = %v", err)
	}
	if id2 != 2 {
		t.Errorf("second collateral id = %d, want 2", id2)
	}
}

func TestLockUnlockIdempotent(t *testing.T) {
	host, r := newRegistry(t)
	id, err := r.RegisterCollateral(owner, "invoice", "10000")
	if err != nil {
		t.Fatalf("RegisterCollateral() error = %v", err)
	}

	// Double lock and double unlock are no-ops, not errors.
	err = host.Invoke(func(env *chain.Env) error {
		if err := r.LockCollateral(env, id); err != nil {
			return err
		}
		return r.LockCollateral(env, id)
	})
	if err != nil {
		t.Fatalf("double lock error = %v", err)
	}
	locked, err := r.IsLocked(id)
	if err != nil || !locked {
		t.Fatalf("IsLocked() = %v, %v, want true", locked, err)
	}
	rec, _ := r.GetCollateral(id)
	if rec.Status() != StatusLocked {
		t.Errorf("Status() = %q, want %q", rec.Status(), StatusLocked)
	}

	err = host.Invoke(func(env *chain.Env) error {
		if err := r.UnlockCollateral(env, id); err != nil {
			return err
		}
		return r.UnlockCollateral(env, id)
	})
	if err != nil {
		t.Fatalf("double unlock error = %v", err)
	}
	locked, _ = r.IsLocked(id)
	if locked {
		t.Error("collateral still locked after unlock")
	}
}

func TestLockUnknownCollateral(t *testing.T) {
	host, r := newRegistry(t)

	err := host.Invoke(func(env *chain.Env) error {
		return r.LockCollateral(env, 42)
	})
	if !errors.Is(err, ErrCollateralNotFound) {
		t.Fatalf("LockCollateral(42) error = %v, want ErrCollateralNotFound", err)
	}
	err = host.Invoke(func(env *chain.Env) error {
		return r.UnlockCollateral(env, 42)
	})
	if !errors.Is(err, ErrCollateralNotFound) {
		t.Fatalf("UnlockCollateral(42) error = %v, want ErrCollateralNotFound", err)
	}

	locked, err := r.IsLocked(42)
	if err != nil || locked {
		t.Errorf("IsLocked(42) = %v, %v, want false", locked, err)
	}
}
