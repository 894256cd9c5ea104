package escrow

import (
	"fmt"
	"math/big"

	"github.com/tradevault/backend/internal/chain"
)

const (
	keyAdmin    = "admin"
	keyNextID   = "next_id"
	keyTreasury = "treasury"
)

func escrowKey(id uint64) string { return fmt.Sprintf("escrow:%d", id) }

// Deps are the collaborator contracts the manager calls into. They are wired
// once at construction; the admin and treasury toggle live in contract state.
type Deps struct {
	Collateral    CollateralLocker
	Confirmations ConfirmationSource
	Treasury      Treasury
	Rates         RateSource
}

// Manager is the escrow manager contract.
type Manager struct {
	host      *chain.Host
	addr      chain.Address
	deps      Deps
	direct    PaymentExecutor
	convert   PaymentExecutor
	deductFee bool
}

// ManagerOption configures optional behavior.
type ManagerOption func(*Manager)

// WithFeeDeduction makes the protocol fee actually withheld from the seller
// payment and transferred to the treasury, instead of only recorded.
func WithFeeDeduction() ManagerOption {
	return func(m *Manager) { m.deductFee = true }
}

// WithPaymentExecutor overrides the cross-asset payment path.
func WithPaymentExecutor(exec PaymentExecutor) ManagerOption {
	return func(m *Manager) { m.convert = exec }
}

func New(host *chain.Host, addr chain.Address, deps Deps, opts ...ManagerOption) *Manager {
	host.Register(addr)
	m := &Manager{
		host:   host,
		addr:   addr,
		deps:   deps,
		direct: DirectTransfer{},
	}
	rates := deps.Rates
	if rates == nil {
		rates = StoredRate{Contract: addr}
	}
	m.convert = ConvertAndTransfer{Rates: rates}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Address() chain.Address { return m.addr }

func (m *Manager) admin(env *chain.Env) (chain.Address, bool, error) {
	var admin chain.Address
	ok, err := env.State(m.addr).Get(keyAdmin, &admin)
	return admin, ok, err
}

// Initialize sets the admin and the id counter. Single-shot.
func (m *Manager) Initialize(admin chain.Address) error {
	return m.host.Invoke(func(env *chain.Env) error {
		st := env.State(m.addr)
		if st.Has(keyAdmin) {
			return ErrAlreadyInitialized
		}
		if err := st.Set(keyAdmin, admin); err != nil {
			return err
		}
		if err := st.Set(keyNextID, uint64(1)); err != nil {
			return err
		}
		if m.deps.Treasury != nil {
			if err := st.Set(keyTreasury, m.deps.Treasury.Address()); err != nil {
				return err
			}
		}
		env.Emit(m.addr, "esc_init", map[string]any{"admin": string(admin)})
		return nil
	})
}

// SetTreasury points the manager at a treasury contract. Admin only.
func (m *Manager) SetTreasury(caller chain.Address, t Treasury) error {
	return m.host.Invoke(func(env *chain.Env) error {
		admin, ok, err := m.admin(env)
		if err != nil {
			return err
		}
		if !ok || caller != admin {
			return ErrUnauthorized
		}
		m.deps.Treasury = t
		if err := env.State(m.addr).Set(keyTreasury, t.Address()); err != nil {
			return err
		}
		env.Emit(m.addr, "trs_set", map[string]any{"treasury": string(t.Address())})
		return nil
	})
}

// Treasury returns the configured treasury address, empty if none.
func (m *Manager) Treasury() (chain.Address, error) {
	var addr chain.Address
	err := m.host.View(func(env *chain.Env) error {
		_, err := env.State(m.addr).Get(keyTreasury, &addr)
		return err
	})
	return addr, err
}

// SetExchangeRate stores the default conversion rate used by the stored-rate
// source (6-decimal fixed point). Admin only.
func (m *Manager) SetExchangeRate(caller chain.Address, rate *big.Int) error {
	return m.host.Invoke(func(env *chain.Env) error {
		admin, ok, err := m.admin(env)
		if err != nil {
			return err
		}
		if !ok || caller != admin {
			return ErrUnauthorized
		}
		return env.State(m.addr).Set(keyRateDefault, rate)
	})
}

func validateConfig(cfg *Config) error {
	if cfg.Amount == nil || cfg.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if cfg.MinDestinationAmount == nil || cfg.MinDestinationAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	seen := make(map[chain.Address]struct{}, len(cfg.OracleSet))
	for _, o := range cfg.OracleSet {
		if _, dup := seen[o]; dup {
			return ErrInvalidOracleSet
		}
		seen[o] = struct{}{}
	}
	if cfg.RequiredConfirmations > 0 && len(cfg.OracleSet) > 0 &&
		int(cfg.RequiredConfirmations) > len(cfg.OracleSet) {
		return ErrInvalidThreshold
	}
	return nil
}

// CreateEscrow locks the collateral, pulls the funds from the lender into
// contract custody and persists the new escrow. caller must be the lender.
// Everything happens inside one ledger transaction: a failed transfer also
// reverts the collateral lock.
func (m *Manager) CreateEscrow(caller chain.Address, cfg Config) (uint64, error) {
	var id uint64
	err := m.host.Invoke(func(env *chain.Env) error {
		if caller != cfg.Lender {
			return ErrUnauthorized
		}
		if err := validateConfig(&cfg); err != nil {
			return err
		}

		if err := m.deps.Collateral.LockCollateral(env, cfg.CollateralID); err != nil {
			return err
		}
		if err := env.Transfer(cfg.Asset, cfg.Lender, m.addr, cfg.Amount); err != nil {
			return err
		}

		st := env.State(m.addr)
		if _, err := st.Get(keyNextID, &id); err != nil {
			return err
		}
		if id == 0 {
			id = 1
		}

		esc := Escrow{
			ID:                    id,
			Buyer:                 cfg.Buyer,
			Seller:                cfg.Seller,
			Lender:                cfg.Lender,
			CollateralID:          cfg.CollateralID,
			Amount:                cfg.Amount,
			Asset:                 cfg.Asset,
			RequiredConfirmation:  cfg.RequiredConfirmation,
			Status:                StatusActive,
			ExpiryTS:              cfg.ExpiryTS,
			CreatedAt:             env.Now(),
			DestinationAsset:      cfg.DestinationAsset,
			MinDestinationAmount:  cfg.MinDestinationAmount,
			RequiredConfirmations: cfg.RequiredConfirmations,
			OracleSet:             cfg.OracleSet,
		}
		if err := st.Set(escrowKey(id), &esc); err != nil {
			return err
		}
		if err := st.Set(keyNextID, id+1); err != nil {
			return err
		}

		data := map[string]any{
			"escrow_id":              id,
			"buyer":                  string(cfg.Buyer),
			"seller":                 string(cfg.Seller),
			"lender":                 string(cfg.Lender),
			"collateral_id":          cfg.CollateralID,
			"amount":                 cfg.Amount.String(),
			"asset":                  string(cfg.Asset),
			"required_confirmation":  cfg.RequiredConfirmation,
			"required_confirmations": cfg.RequiredConfirmations,
			"expiry_ts":              cfg.ExpiryTS,
			"min_destination_amount": cfg.MinDestinationAmount.String(),
		}
		if cfg.DestinationAsset != "" {
			data["destination_asset"] = string(cfg.DestinationAsset)
		}
		env.Emit(m.addr, "esc_crtd", data)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// checkConfirmed evaluates the escrow's confirmation policy:
// RequiredConfirmations == 0 keeps single-oracle semantics (any verified
// confirmation of the required event type), otherwise N distinct verified
// oracles are needed, restricted to the escrow's oracle set when non-empty.
func checkConfirmed(esc *Escrow, confs []Confirmation) error {
	inSet := func(o chain.Address) bool {
		if len(esc.OracleSet) == 0 {
			return true
		}
		for _, member := range esc.OracleSet {
			if member == o {
				return true
			}
		}
		return false
	}

	matched := make(map[chain.Address]struct{})
	for _, c := range confs {
		if c.EventType == esc.RequiredConfirmation && c.Verified && inSet(c.Oracle) {
			matched[c.Oracle] = struct{}{}
		}
	}

	if esc.RequiredConfirmations == 0 {
		if len(matched) == 0 {
			return ErrConfirmationNotMet
		}
		return nil
	}
	if len(matched) < int(esc.RequiredConfirmations) {
		return ErrQuorumNotMet
	}
	return nil
}

// ReleaseFunds pays the seller once the confirmation policy is met, records
// the protocol fee, unlocks the collateral and finalizes the escrow.
// Callable by anyone; the oracle confirmations are the authorization.
func (m *Manager) ReleaseFunds(escrowID uint64) error {
	return m.host.Invoke(func(env *chain.Env) error {
		st := env.State(m.addr)
		var esc Escrow
		ok, err := st.Get(escrowKey(escrowID), &esc)
		if err != nil {
			return err
		}
		if !ok {
			return ErrEscrowNotFound
		}
		if esc.Status != StatusActive {
			return ErrEscrowNotActive
		}

		confs, err := m.deps.Confirmations.Confirmations(env, escrowID)
		if err != nil {
			return err
		}
		if err := checkConfirmed(&esc, confs); err != nil {
			return err
		}

		// Fee is computed up front so deduction mode can net it out of the
		// seller payment.
		var fee *big.Int
		if m.deps.Treasury != nil {
			bps, err := m.deps.Treasury.FeeBps(env)
			if err != nil {
				return err
			}
			fee, err = chain.FeeForBps(esc.Amount, bps)
			if err != nil {
				return err
			}
		}

		payAmount := esc.Amount
		if m.deductFee && fee != nil && fee.Sign() > 0 {
			payAmount = new(big.Int).Sub(esc.Amount, fee)
			if err := env.Transfer(esc.Asset, m.addr, m.deps.Treasury.Address(), fee); err != nil {
				return err
			}
		}

		executor := m.direct
		if esc.DestinationAsset != "" && esc.DestinationAsset != esc.Asset {
			executor = m.convert
		}
		payment, err := executor.Execute(env, m.addr, &esc, payAmount)
		if err != nil {
			return err
		}
		if payment.Estimated != nil {
			env.Emit(m.addr, "path_pay", map[string]any{
				"escrow_id": escrowID,
				"amount":    esc.Amount.String(),
				"estimated": payment.Estimated.String(),
			})
		}

		if m.deps.Treasury != nil && fee != nil && fee.Sign() > 0 {
			if err := m.deps.Treasury.DepositFee(env, esc.Asset, fee); err != nil {
				return err
			}
			env.Emit(m.addr, "fee_col", map[string]any{
				"escrow_id": escrowID,
				"amount":    fee.String(),
				"asset":     string(esc.Asset),
				"deducted":  m.deductFee,
			})
		}

		if err := m.deps.Collateral.UnlockCollateral(env, esc.CollateralID); err != nil {
			return err
		}

		esc.Status = StatusReleased
		if err := st.Set(escrowKey(escrowID), &esc); err != nil {
			return err
		}

		env.Emit(m.addr, "esc_rel", map[string]any{
			"escrow_id": escrowID,
			"seller":    string(esc.Seller),
			"paid":      payment.Amount.String(),
			"asset":     string(payment.Asset),
		})
		return nil
	})
}

// RefundEscrow returns the funds to the lender once the escrow has expired.
// Callable by anyone; strictly after ExpiryTS.
func (m *Manager) RefundEscrow(escrowID uint64) error {
	return m.host.Invoke(func(env *chain.Env) error {
		st := env.State(m.addr)
		var esc Escrow
		ok, err := st.Get(escrowKey(escrowID), &esc)
		if err != nil {
			return err
		}
		if !ok {
			return ErrEscrowNotFound
		}
		if esc.Status != StatusActive {
			return ErrEscrowNotActive
		}
		if env.Now() <= esc.ExpiryTS {
			return ErrEscrowNotExpired
		}

		if err := env.Transfer(esc.Asset, m.addr, esc.Lender, esc.Amount); err != nil {
			return err
		}
		if err := m.deps.Collateral.UnlockCollateral(env, esc.CollateralID); err != nil {
			return err
		}

		esc.Status = StatusRefunded
		if err := st.Set(escrowKey(escrowID), &esc); err != nil {
			return err
		}

		env.Emit(m.addr, "esc_rfnd", map[string]any{
			"escrow_id": escrowID,
			"lender":    string(esc.Lender),
			"amount":    esc.Amount.String(),
		})
		return nil
	})
}

// GetEscrow returns the escrow record, or nil if absent.
func (m *Manager) GetEscrow(escrowID uint64) (*Escrow, error) {
	var esc *Escrow
	err := m.host.View(func(env *chain.Env) error {
		var e Escrow
		ok, err := env.State(m.addr).Get(escrowKey(escrowID), &e)
		if err != nil {
			return err
		}
		if ok {
			esc = &e
		}
		return nil
	})
	return esc, err
}
