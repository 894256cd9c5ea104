// Package oracle implements the oracle adapter contract: a registry of
// trusted signers and the replay-protected confirmations they submit for
// escrow events.
package oracle

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/tradevault/backend/internal/chain"
)

var (
	ErrUnauthorized              = errors.New("unauthorized")
	ErrAlreadyInitialized        = errors.New("already initialized")
	ErrOracleNotRegistered       = errors.New("oracle not registered")
	ErrOracleAlreadyRegistered   = errors.New("oracle already registered")
	ErrInvalidSignature          = errors.New("invalid signature")
	ErrConfirmationAlreadyExists = errors.New("confirmation already exists")
	ErrInvalidEventType          = errors.New("invalid event type")
)

// Event types oracles may attest to.
const (
	EventShipment uint32 = 1
	EventDelivery uint32 = 2
	EventQuality  uint32 = 3
	EventCustom   uint32 = 4
)

const keyData = "data"

// Oracle is one registered signer: its ledger address and the public key its
// confirmations are verified against.
type Oracle struct {
	Address chain.Address `json:"address"`
	PubKey  string        `json:"pub_key"` // hex
}

type contractData struct {
	Admin   chain.Address `json:"admin"`
	Oracles []Oracle      `json:"oracles"`
}

// Confirmation is the per-(escrow, oracle) attestation record. Written once;
// the composite key existence check prevents replay.
type Confirmation struct {
	EscrowID  uint64        `json:"escrow_id"`
	EventType uint32        `json:"event_type"`
	Result    []byte        `json:"result"`
	Oracle    chain.Address `json:"oracle"`
	Timestamp uint64        `json:"timestamp"`
	Verified  bool          `json:"verified"`
}

type Adapter struct {
	host     *chain.Host
	addr     chain.Address
	verifier Verifier
}

func New(host *chain.Host, addr chain.Address, verifier Verifier) *Adapter {
	host.Register(addr)
	return &Adapter{host: host, addr: addr, verifier: verifier}
}

func (a *Adapter) Address() chain.Address { return a.addr }

func confirmationKey(escrowID uint64, oracle chain.Address) string {
	return fmt.Sprintf("conf:%d:%s", escrowID, oracle)
}

func (a *Adapter) data(env *chain.Env) (*contractData, error) {
	var d contractData
	ok, err := env.State(a.addr).Get(keyData, &d)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (d *contractData) find(addr chain.Address) *Oracle {
	for i := range d.Oracles {
		if d.Oracles[i].Address == addr {
			return &d.Oracles[i]
		}
	}
	return nil
}

// Initialize sets the admin. Single-shot.
func (a *Adapter) Initialize(admin chain.Address) error {
	return a.host.Invoke(func(env *chain.Env) error {
		st := env.State(a.addr)
		if st.Has(keyData) {
			return ErrAlreadyInitialized
		}
		if err := st.Set(keyData, &contractData{Admin: admin}); err != nil {
			return err
		}
		env.Emit(a.addr, "oracle_init", map[string]any{"admin": string(admin)})
		return nil
	})
}

// AddOracle registers an oracle address with its public key. Admin only.
func (a *Adapter) AddOracle(caller, oracle chain.Address, pubKey []byte) error {
	return a.host.Invoke(func(env *chain.Env) error {
		d, err := a.data(env)
		if err != nil {
			return err
		}
		if d == nil || caller != d.Admin {
			return ErrUnauthorized
		}
		if d.find(oracle) != nil {
			return ErrOracleAlreadyRegistered
		}
		d.Oracles = append(d.Oracles, Oracle{Address: oracle, PubKey: hex.EncodeToString(pubKey)})
		if err := env.State(a.addr).Set(keyData, d); err != nil {
			return err
		}
		env.Emit(a.addr, "oracle_add", map[string]any{"oracle": string(oracle)})
		return nil
	})
}

// RemoveOracle drops a registered oracle. Admin only.
func (a *Adapter) RemoveOracle(caller, oracle chain.Address) error {
	return a.host.Invoke(func(env *chain.Env) error {
		d, err := a.data(env)
		if err != nil {
			return err
		}
		if d == nil || caller != d.Admin {
			return ErrUnauthorized
		}
		kept := d.Oracles[:0]
		found := false
		for _, o := range d.Oracles {
			if o.Address == oracle {
				found = true
				continue
			}
			kept = append(kept, o)
		}
		if !found {
			return ErrOracleNotRegistered
		}
		d.Oracles = kept
		if err := env.State(a.addr).Set(keyData, d); err != nil {
			return err
		}
		env.Emit(a.addr, "oracle_rem", map[string]any{"oracle": string(oracle)})
		return nil
	})
}

// ConfirmEvent records a signed attestation from a registered oracle.
// The (escrow, oracle) pair can only be written once.
func (a *Adapter) ConfirmEvent(caller chain.Address, escrowID uint64, eventType uint32, result, signature []byte) error {
	return a.host.Invoke(func(env *chain.Env) error {
		d, err := a.data(env)
		if err != nil {
			return err
		}
		if d == nil {
			return ErrOracleNotRegistered
		}
		o := d.find(caller)
		if o == nil {
			return ErrOracleNotRegistered
		}
		if eventType < EventShipment || eventType > EventCustom {
			return ErrInvalidEventType
		}

		st := env.State(a.addr)
		key := confirmationKey(escrowID, caller)
		if st.Has(key) {
			return ErrConfirmationAlreadyExists
		}

		pubKey, err := hex.DecodeString(o.PubKey)
		if err != nil {
			return fmt.Errorf("stored public key for %s: %w", caller, err)
		}
		msg := ConfirmationMessage(escrowID, eventType, result)
		if err := a.verifier.Verify(pubKey, msg, signature); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
		}

		conf := Confirmation{
			EscrowID:  escrowID,
			EventType: eventType,
			Result:    result,
			Oracle:    caller,
			Timestamp: env.Now(),
			Verified:  true,
		}
		if err := st.Set(key, &conf); err != nil {
			return err
		}

		env.Emit(a.addr, "confirmed", map[string]any{
			"escrow_id":  escrowID,
			"event_type": eventType,
			"oracle":     string(caller),
			"result":     string(result),
		})
		return nil
	})
}

// ConfirmationsIn collects every stored confirmation for an escrow by
// scanning the registered oracles. Callable from inside another contract's
// invocation so the escrow release check sees uncommitted state consistently.
func (a *Adapter) ConfirmationsIn(env *chain.Env, escrowID uint64) ([]Confirmation, error) {
	d, err := a.data(env)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, nil
	}
	st := env.State(a.addr)
	var confs []Confirmation
	for _, o := range d.Oracles {
		var c Confirmation
		ok, err := st.Get(confirmationKey(escrowID, o.Address), &c)
		if err != nil {
			return nil, err
		}
		if ok {
			confs = append(confs, c)
		}
	}
	return confs, nil
}

// GetConfirmations is the public read of ConfirmationsIn. Returns nil when
// no oracle has confirmed anything for the escrow.
func (a *Adapter) GetConfirmations(escrowID uint64) ([]Confirmation, error) {
	var confs []Confirmation
	err := a.host.View(func(env *chain.Env) error {
		var e error
		confs, e = a.ConfirmationsIn(env, escrowID)
		return e
	})
	return confs, err
}

// IsRegistered reports whether the address is a registered oracle.
func (a *Adapter) IsRegistered(oracle chain.Address) (bool, error) {
	var registered bool
	err := a.host.View(func(env *chain.Env) error {
		d, err := a.data(env)
		if err != nil {
			return err
		}
		registered = d != nil && d.find(oracle) != nil
		return nil
	})
	return registered, err
}

// OracleCount returns the number of registered oracles.
func (a *Adapter) OracleCount() (int, error) {
	var n int
	err := a.host.View(func(env *chain.Env) error {
		d, err := a.data(env)
		if err != nil {
			return err
		}
		if d != nil {
			n = len(d.Oracles)
		}
		return nil
	})
	return n, err
}

// Admin returns the admin address, empty if uninitialized.
func (a *Adapter) Admin() (chain.Address, error) {
	var admin chain.Address
	err := a.host.View(func(env *chain.Env) error {
		d, err := a.data(env)
		if err != nil {
			return err
		}
		if d != nil {
			admin = d.Admin
		}
		return nil
	})
	return admin, err
}
