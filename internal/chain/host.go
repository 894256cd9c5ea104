package chain

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Address identifies an account, contract or asset on the ledger.
type Address string

// Host is the in-process ledger environment the contracts execute against:
// per-contract key-value state, a token balance ledger, an append-only event
// log and a deterministic clock. Public contract operations run through
// Invoke, which serializes them and makes each invocation atomic: on error
// every staged write (state, balances, events) is discarded, including writes
// made by cross-contract calls inside the same invocation.
type Host struct {
	mu     sync.Mutex
	now    func() uint64
	states map[Address]*kvStore
	tokens map[string]*big.Int
	events []Event
	ledger uint64
}

// Option configures a Host.
type Option func(*Host)

// WithClock overrides the ledger clock (unix seconds).
func WithClock(now func() uint64) Option {
	return func(h *Host) { h.now = now }
}

func NewHost(opts ...Option) *Host {
	h := &Host{
		now:    func() uint64 { return uint64(time.Now().Unix()) },
		states: make(map[Address]*kvStore),
		tokens: make(map[string]*big.Int),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register allocates a state namespace for a contract address.
func (h *Host) Register(contract Address) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.states[contract]; !ok {
		h.states[contract] = newKVStore()
	}
}

func balanceKey(asset, addr Address) string {
	return string(asset) + "|" + string(addr)
}

// Mint credits an account balance outside of any invocation. Used for
// bootstrap and tests; a production deployment funds accounts through
// asset issuance events instead.
func (h *Host) Mint(asset, addr Address, amount *big.Int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := balanceKey(asset, addr)
	cur, ok := h.tokens[key]
	if !ok {
		cur = big.NewInt(0)
	}
	h.tokens[key] = new(big.Int).Add(cur, amount)
}

// Balance returns the committed balance of addr in asset.
func (h *Host) Balance(asset, addr Address) *big.Int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if v, ok := h.tokens[balanceKey(asset, addr)]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

// LedgerSeq returns the sequence number of the last committed invocation.
func (h *Host) LedgerSeq() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ledger
}

// EventsAfter returns up to limit events past the cursor, with the cursor
// positioned after the last returned event.
func (h *Host) EventsAfter(cursor Cursor, limit int) ([]Event, Cursor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(cursor) >= len(h.events) {
		return nil, cursor
	}
	end := len(h.events)
	if limit > 0 && int(cursor)+limit < end {
		end = int(cursor) + limit
	}
	out := make([]Event, end-int(cursor))
	copy(out, h.events[cursor:end])
	return out, Cursor(end)
}

// Invoke runs fn as one atomic ledger transaction. Invocations are
// serialized; no two can interleave. If fn returns an error, nothing it
// staged survives.
func (h *Host) Invoke(fn func(env *Env) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	env := &Env{
		host:   h,
		txHash: uuid.New().String(),
		states: make(map[Address]*State),
		tokens: make(map[string]*big.Int),
	}

	if err := fn(env); err != nil {
		return err
	}

	h.ledger++
	for _, st := range env.states {
		st.commit()
	}
	for key, bal := range env.tokens {
		h.tokens[key] = bal
	}
	for i := range env.events {
		env.events[i].Ledger = h.ledger
		env.events[i].TxHash = env.txHash
		env.events[i].Index = i
	}
	h.events = append(h.events, env.events...)

	return nil
}

// View runs fn against current state without committing anything and
// without advancing the ledger sequence. Used for read-only queries.
func (h *Host) View(fn func(env *Env) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	env := &Env{
		host:   h,
		states: make(map[Address]*State),
		tokens: make(map[string]*big.Int),
	}
	return fn(env)
}

// Env is the execution context of one invocation. It is only valid inside
// the Invoke callback that created it.
type Env struct {
	host   *Host
	txHash string
	states map[Address]*State
	tokens map[string]*big.Int
	events []Event
}

// State returns the staged view of a contract's namespace.
func (e *Env) State(contract Address) *State {
	if st, ok := e.states[contract]; ok {
		return st
	}
	base, ok := e.host.states[contract]
	if !ok {
		base = newKVStore()
		e.host.states[contract] = base
	}
	st := newState(base)
	e.states[contract] = st
	return st
}

// Now returns the ledger timestamp (unix seconds).
func (e *Env) Now() uint64 {
	return e.host.now()
}

// TxHash returns the hash of the current invocation.
func (e *Env) TxHash() string {
	return e.txHash
}

func (e *Env) balance(key string) *big.Int {
	if v, ok := e.tokens[key]; ok {
		return v
	}
	if v, ok := e.host.tokens[key]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

// Balance returns the staged balance of addr in asset.
func (e *Env) Balance(asset, addr Address) *big.Int {
	return new(big.Int).Set(e.balance(balanceKey(asset, addr)))
}

// Transfer moves amount of asset from one account to another. Fails without
// side effects when amount is not positive or the source balance is short.
func (e *Env) Transfer(asset, from, to Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("transfer of %s %s: non-positive amount", amount, asset)
	}
	fromKey := balanceKey(asset, from)
	toKey := balanceKey(asset, to)
	fromBal := e.balance(fromKey)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("transfer of %s %s from %s: %w", amount, asset, from, ErrInsufficientBalance)
	}
	e.tokens[fromKey] = new(big.Int).Sub(fromBal, amount)
	e.tokens[toKey] = new(big.Int).Add(e.balance(toKey), amount)
	return nil
}

// Emit stages an event. It becomes visible only if the invocation commits.
func (e *Env) Emit(contract Address, topic string, data map[string]any) {
	e.events = append(e.events, Event{
		Contract: contract,
		Topic:    topic,
		Data:     data,
	})
}
