package escrow

import (
	"fmt"
	"math/big"

	"github.com/tradevault/backend/internal/chain"
)

// RateSource quotes a 6-decimal fixed-point exchange rate for a source to
// destination asset pair (1_000_000 = 1:1). A DEX integration would replace
// the stored-rate implementation without touching escrow state logic.
type RateSource interface {
	Rate(env *chain.Env, source, destination chain.Address) (*big.Int, error)
}

// Payment reports what the seller actually received.
type Payment struct {
	Asset     chain.Address
	Amount    *big.Int
	Estimated *big.Int // destination estimate; nil for direct transfers
}

// PaymentExecutor performs the seller payout for a release. source is the
// escrow contract's custody address, amount the source-asset amount to pay
// out (already net of any deducted fee).
type PaymentExecutor interface {
	Execute(env *chain.Env, source chain.Address, esc *Escrow, amount *big.Int) (*Payment, error)
}

// DirectTransfer pays the seller the source amount in the source asset.
type DirectTransfer struct{}

func (DirectTransfer) Execute(env *chain.Env, source chain.Address, esc *Escrow, amount *big.Int) (*Payment, error) {
	if err := env.Transfer(esc.Asset, source, esc.Seller, amount); err != nil {
		return nil, err
	}
	return &Payment{Asset: esc.Asset, Amount: amount}, nil
}

// ConvertAndTransfer estimates the destination amount through the rate
// source, enforces the slippage floor, and pays the seller the estimated
// amount in the destination asset out of the contract's liquidity. The
// source amount stays in custody as the swapped-in side of the conversion.
type ConvertAndTransfer struct {
	Rates RateSource
}

func (c ConvertAndTransfer) Execute(env *chain.Env, source chain.Address, esc *Escrow, amount *big.Int) (*Payment, error) {
	rate, err := c.Rates.Rate(env, esc.Asset, esc.DestinationAsset)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPathPaymentFailed, err)
	}
	estimated, err := chain.ApplyRate(amount, rate)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPathPaymentFailed, err)
	}
	if estimated.Cmp(esc.MinDestinationAmount) < 0 {
		return nil, ErrSlippageExceeded
	}
	if err := env.Transfer(esc.DestinationAsset, source, esc.Seller, estimated); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPathPaymentFailed, err)
	}
	return &Payment{Asset: esc.DestinationAsset, Amount: estimated, Estimated: estimated}, nil
}

// StoredRate reads rates from a contract's state: a per-pair key when set,
// otherwise the global default (1:1 when nothing is stored).
type StoredRate struct {
	Contract chain.Address
}

const keyRateDefault = "rate"

func ratePairKey(src, dst chain.Address) string {
	return "rate:" + string(src) + ":" + string(dst)
}

func (r StoredRate) Rate(env *chain.Env, source, destination chain.Address) (*big.Int, error) {
	st := env.State(r.Contract)
	rate := new(big.Int)
	ok, err := st.Get(ratePairKey(source, destination), rate)
	if err != nil {
		return nil, err
	}
	if ok {
		return rate, nil
	}
	ok, err = st.Get(keyRateDefault, rate)
	if err != nil {
		return nil, err
	}
	if ok {
		return rate, nil
	}
	return big.NewInt(chain.RateScale), nil
}
