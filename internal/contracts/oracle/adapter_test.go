package oracle

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/tradevault/backend/internal/chain"
)

const (
	adminAddr  = chain.Address("admin")
	oracleAddr = chain.Address("oracle-1")
)

type signer struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newSigner(t *testing.T) signer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return signer{pub: pub, priv: priv}
}

func (s signer) sign(escrowID uint64, eventType uint32, result []byte) []byte {
	return ed25519.Sign(s.priv, ConfirmationMessage(escrowID, eventType, result))
}

func newAdapter(t *testing.T) *Adapter {
	t.Helper()
	host := chain.NewHost()
	a := New(host, "CT.ORACLE", Ed25519Verifier{})
	if err := a.Initialize(adminAddr); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return a
}

func TestAddRemoveOracle(t *testing.T) {
	a := newAdapter(t)
	s := newSigner(t)

	if err := a.AddOracle(oracleAddr, oracleAddr, s.pub); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("AddOracle() by non-admin error = %v, want ErrUnauthorized", err)
	}
	if err := a.AddOracle(adminAddr, oracleAddr, s.pub); err != nil {
		t.Fatalf("AddOracle() error = %v", err)
	}
	if err := a.AddOracle(adminAddr, oracleAddr, s.pub); !errors.Is(err, ErrOracleAlreadyRegistered) {
		t.Fatalf("duplicate AddOracle() error = %v, want ErrOracleAlreadyRegistered", err)
	}

	registered, err := a.IsRegistered(oracleAddr)
	if err != nil || !registered {
		t.Fatalf("IsRegistered() = %v, %v, want true", registered, err)
	}

	if err := a.RemoveOracle(adminAddr, "unknown"); !errors.Is(err, ErrOracleNotRegistered) {
		t.Fatalf("RemoveOracle(unknown) error = %v, want ErrOracleNotRegistered", err)
	}
	if err := a.RemoveOracle(adminAddr, oracleAddr); err != nil {
		t.Fatalf("RemoveOracle() error = %v", err)
	}
	n, err := a.OracleCount()
	if err != nil || n != 0 {
		t.Fatalf("OracleCount() = %d, %v, want 0", n, err)
	}
}

func TestConfirmEvent(t *testing.T) {
	a := newAdapter(t)
	s := newSigner(t)
	if err := a.AddOracle(adminAddr, oracleAddr, s.pub); err != nil {
		t.Fatalf("AddOracle() error = %v", err)
	}

	result := []byte("delivered")
	sig := s.sign(7, EventDelivery, result)
	if err := a.ConfirmEvent(oracleAddr, 7, EventDelivery, result, sig); err != nil {
		t.Fatalf("ConfirmEvent() error = %v", err)
	}

	confs, err := a.GetConfirmations(7)
	if err != nil {
		t.Fatalf("GetConfirmations() error = %v", err)
	}
	if len(confs) != 1 {
		t.Fatalf("got %d confirmations, want 1", len(confs))
	}
	c := confs[0]
	if c.Oracle != oracleAddr || c.EventType != EventDelivery || !c.Verified {
		t.Errorf("confirmation = %+v", c)
	}

	// Same (escrow, oracle) pair can never be written twice.
	sig2 := s.sign(7, EventQuality, result)
	if err := a.ConfirmEvent(oracleAddr, 7, EventQuality, result, sig2); !errors.Is(err, ErrConfirmationAlreadyExists) {
		t.Fatalf("replay ConfirmEvent() error = %v, want ErrConfirmationAlreadyExists", err)
	}

	// A different escrow is a fresh key.
	sig3 := s.sign(8, EventDelivery, result)
	if err := a.ConfirmEvent(oracleAddr, 8, EventDelivery, result, sig3); err != nil {
		t.Fatalf("ConfirmEvent() for second escrow error = %v", err)
	}
}

func TestConfirmEventRejections(t *testing.T) {
	a := newAdapter(t)
	s := newSigner(t)
	other := newSigner(t)
	if err := a.AddOracle(adminAddr, oracleAddr, s.pub); err != nil {
		t.Fatalf("AddOracle() error = %v", err)
	}
	result := []byte("ok")

	tests := []struct {
		name      string
		caller    chain.Address
		eventType uint32
		sig       []byte
		wantErr   error
	}{
		{"unregistered caller", "stranger", EventDelivery, s.sign(1, EventDelivery, result), ErrOracleNotRegistered},
		{"event type zero", oracleAddr, 0, s.sign(1, 0, result), ErrInvalidEventType},
		{"event type out of range", oracleAddr, 5, s.sign(1, 5, result), ErrInvalidEventType},
		{"wrong key", oracleAddr, EventDelivery, other.sign(1, EventDelivery, result), ErrInvalidSignature},
		{"signature over other escrow", oracleAddr, EventDelivery, s.sign(2, EventDelivery, result), ErrInvalidSignature},
		{"truncated signature", oracleAddr, EventDelivery, s.sign(1, EventDelivery, result)[:32], ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.ConfirmEvent(tt.caller, 1, tt.eventType, result, tt.sig)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ConfirmEvent() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// Nothing above may have left a confirmation behind.
	confs, err := a.GetConfirmations(1)
	if err != nil {
		t.Fatalf("GetConfirmations() error = %v", err)
	}
	if len(confs) != 0 {
		t.Errorf("got %d confirmations after rejected submissions, want 0", len(confs))
	}
}

func TestConfirmationMessageDistinct(t *testing.T) {
	base := ConfirmationMessage(1, EventDelivery, []byte("r"))
	for name, msg := range map[string][]byte{
		"different escrow": ConfirmationMessage(2, EventDelivery, []byte("r")),
		"different type":   ConfirmationMessage(1, EventShipment, []byte("r")),
		"different result": ConfirmationMessage(1, EventDelivery, []byte("x")),
	} {
		if string(msg) == string(base) {
			t.Errorf("%s produced an identical digest", name)
		}
	}
}
