package oracle

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Verifier checks that a confirmation was signed by the claimed oracle's key
// over the canonical message. Pluggable so the adapter does not hardcode a
// signature scheme.
type Verifier interface {
	Verify(pubKey, message, signature []byte) error
}

// ConfirmationMessage builds the canonical signing payload:
// sha256(escrow_id big-endian 8 bytes ‖ event_type big-endian 4 bytes ‖ result).
func ConfirmationMessage(escrowID uint64, eventType uint32, result []byte) []byte {
	buf := make([]byte, 0, 12+len(result))
	buf = binary.BigEndian.AppendUint64(buf, escrowID)
	buf = binary.BigEndian.AppendUint32(buf, eventType)
	buf = append(buf, result...)
	sum := sha256.Sum256(buf)
	return sum[:]
}

// Ed25519Verifier verifies Ed25519 signatures over the canonical digest.
type Ed25519Verifier struct{}

func (Ed25519Verifier) Verify(pubKey, message, signature []byte) error {
	if len(pubKey) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid public key size: %d", len(pubKey))
	}
	if len(signature) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature size: %d", len(signature))
	}
	if !ed25519.Verify(ed25519.PublicKey(pubKey), message, signature) {
		return fmt.Errorf("signature does not match")
	}
	return nil
}
