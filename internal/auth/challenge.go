package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrChallengeNotFound = errors.New("challenge not found or expired")
	ErrBadSignature      = errors.New("challenge signature verification failed")
	ErrBadAddress        = errors.New("address is not a valid ed25519 public key")
)

// ChallengeStore выдаёт одноразовые nonce для входа по подписи кошелька.
// Адрес кошелька — hex-кодированный ed25519 публичный ключ.
type ChallengeStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewChallengeStore(client *redis.Client, ttl time.Duration) *ChallengeStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ChallengeStore{client: client, ttl: ttl}
}

func nonceKey(address string) string {
	return "auth:nonce:" + address
}

// Issue генерирует nonce и сохраняет его c TTL. Повторный вызов заменяет старый nonce.
func (s *ChallengeStore) Issue(ctx context.Context, address string) (string, error) {
	if _, err := decodeAddress(address); err != nil {
		return "", err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	nonce := hex.EncodeToString(buf)

	if err := s.client.Set(ctx, nonceKey(address), nonce, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store challenge: %w", err)
	}
	return nonce, nil
}

// Verify проверяет подпись nonce ключом адреса. Nonce одноразовый:
// удаляется до проверки подписи, повторная попытка с тем же nonce невозможна.
func (s *ChallengeStore) Verify(ctx context.Context, address string, signatureHex string) error {
	pubKey, err := decodeAddress(address)
	if err != nil {
		return err
	}

	nonce, err := s.client.GetDel(ctx, nonceKey(address)).Result()
	if err == redis.Nil {
		return ErrChallengeNotFound
	}
	if err != nil {
		return fmt.Errorf("load challenge: %w", err)
	}

	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ErrBadSignature
	}

	if !ed25519.Verify(pubKey, []byte(nonce), sig) {
		return ErrBadSignature
	}
	return nil
}

func decodeAddress(address string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(address)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, ErrBadAddress
	}
	return ed25519.PublicKey(raw), nil
}
