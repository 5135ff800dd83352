package members

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// TransitionalCodec encodes the provider handoff payload for the register
// form round trip. AES-GCM encryption plus HMAC signing keeps the payload
// opaque and tamper evident while it rides in a cookie, with a short TTL so a
// stale handoff cannot seed a registration later.
type TransitionalCodec struct {
	encryptionKey []byte
	hmacKey       []byte
	ttl           time.Duration
}

// NewTransitionalCodec creates a new codec. A zero ttl defaults to 10 minutes.
func NewTransitionalCodec(encryptionKey, hmacKey []byte, ttl time.Duration) *TransitionalCodec {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &TransitionalCodec{
		encryptionKey: encryptionKey,
		hmacKey:       hmacKey,
		ttl:           ttl,
	}
}

// NewTransitionalCodecFromConfig creates a codec from the shared configuration
// with the default TTL.
func NewTransitionalCodecFromConfig(cfg Config) *TransitionalCodec {
	return NewTransitionalCodec(
		[]byte(cfg.GetTransitionalEncryptionKey()),
		[]byte(cfg.GetTransitionalHMACKey()),
		0,
	)
}

// Encode encrypts and signs the payload.
func (tc *TransitionalCodec) Encode(t *TransitionalRegistration) (string, error) {
	if t == nil {
		return "", ErrInvalidTransitional
	}

	if t.IssuedAt == 0 {
		t.IssuedAt = time.Now().Unix()
	}
	if t.ExpiresAt == 0 {
		t.ExpiresAt = time.Now().Add(tc.ttl).Unix()
	}

	plaintext, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to marshal transitional payload: %w", err)
	}

	block, err := aes.NewCipher(tc.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	mac := hmac.New(sha256.New, tc.hmacKey)
	mac.Write(ciphertext)
	signature := mac.Sum(nil)

	result := append(signature, ciphertext...)

	return base64.URLEncoding.EncodeToString(result), nil
}

// Decode verifies and decrypts the payload.
func (tc *TransitionalCodec) Decode(token string) (*TransitionalRegistration, error) {
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidTransitional
	}

	if len(data) < sha256.Size {
		return nil, ErrInvalidTransitional
	}

	signature := data[:sha256.Size]
	ciphertext := data[sha256.Size:]

	mac := hmac.New(sha256.New, tc.hmacKey)
	mac.Write(ciphertext)
	expectedMAC := mac.Sum(nil)

	if !hmac.Equal(signature, expectedMAC) {
		return nil, ErrInvalidTransitional
	}

	block, err := aes.NewCipher(tc.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrInvalidTransitional
	}

	nonce, encrypted := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return nil, ErrInvalidTransitional
	}

	var t TransitionalRegistration
	if err := json.Unmarshal(plaintext, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transitional payload: %w", err)
	}

	if time.Now().Unix() > t.ExpiresAt {
		return nil, ErrTransitionalExpired
	}

	return &t, nil
}
