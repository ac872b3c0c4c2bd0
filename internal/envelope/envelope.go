// Package envelope implements hybrid encryption of session field groups: a
// fresh AES-256-GCM key per group, wrapped with the recipient's RSA public
// key. Confidentiality is best-effort; callers fall back to plaintext when
// no usable key exists.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// FormatVersion is stamped on every payload so the recipient can evolve the
// scheme without guessing.
const FormatVersion = 1

// minKeyChars is the basic validity floor for a serialized public key; a
// shorter value cannot hold a usable RSA key.
const minKeyChars = 256

// Payload is one encrypted field group. Absence of a payload for a field
// means that field was sent in the clear.
type Payload struct {
	Ciphertext string `json:"ciphertext"`
	WrappedKey string `json:"wrappedKey"`
	IV         string `json:"iv"`
	Version    int    `json:"version"`
}

// ParsePublicKey accepts a PEM-encoded SPKI block or raw base64 DER and
// returns the RSA public key, or an error when the value fails the basic
// validity check.
func ParsePublicKey(raw string) (*rsa.PublicKey, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < minKeyChars {
		return nil, fmt.Errorf("public key too short (%d chars)", len(raw))
	}

	var der []byte
	if block, _ := pem.Decode([]byte(raw)); block != nil {
		der = block.Bytes
	} else {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("decode public key: %w", err)
		}
		der = decoded
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return rsaKey, nil
}

// Seal encrypts plaintext under a fresh symmetric key and wraps that key
// for the recipient.
func Seal(recipient *rsa.PublicKey, plaintext []byte) (Payload, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return Payload{}, fmt.Errorf("generate key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return Payload{}, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Payload{}, fmt.Errorf("init gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Payload{}, fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, recipient, key, nil)
	if err != nil {
		return Payload{}, fmt.Errorf("wrap key: %w", err)
	}

	return Payload{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		WrappedKey: base64.StdEncoding.EncodeToString(wrapped),
		IV:         base64.StdEncoding.EncodeToString(nonce),
		Version:    FormatVersion,
	}, nil
}

// SealJSON serializes v, seals it, and returns the payload as the JSON
// object string embedded in upsert requests.
func SealJSON(recipient *rsa.PublicKey, v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal field group: %w", err)
	}
	payload, err := Seal(recipient, plaintext)
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(encoded), nil
}
