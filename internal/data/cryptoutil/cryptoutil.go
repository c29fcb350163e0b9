// Package cryptoutil seals bearer tokens before they leave the process.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Sealer encrypts small values stored outside the process. aad binds a sealed
// value to its owner; Open fails when it is presented with a different aad.
type Sealer interface {
	Seal(plaintext, aad []byte) (string, error)
	Open(sealed string, aad []byte) ([]byte, error)
}

// Sealed values look like "<tag>.<key id>.<payload>" for AES-GCM and
// "<tag>.<payload>" for plain values.
const (
	gcmTag   = "g1"
	plainTag = "p0"

	// KeySize is the AES-256 key length.
	KeySize = 32
)

var (
	// ErrMalformed is returned for values that were not produced by a Sealer.
	ErrMalformed = errors.New("malformed sealed value")
	// ErrUnknownKey is returned when the value was sealed with a key the keyring does not hold.
	ErrUnknownKey = errors.New("sealed with an unknown key")
)

var encoding = base64.RawURLEncoding

// DeriveKey turns configured key material into an AES-256 key. 64 hex
// characters are used as is; anything else is hashed with SHA-256.
func DeriveKey(material string) []byte {
	if raw, err := hex.DecodeString(material); err == nil && len(raw) == KeySize {
		return raw
	}
	sum := sha256.Sum256([]byte(material))
	return sum[:]
}

// KeyID is the short fingerprint written in front of every value sealed with key.
func KeyID(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:4])
}

// Keyring seals with its primary key and opens values sealed with the primary
// or any retired key, so keys can rotate without signing every client out.
type Keyring struct {
	primaryID string
	aeads     map[string]cipher.AEAD
}

var _ Sealer = (*Keyring)(nil)

// NewKeyring builds a keyring. Every key must be KeySize bytes.
func NewKeyring(primary []byte, retired ...[]byte) (*Keyring, error) {
	kr := &Keyring{aeads: make(map[string]cipher.AEAD, 1+len(retired))}
	for i, key := range append([][]byte{primary}, retired...) {
		if len(key) != KeySize {
			return nil, fmt.Errorf("key %d: want %d bytes, got %d", i, KeySize, len(key))
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		id := KeyID(key)
		if i == 0 {
			kr.primaryID = id
		}
		if _, dup := kr.aeads[id]; !dup {
			kr.aeads[id] = aead
		}
	}
	return kr, nil
}

// PrimaryID reports the fingerprint of the sealing key.
func (k *Keyring) PrimaryID() string { return k.primaryID }

// Seal encrypts plaintext under the primary key with a random nonce.
func (k *Keyring) Seal(plaintext, aad []byte) (string, error) {
	aead := k.aeads[k.primaryID]
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	out := aead.Seal(nonce, nonce, plaintext, aad)
	return gcmTag + "." + k.primaryID + "." + encoding.EncodeToString(out), nil
}

// Open decrypts a value from Seal. Plain values are accepted too, so turning
// encryption on keeps existing entries readable until they are rewritten.
func (k *Keyring) Open(sealed string, aad []byte) ([]byte, error) {
	tag, rest, ok := strings.Cut(sealed, ".")
	if !ok {
		return nil, ErrMalformed
	}
	switch tag {
	case plainTag:
		return openPlain(rest)
	case gcmTag:
	default:
		return nil, fmt.Errorf("%w: tag %q", ErrMalformed, tag)
	}

	id, payload, ok := strings.Cut(rest, ".")
	if !ok {
		return nil, ErrMalformed
	}
	aead, known := k.aeads[id]
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, id)
	}
	raw, err := encoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(raw) < aead.NonceSize() {
		return nil, ErrMalformed
	}
	nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	return aead.Open(nil, nonce, ct, aad)
}

// Plain only encodes. It is used when no key is configured and ignores aad.
type Plain struct{}

var _ Sealer = Plain{}

func (Plain) Seal(plaintext, _ []byte) (string, error) {
	return plainTag + "." + encoding.EncodeToString(plaintext), nil
}

func (Plain) Open(sealed string, _ []byte) ([]byte, error) {
	tag, rest, ok := strings.Cut(sealed, ".")
	if !ok || tag != plainTag {
		return nil, ErrMalformed
	}
	return openPlain(rest)
}

func openPlain(payload string) ([]byte, error) {
	raw, err := encoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return raw, nil
}
