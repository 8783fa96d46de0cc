// Package secret seals and opens tenant credentials stored at rest.
//
// Sealed values have the form base64(nonce)|base64(box), where box is a
// NaCl secretbox produced with a 32-byte master key.
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
	sep       = "|"
)

var (
	// ErrNoKey is returned when a sealed value is opened without a master key.
	ErrNoKey = errors.New("secret: master key not configured")
	// ErrMalformed is returned for values that are not nonce|ciphertext.
	ErrMalformed = errors.New("secret: malformed sealed value")
	// ErrDecrypt is returned when authentication of the box fails.
	ErrDecrypt = errors.New("secret: decryption failed")
)

// Box seals and opens values with one master key.
type Box struct {
	key *[keySize]byte
}

// NewBox parses a base64 (padded or raw) or hex encoded 32-byte key. An empty
// key yields a Box that can only report ErrNoKey.
func NewBox(encodedKey string) (*Box, error) {
	encodedKey = strings.TrimSpace(encodedKey)
	if encodedKey == "" {
		return &Box{}, nil
	}

	raw, err := decodeKey(encodedKey)
	if err != nil {
		return nil, err
	}

	var key [keySize]byte
	copy(key[:], raw)
	return &Box{key: &key}, nil
}

// Ready reports whether a master key is loaded.
func (b *Box) Ready() bool {
	return b != nil && b.key != nil
}

// Seal encrypts plain with a fresh random nonce.
func (b *Box) Seal(plain string) (string, error) {
	if !b.Ready() {
		return "", ErrNoKey
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("secret: nonce: %w", err)
	}

	box := secretbox.Seal(nil, []byte(plain), &nonce, b.key)
	return base64.StdEncoding.EncodeToString(nonce[:]) + sep + base64.StdEncoding.EncodeToString(box), nil
}

// Open decrypts a value produced by Seal.
func (b *Box) Open(sealed string) (string, error) {
	if !b.Ready() {
		return "", ErrNoKey
	}

	parts := strings.Split(strings.TrimSpace(sealed), sep)
	if len(parts) != 2 {
		return "", ErrMalformed
	}
	nonceBytes, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(nonceBytes) != nonceSize {
		return "", ErrMalformed
	}
	box, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrMalformed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], nonceBytes)

	plain, ok := secretbox.Open(nil, box, &nonce, b.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

func decodeKey(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == keySize {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil && len(b) == keySize {
		return b, nil
	}
	if len(s) == keySize*2 {
		if b, err := hex.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("secret: master key must decode to %d bytes (base64 or hex)", keySize)
}
