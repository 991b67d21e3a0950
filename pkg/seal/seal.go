// Package seal derives the shared sync key from a password and encrypts
// sync frames with XChaCha20-Poly1305.
package seal

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const KeySize = 32

var (
	ErrDecrypt    = errors.New("seal: message authentication failed")
	ErrKeyInvalid = errors.New("seal: invalid key")
)

// All devices sharing a password must derive the same key, so the salt is
// fixed per application.
var passwordSalt = []byte("noteenvelope/sync/v1")

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

func DeriveKey(password string) []byte {
	return argon2.IDKey([]byte(password), passwordSalt, argonTime, argonMemory, argonThreads, KeySize)
}

func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

func DecodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(key) != KeySize {
		return nil, ErrKeyInvalid
	}
	return key, nil
}

type Box struct {
	aead  cipher.AEAD
	topic string
}

func NewBox(key []byte) (*Box, error) {
	if len(key) != KeySize {
		return nil, ErrKeyInvalid
	}

	encKey := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte("noteenvelope sync encryption")), encKey); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	topic := make([]byte, 16)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte("noteenvelope sync topic")), topic); err != nil {
		return nil, fmt.Errorf("failed to derive topic: %w", err)
	}

	aead, err := chacha20poly1305.NewX(encKey)
	if err != nil {
		return nil, err
	}
	return &Box{aead: aead, topic: hex.EncodeToString(topic)}, nil
}

// Topic is the relay channel name for this key. It reveals nothing about
// the key itself.
func (b *Box) Topic() string {
	return b.topic
}

// Seal encrypts plaintext and returns nonce || ciphertext.
func (b *Box) Seal(plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, b.aead.NonceSize(), b.aead.NonceSize()+len(plaintext)+b.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return b.aead.Seal(nonce, nonce, plaintext, aad), nil
}

func (b *Box) Open(sealed, aad []byte) ([]byte, error) {
	n := b.aead.NonceSize()
	if len(sealed) < n+b.aead.Overhead() {
		return nil, ErrDecrypt
	}
	plaintext, err := b.aead.Open(nil, sealed[:n], sealed[n:], aad)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
