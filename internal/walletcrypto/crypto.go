// Package walletcrypto implements the wallet's authenticated-encryption
// primitives: a random-nonce mode for confidentiality-only data at rest,
// and a deterministic "searchable" mode that permits equality lookup on
// ciphertext without decrypting it.
package walletcrypto

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	werrors "github.com/keichiri/go-wallet/pkg/errors"
)

const (
	// KeySize is the length in bytes of every symmetric key used by the
	// wallet: AEAD keys and HMAC nonce-derivation keys alike.
	KeySize = chacha20poly1305.KeySize // 32

	// NonceSize is the length in bytes of a ChaCha20-Poly1305-IETF nonce.
	NonceSize = chacha20poly1305.NonceSize // 12

	// TagSize is the length in bytes of the AEAD authentication tag.
	TagSize = chacha20poly1305.Overhead // 16
)

// EncryptRandom seals plaintext under key with a freshly sampled uniform
// nonce. The output is nonce ∥ ciphertext ∥ tag. Two calls with identical
// inputs almost certainly produce different output.
func EncryptRandom(plaintext, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, werrors.EncryptionError("nonce generation failed: " + err.Error())
	}

	return seal(aead, nonce, plaintext), nil
}

// EncryptSearchable seals plaintext under key with a nonce derived as
// HMAC-SHA-256(hmacKey, plaintext) truncated to the AEAD's nonce size.
// For a fixed (plaintext, key, hmacKey) the output is byte-identical
// across calls, which is what makes equality lookup on ciphertext
// possible; the keyed hash prevents an offline dictionary attack on the
// nonce alone from recovering short plaintexts.
func EncryptSearchable(plaintext, key, hmacKey []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := deriveNonce(hmacKey, plaintext, aead.NonceSize())
	return seal(aead, nonce, plaintext), nil
}

// Decrypt opens a blob produced by EncryptRandom or EncryptSearchable.
// It returns EncryptionError on a truncated blob or authentication
// failure, without distinguishing the two causes.
func Decrypt(blob, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	if len(blob) < aead.NonceSize() {
		return nil, werrors.EncryptionError("decryption failed")
	}

	nonce := blob[:aead.NonceSize()]
	ct := blob[aead.NonceSize():]

	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, werrors.EncryptionError("decryption failed")
	}
	return pt, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, werrors.EncryptionError("key must be 32 bytes")
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, werrors.EncryptionError("invalid key: " + err.Error())
	}
	return aead, nil
}

func deriveNonce(hmacKey, plaintext []byte, size int) []byte {
	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(plaintext)
	sum := mac.Sum(nil)
	return sum[:size]
}

func seal(aead cipher.AEAD, nonce, plaintext []byte) []byte {
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil)
}
