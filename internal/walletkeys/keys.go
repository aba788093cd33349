// Package walletkeys implements the wallet's key hierarchy: seven
// symmetric keys generated at wallet creation and carried, wrapped under
// a master key, as an opaque blob the storage backend stores verbatim.
package walletkeys

import (
	"crypto/rand"
	"io"

	"github.com/keichiri/go-wallet/internal/walletcrypto"
	werrors "github.com/keichiri/go-wallet/pkg/errors"
)

// numKeys is the count and serialization order of the key bundle.
const numKeys = 7

// Keys bundles the seven 32-byte symmetric keys the wallet derives
// cryptographic material from. Every field is exactly walletcrypto.KeySize
// bytes. Keys is read-only after construction; callers must not mutate
// the slices in place.
type Keys struct {
	NameKey     []byte
	ValueKey    []byte
	ClassKey    []byte
	TagNameKey  []byte
	TagValueKey []byte
	ItemHMACKey []byte
	TagsHMACKey []byte
}

// ordered returns the bundle's fields in the fixed serialization order
// used by GenerateKeys/DecryptKeys.
func (k *Keys) ordered() [numKeys][]byte {
	return [numKeys][]byte{
		k.NameKey, k.ValueKey, k.ClassKey, k.TagNameKey,
		k.TagValueKey, k.ItemHMACKey, k.TagsHMACKey,
	}
}

func keysFromOrdered(fields [numKeys][]byte) *Keys {
	return &Keys{
		NameKey:     fields[0],
		ValueKey:    fields[1],
		ClassKey:    fields[2],
		TagNameKey:  fields[3],
		TagValueKey: fields[4],
		ItemHMACKey: fields[5],
		TagsHMACKey: fields[6],
	}
}

// GenerateKeys creates a fresh Keys bundle and wraps it under masterKey,
// returning the opaque blob the backend stores alongside the wallet.
func GenerateKeys(masterKey []byte) (*Keys, []byte, error) {
	var fields [numKeys][]byte
	concat := make([]byte, 0, numKeys*walletcrypto.KeySize)
	for i := range fields {
		key := make([]byte, walletcrypto.KeySize)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, nil, werrors.EncryptionError("key generation failed: " + err.Error())
		}
		fields[i] = key
		concat = append(concat, key...)
	}

	blob, err := walletcrypto.EncryptRandom(concat, masterKey)
	if err != nil {
		return nil, nil, err
	}

	return keysFromOrdered(fields), blob, nil
}

// DecryptKeys unwraps a blob produced by GenerateKeys using masterKey.
func DecryptKeys(blob, masterKey []byte) (*Keys, error) {
	concat, err := walletcrypto.Decrypt(blob, masterKey)
	if err != nil {
		return nil, err
	}
	if len(concat) != numKeys*walletcrypto.KeySize {
		return nil, werrors.EncryptionError("key bundle has wrong length")
	}

	var fields [numKeys][]byte
	for i := range fields {
		start := i * walletcrypto.KeySize
		fields[i] = concat[start : start+walletcrypto.KeySize]
	}

	return keysFromOrdered(fields), nil
}

// Close zeroises every key in the bundle. Safe to call more than once.
func (k *Keys) Close() {
	for _, field := range k.ordered() {
		for i := range field {
			field[i] = 0
		}
	}
}
