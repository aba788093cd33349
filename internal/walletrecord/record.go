// Package walletrecord implements the per-record envelope: encryption
// and decryption of a whole wallet record (name, class, value, tags)
// into/from the backend's storage row shape.
package walletrecord

import (
	"crypto/rand"
	"io"
	"unicode/utf8"

	"github.com/keichiri/go-wallet/internal/walletcrypto"
	"github.com/keichiri/go-wallet/internal/walletkeys"
	"github.com/keichiri/go-wallet/internal/wallettags"
	werrors "github.com/keichiri/go-wallet/pkg/errors"
)

// WalletRecord is the user-facing view of a record.
type WalletRecord struct {
	Name  string
	Class *string
	Value *string
	Tags  map[string]string
}

// StorageValue is the encrypted value envelope: Data is the value
// ciphertext under a fresh per-record key, WrappedKey is that per-record
// key wrapped under the wallet's value key.
type StorageValue struct {
	Data       []byte
	WrappedKey []byte
}

// StorageEntity is the backend row shape.
type StorageEntity struct {
	Name  []byte
	Class []byte
	Value *StorageValue
	Tags  map[string]wallettags.TagValue
}

// EncryptRecord builds the StorageEntity for a write. Name is always
// encrypted searchably; Class, if present, likewise. If Value is
// present, a fresh random 32-byte per-record key encrypts it, and that
// key is itself wrapped under keys.ValueKey.
func EncryptRecord(rec WalletRecord, keys *walletkeys.Keys) (*StorageEntity, error) {
	encName, err := walletcrypto.EncryptSearchable([]byte(rec.Name), keys.NameKey, keys.ItemHMACKey)
	if err != nil {
		return nil, err
	}

	var encClass []byte
	if rec.Class != nil {
		encClass, err = walletcrypto.EncryptSearchable([]byte(*rec.Class), keys.ClassKey, keys.ItemHMACKey)
		if err != nil {
			return nil, err
		}
	}

	var sv *StorageValue
	if rec.Value != nil {
		sv, err = encryptValue([]byte(*rec.Value), keys)
		if err != nil {
			return nil, err
		}
	}

	etags, err := wallettags.EncryptTags(rec.Tags, keys)
	if err != nil {
		return nil, err
	}

	return &StorageEntity{
		Name:  encName,
		Class: encClass,
		Value: sv,
		Tags:  etags,
	}, nil
}

func encryptValue(value []byte, keys *walletkeys.Keys) (*StorageValue, error) {
	vk := make([]byte, walletcrypto.KeySize)
	if _, err := io.ReadFull(rand.Reader, vk); err != nil {
		return nil, werrors.EncryptionError("per-record key generation failed: " + err.Error())
	}

	data, err := walletcrypto.EncryptRandom(value, vk)
	if err != nil {
		return nil, err
	}

	wrapped, err := walletcrypto.EncryptRandom(vk, keys.ValueKey)
	if err != nil {
		return nil, err
	}

	return &StorageValue{Data: data, WrappedKey: wrapped}, nil
}

// DecryptRecord is the inverse of EncryptRecord.
func DecryptRecord(entity *StorageEntity, keys *walletkeys.Keys) (*WalletRecord, error) {
	nameBytes, err := walletcrypto.Decrypt(entity.Name, keys.NameKey)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(nameBytes) {
		return nil, werrors.EncryptionError("record name is not valid UTF-8")
	}

	rec := &WalletRecord{Name: string(nameBytes)}

	if entity.Class != nil {
		classBytes, err := walletcrypto.Decrypt(entity.Class, keys.ClassKey)
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(classBytes) {
			return nil, werrors.EncryptionError("record class is not valid UTF-8")
		}
		class := string(classBytes)
		rec.Class = &class
	}

	if entity.Value != nil {
		value, err := decryptValue(entity.Value, keys)
		if err != nil {
			return nil, err
		}
		rec.Value = value
	}

	if entity.Tags != nil {
		tags, err := wallettags.DecryptTags(entity.Tags, keys)
		if err != nil {
			return nil, err
		}
		rec.Tags = tags
	}

	return rec, nil
}

func decryptValue(sv *StorageValue, keys *walletkeys.Keys) (*string, error) {
	vk, err := walletcrypto.Decrypt(sv.WrappedKey, keys.ValueKey)
	if err != nil {
		return nil, err
	}
	if len(vk) != walletcrypto.KeySize {
		return nil, werrors.EncryptionError("value key size")
	}

	plaintext, err := walletcrypto.Decrypt(sv.Data, vk)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(plaintext) {
		return nil, werrors.EncryptionError("record value is not valid UTF-8")
	}
	value := string(plaintext)
	return &value, nil
}
