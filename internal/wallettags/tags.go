// Package wallettags converts between user-facing tag maps and the
// backend-facing ciphertext tag maps, honoring the plain/encrypted
// visibility distinction carried by a tag's name prefix.
package wallettags

import (
	"unicode/utf8"

	"github.com/keichiri/go-wallet/internal/walletcrypto"
	"github.com/keichiri/go-wallet/internal/walletkeys"
	werrors "github.com/keichiri/go-wallet/pkg/errors"
)

// plainPrefix marks a tag name as "plain": stored with an encrypted name
// but a cleartext value, enabling range/Like/Regex queries on it.
const plainPrefix = '~'

// TagValue is the sealed sum type stored against an encrypted tag-name
// key in a StorageEntity's tag map: either an Encrypted ciphertext or a
// Plain cleartext string.
type TagValue interface {
	isTagValue()
}

// EncryptedTagValue is a searchably-encrypted tag value; only equality
// queries are possible against it.
type EncryptedTagValue []byte

func (EncryptedTagValue) isTagValue() {}

// PlainTagValue is a tag value stored in cleartext, enabling range,
// Like, and Regex queries against it.
type PlainTagValue string

func (PlainTagValue) isTagValue() {}

// EncryptTags converts a user-facing tag map into the backend-facing
// ciphertext map. Tags whose name begins with '~' are emitted as Plain
// (cleartext value); all others are emitted as Encrypted.
//
// The '~' prefix is part of the plaintext that gets hashed and
// encrypted, so the ciphertext alone does not reveal which tags are
// plain; only the TagValue variant carries that distinction.
func EncryptTags(tags map[string]string, keys *walletkeys.Keys) (map[string]TagValue, error) {
	if tags == nil {
		return nil, nil
	}

	out := make(map[string]TagValue, len(tags))
	for name, value := range tags {
		ek, err := walletcrypto.EncryptSearchable([]byte(name), keys.TagNameKey, keys.TagsHMACKey)
		if err != nil {
			return nil, err
		}
		key := string(ek)

		if isPlain(name) {
			out[key] = PlainTagValue(value)
			continue
		}

		ev, err := walletcrypto.EncryptSearchable([]byte(value), keys.TagValueKey, keys.TagsHMACKey)
		if err != nil {
			return nil, err
		}
		out[key] = EncryptedTagValue(ev)
	}
	return out, nil
}

// DecryptTags is the inverse of EncryptTags. It fails the whole call on
// the first decryption or UTF-8 failure, leaving no partial result.
func DecryptTags(etags map[string]TagValue, keys *walletkeys.Keys) (map[string]string, error) {
	if etags == nil {
		return nil, nil
	}

	out := make(map[string]string, len(etags))
	for ek, ev := range etags {
		nameBytes, err := walletcrypto.Decrypt([]byte(ek), keys.TagNameKey)
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(nameBytes) {
			return nil, werrors.EncryptionError("tag name is not valid UTF-8")
		}
		name := string(nameBytes)

		switch v := ev.(type) {
		case PlainTagValue:
			out[name] = string(v)
		case EncryptedTagValue:
			valueBytes, err := walletcrypto.Decrypt([]byte(v), keys.TagValueKey)
			if err != nil {
				return nil, err
			}
			if !utf8.Valid(valueBytes) {
				return nil, werrors.EncryptionError("tag value is not valid UTF-8")
			}
			out[name] = string(valueBytes)
		default:
			return nil, werrors.EncryptionError("unknown tag value variant")
		}
	}
	return out, nil
}

// TagName is the sealed sum type used to address a tag in a query: either
// an Encrypted tag, or a Plain tag whose corresponding value is stored in
// cleartext. A query built by a caller holds the plaintext tag name;
// walletquery.Rewrite and EncryptTagNames produce the ciphertext key.
type TagName interface {
	isTagName()
}

// EncryptedTagName addresses a fully-encrypted tag by its name or
// ciphertext key.
type EncryptedTagName []byte

func (EncryptedTagName) isTagName() {}

// PlainTagName addresses a plain tag by its name or ciphertext key.
type PlainTagName []byte

func (PlainTagName) isTagName() {}

// EncryptTagNames encrypts a set of tag names for targeted tag deletion,
// tagging each result Plain or Encrypted per the '~' convention.
func EncryptTagNames(names []string, keys *walletkeys.Keys) ([]TagName, error) {
	out := make([]TagName, 0, len(names))
	for _, name := range names {
		ek, err := walletcrypto.EncryptSearchable([]byte(name), keys.TagNameKey, keys.TagsHMACKey)
		if err != nil {
			return nil, err
		}
		if isPlain(name) {
			out = append(out, PlainTagName(ek))
		} else {
			out = append(out, EncryptedTagName(ek))
		}
	}
	return out, nil
}

func isPlain(name string) bool {
	return len(name) > 0 && name[0] == plainPrefix
}
